// Package seed fills a database with reference data and fake social
// activity for development and tests.
package seed

import (
	"fmt"
	"strings"
	"time"

	"jnestagram/internal/crypto"
	"jnestagram/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded account logs in with.
const DefaultPassword = "password123"

// Factory builds domain rows with fake content and persists them.
type Factory struct {
	db      *gorm.DB
	fake    *gofakeit.Faker
	cipher  crypto.Cipher
	maxDays int
	seq     int

	password string
}

// FactoryOptions tunes a Factory.
type FactoryOptions struct {
	// Seed makes the generated content reproducible. Zero picks a random seed.
	Seed int64
	// MaxDays spreads created_at over the last MaxDays days.
	MaxDays int
	// FastHash hashes the shared password with bcrypt.MinCost.
	FastHash bool
	// Cipher seals message bodies. Nil stores them as plain text.
	Cipher crypto.Cipher
}

// NewFactory creates a Factory bound to db.
func NewFactory(db *gorm.DB, opts FactoryOptions) (*Factory, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	if opts.Cipher == nil {
		opts.Cipher = crypto.Plaintext{}
	}
	cost := bcrypt.DefaultCost
	if opts.FastHash {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	return &Factory{
		db:       db,
		fake:     gofakeit.New(seed),
		cipher:   opts.Cipher,
		maxDays:  opts.MaxDays,
		password: string(hash),
	}, nil
}

// pastTime returns a moment within the configured window.
func (f *Factory) pastTime() time.Time {
	back := time.Duration(f.fake.Number(0, f.maxDays*24*60)) * time.Minute
	return time.Now().Add(-back).Truncate(time.Second)
}

// BuildUser returns an active user with a unique username. Nothing is saved.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	f.seq++
	first, last := f.fake.FirstName(), f.fake.LastName()
	username := fmt.Sprintf("%s%d", strings.ToLower(f.fake.Username()), f.seq)
	if len(username) > 150 {
		username = username[:150]
	}
	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		Password:  f.password,
		FirstName: first,
		LastName:  last,
		IsActive:  true,
		CreatedAt: f.pastTime(),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser persists a user and its profile.
func (f *Factory) CreateUser(countries []models.Country, overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if err := f.db.Omit("Profile").Create(user).Error; err != nil {
		return nil, err
	}

	profile := &models.Profile{
		UserID: user.ID,
		Bio:    f.fake.Sentence(10),
	}
	if len(countries) > 0 {
		id := countries[f.fake.Number(0, len(countries)-1)].ID
		profile.CountryID = &id
	}
	if err := f.db.Omit("Country").Create(profile).Error; err != nil {
		return nil, err
	}
	user.Profile = profile
	return user, nil
}

// BuildPost returns an active post by owner. Most posts are public.
func (f *Factory) BuildPost(owner *models.User, overrides ...func(*models.Post)) *models.Post {
	title := f.fake.Sentence(f.fake.Number(2, 6))
	if len(title) > 100 {
		title = title[:100]
	}
	post := &models.Post{
		UserID:    owner.ID,
		Title:     title,
		Body:      f.fake.Paragraph(1, 3, 12, "\n"),
		IsActive:  true,
		IsPublic:  f.fake.Number(1, 10) > 1,
		CreatedAt: f.pastTime(),
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost persists a post tagged with up to three of tags.
func (f *Factory) CreatePost(owner *models.User, tags []models.Tag, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(owner, overrides...)
	if err := f.db.Omit("User", "Tags").Create(post).Error; err != nil {
		return nil, err
	}
	if picked := f.pickTags(tags); len(picked) > 0 {
		if err := f.db.Model(post).Association("Tags").Append(picked); err != nil {
			return nil, err
		}
		post.Tags = picked
	}
	return post, nil
}

func (f *Factory) pickTags(tags []models.Tag) []models.Tag {
	if len(tags) == 0 {
		return nil
	}
	n := f.fake.Number(0, min(3, len(tags)))
	picked := make([]models.Tag, 0, n)
	order := f.perm(len(tags))
	for _, i := range order[:n] {
		picked = append(picked, tags[i])
	}
	return picked
}

// perm returns a random permutation of [0, n).
func (f *Factory) perm(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := f.fake.Number(0, i)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// CreateComment persists a comment by author on post. Counters are left for
// the caller to reconcile.
func (f *Factory) CreateComment(author *models.User, post *models.Post, approved bool) (*models.Comment, error) {
	comment := &models.Comment{
		PostID:     post.ID,
		UserID:     author.ID,
		Text:       f.fake.Sentence(f.fake.Number(3, 15)),
		IsApproved: approved,
		CreatedAt:  f.after(post.CreatedAt),
	}
	if err := f.db.Omit("User", "Post").Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateReply persists a reply by author to comment.
func (f *Factory) CreateReply(author *models.User, comment *models.Comment) (*models.Reply, error) {
	reply := &models.Reply{
		CommentID: comment.ID,
		UserID:    author.ID,
		Text:      f.fake.Sentence(f.fake.Number(2, 10)),
		CreatedAt: f.after(comment.CreatedAt),
	}
	if err := f.db.Omit("User", "Comment").Create(reply).Error; err != nil {
		return nil, err
	}
	return reply, nil
}

// CreateLike records a like from user on target.
func (f *Factory) CreateLike(user *models.User, target models.LikeTarget) error {
	like := &models.Like{UserID: user.ID, TargetKind: target.Kind, TargetID: target.ID}
	return f.db.Create(like).Error
}

// CreateConversation persists a conversation between a and b with n sealed
// messages alternating at random between the two. The last message leaves
// the conversation unseen for its recipient.
func (f *Factory) CreateConversation(a, b *models.User, n int) (*models.Conversation, error) {
	conv := &models.Conversation{
		PairKey:      models.PairKey(a.ID, b.ID),
		Participants: []models.User{*a, *b},
		IsSeen:       true,
		CreatedAt:    f.pastTime(),
	}
	if err := f.db.Omit("Participants.*", "Messages").Create(conv).Error; err != nil {
		return nil, err
	}

	at := conv.CreatedAt
	for i := 0; i < n; i++ {
		sender := a
		if f.fake.Bool() {
			sender = b
		}
		payload, err := f.cipher.Seal(f.fake.Sentence(f.fake.Number(2, 12)))
		if err != nil {
			return nil, err
		}
		at = f.after(at)
		msg := &models.Message{
			ConversationID: conv.ID,
			SenderID:       sender.ID,
			Text:           payload,
			CreatedAt:      at,
		}
		if err := f.db.Omit("Sender").Create(msg).Error; err != nil {
			return nil, err
		}
		senderID := sender.ID
		conv.LastSenderID = &senderID
		conv.IsSeen = false
	}
	conv.LastMessageCreated = at

	err := f.db.Model(conv).Updates(map[string]any{
		"lastmessage_created": conv.LastMessageCreated,
		"last_sender_id":      conv.LastSenderID,
		"is_seen":             conv.IsSeen,
	}).Error
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (f *Factory) after(t time.Time) time.Time {
	later := t.Add(time.Duration(f.fake.Number(1, 72*60)) * time.Minute)
	if now := time.Now(); later.After(now) {
		return now.Truncate(time.Second)
	}
	return later
}
