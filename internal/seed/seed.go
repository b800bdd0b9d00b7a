package seed

import (
	"context"
	"fmt"
	"log/slog"

	"jnestagram/internal/counters"
	"jnestagram/internal/crypto"
	"jnestagram/internal/models"
	"jnestagram/internal/observability"

	"gorm.io/gorm"
)

// Options configures a seeding run.
type Options struct {
	Users            int
	PostsPerUser     int
	CommentsPerPost  int
	MaxLikesPerPost  int
	Conversations    int
	MessagesPerConvo int

	// Clean deletes all social data before seeding. Reference data stays.
	Clean bool
	// Seed makes a run reproducible.
	Seed     int64
	FastHash bool
	Cipher   crypto.Cipher
}

// DefaultOptions is a small but lively dataset.
func DefaultOptions() Options {
	return Options{
		Users:            20,
		PostsPerUser:     3,
		CommentsPerPost:  4,
		MaxLikesPerPost:  8,
		Conversations:    10,
		MessagesPerConvo: 6,
	}
}

// Summary counts what a run created.
type Summary struct {
	Users         int
	Posts         int
	Comments      int
	Replies       int
	Likes         int
	Conversations int
	Messages      int
	// Corrected is the number of counter rows the final recount fixed.
	Corrected int64
}

// socialTables are emptied by a clean run, children first.
var socialTables = []string{
	"likes",
	"messages",
	"conversation_participants",
	"conversations",
	"replies",
	"comments",
	"post_tags",
	"posts",
	"profiles",
	"users",
}

// Clean removes every user and everything they produced.
func Clean(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range socialTables {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// Seed applies the catalogue and generates users, posts, moderated comments,
// replies, likes and conversations. Counters are written by a final recount
// so they agree with the generated rows.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Summary, error) {
	log := observability.GlobalLogger
	log.InfoContext(ctx, "seeding database",
		slog.Int("users", opts.Users),
		slog.Int("posts_per_user", opts.PostsPerUser),
	)

	if opts.Clean {
		if err := Clean(ctx, db); err != nil {
			return nil, err
		}
	}

	catalogue, err := LoadCatalogue()
	if err != nil {
		return nil, err
	}
	if err := catalogue.Apply(ctx, db); err != nil {
		return nil, err
	}

	var tags []models.Tag
	if err := db.WithContext(ctx).Find(&tags).Error; err != nil {
		return nil, err
	}
	var countries []models.Country
	if err := db.WithContext(ctx).Where("is_active = ?", true).Find(&countries).Error; err != nil {
		return nil, err
	}

	f, err := NewFactory(db.WithContext(ctx), FactoryOptions{
		Seed:     opts.Seed,
		FastHash: opts.FastHash,
		Cipher:   opts.Cipher,
	})
	if err != nil {
		return nil, err
	}

	sum := &Summary{}
	users := make([]*models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		u, err := f.CreateUser(countries)
		if err != nil {
			return sum, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	sum.Users = len(users)
	if len(users) == 0 {
		return sum, nil
	}

	for _, owner := range users {
		for i := 0; i < opts.PostsPerUser; i++ {
			post, err := f.CreatePost(owner, tags)
			if err != nil {
				return sum, fmt.Errorf("create post: %w", err)
			}
			sum.Posts++
			if err := f.populatePost(post, users, opts, sum); err != nil {
				return sum, err
			}
		}
	}

	if len(users) > 1 {
		pairs := f.pairs(len(users), opts.Conversations)
		for _, p := range pairs {
			if _, err := f.CreateConversation(users[p[0]], users[p[1]], opts.MessagesPerConvo); err != nil {
				return sum, fmt.Errorf("create conversation: %w", err)
			}
			sum.Conversations++
			sum.Messages += opts.MessagesPerConvo
		}
	}

	report, err := counters.New().RecountAll(ctx, db)
	if err != nil {
		return sum, fmt.Errorf("recount counters: %w", err)
	}
	sum.Corrected = report.Total()

	log.InfoContext(ctx, "seeding complete",
		slog.Int("users", sum.Users),
		slog.Int("posts", sum.Posts),
		slog.Int("comments", sum.Comments),
		slog.Int("likes", sum.Likes),
		slog.Int("conversations", sum.Conversations),
	)
	return sum, nil
}

// populatePost adds comments, replies and likes from random users. Roughly a
// quarter of comments stay pending; only approved comments get replies.
func (f *Factory) populatePost(post *models.Post, users []*models.User, opts Options, sum *Summary) error {
	for i := 0; i < opts.CommentsPerPost; i++ {
		author := users[f.fake.Number(0, len(users)-1)]
		approved := author.ID == post.UserID || f.fake.Number(1, 4) > 1
		comment, err := f.CreateComment(author, post, approved)
		if err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		sum.Comments++
		if !approved {
			continue
		}

		for r := f.fake.Number(0, 2); r > 0; r-- {
			replier := users[f.fake.Number(0, len(users)-1)]
			reply, err := f.CreateReply(replier, comment)
			if err != nil {
				return fmt.Errorf("create reply: %w", err)
			}
			sum.Replies++
			if f.fake.Bool() {
				if err := f.CreateLike(ownerOf(users, post), reply.LikeTarget()); err != nil {
					return fmt.Errorf("like reply: %w", err)
				}
				sum.Likes++
			}
		}
		if f.fake.Bool() {
			if err := f.CreateLike(ownerOf(users, post), comment.LikeTarget()); err != nil {
				return fmt.Errorf("like comment: %w", err)
			}
			sum.Likes++
		}
	}

	n := f.fake.Number(0, min(opts.MaxLikesPerPost, len(users)))
	for _, i := range f.perm(len(users))[:n] {
		if err := f.CreateLike(users[i], post.LikeTarget()); err != nil {
			return fmt.Errorf("like post: %w", err)
		}
		sum.Likes++
	}
	return nil
}

// ownerOf returns the seeded user that owns post.
func ownerOf(users []*models.User, post *models.Post) *models.User {
	for _, u := range users {
		if u.ID == post.UserID {
			return u
		}
	}
	return users[0]
}

// pairs picks up to n distinct unordered index pairs out of size users.
func (f *Factory) pairs(size, n int) [][2]int {
	maxPairs := size * (size - 1) / 2
	if n > maxPairs {
		n = maxPairs
	}
	seen := make(map[[2]int]bool, n)
	out := make([][2]int, 0, n)
	for len(out) < n {
		a, b := f.fake.Number(0, size-1), f.fake.Number(0, size-1)
		if a == b {
			continue
		}
		if a > b {
			a, b = b, a
		}
		key := [2]int{a, b}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}
