package server

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"jnestagram/internal/models"
	"jnestagram/internal/service"
	"jnestagram/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandlers_SignupAndLogin(t *testing.T) {
	ts := newTestServer(t)

	signup := map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "correct horse",
	}
	var session service.Session
	require.Equal(t, http.StatusCreated, ts.call(t, http.MethodPost, "/api/auth/signup", "", signup, &session))
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "alice", session.User.Username)

	var dup map[string]any
	assert.Equal(t, http.StatusBadRequest, ts.call(t, http.MethodPost, "/api/auth/signup", "", signup, &dup))
	assert.Equal(t, models.CodeValidation, dup["code"])

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"username", map[string]string{"login": "alice", "password": "correct horse"}, http.StatusOK},
		{"email", map[string]string{"login": "alice@example.com", "password": "correct horse"}, http.StatusOK},
		{"legacy email field", map[string]string{"email": "alice@example.com", "password": "correct horse"}, http.StatusOK},
		{"wrong password", map[string]string{"login": "alice", "password": "battery staple"}, http.StatusUnauthorized},
		{"unknown user", map[string]string{"login": "mallory", "password": "correct horse"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got service.Session
			status := ts.call(t, http.MethodPost, "/api/auth/login", "", tt.body, &got)
			assert.Equal(t, tt.status, status)
			if status == http.StatusOK {
				var me models.User
				require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/auth/me", got.Token, nil, &me))
				assert.Equal(t, session.User.ID, me.ID)
			}
		})
	}
}

func TestPostHandlers_CreateListAndGet(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.user(t, "alice", false)
	tag := models.Tag{Name: "Travel", Slug: "travel"}
	require.NoError(t, ts.db.Create(&tag).Error)

	var post models.Post
	body := map[string]any{"title": "Lisbon", "body": "Trams and tiles", "tags": []uint{tag.ID}}
	require.Equal(t, http.StatusCreated, ts.call(t, http.MethodPost, "/api/posts", token, body, &post))
	assert.True(t, post.IsPublic)
	require.Len(t, post.Tags, 1)

	var page service.PostPage
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/posts?tag=travel", "", nil, &page))
	assert.Equal(t, int64(1), page.Total)
	assert.False(t, page.HasNext)

	assert.Equal(t, http.StatusNotFound, ts.call(t, http.MethodGet, "/api/posts?tag=nope", "", nil, nil))
	assert.Equal(t, http.StatusBadRequest, ts.call(t, http.MethodGet, "/api/posts/abc", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, ts.call(t, http.MethodPost, "/api/posts", "", body, nil))

	var got models.Post
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), "", nil, &got))
	assert.Equal(t, "Lisbon", got.Title)
}

func TestPostHandlers_MultipartWithImage(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.user(t, "alice", false)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("title", "Sunset"))
	require.NoError(t, w.WriteField("body", "Orange sky"))
	require.NoError(t, w.WriteField("is_public", "false"))
	part, err := w.CreateFormFile("image", "sunset.png")
	require.NoError(t, err)
	_, err = part.Write(testutil.TinyPNG(t, 40, 20))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/posts", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	var post models.Post
	require.Equal(t, http.StatusCreated, ts.send(t, req, &post))
	assert.False(t, post.IsPublic)
	require.NotEmpty(t, post.Image)
	_, err = os.Stat(filepath.Join(ts.config.MediaDir, post.Image))
	assert.NoError(t, err)

	// Private posts are hidden from everyone but the owner.
	path := fmt.Sprintf("/api/posts/%d", post.ID)
	assert.Equal(t, http.StatusNotFound, ts.call(t, http.MethodGet, path, "", nil, nil))
	assert.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, path, token, nil, nil))
}

func TestPostHandlers_OnlyOwnerEdits(t *testing.T) {
	ts := newTestServer(t)
	alice, _ := ts.user(t, "alice", false)
	_, bobToken := ts.user(t, "bob", false)
	post := testutil.CreatePost(t, ts.db, alice, "Mine")
	path := fmt.Sprintf("/api/posts/%d", post.ID)

	body := map[string]any{"title": "Hijacked", "body": "x"}
	assert.Equal(t, http.StatusForbidden, ts.call(t, http.MethodPut, path, bobToken, body, nil))
	assert.Equal(t, http.StatusForbidden, ts.call(t, http.MethodDelete, path, bobToken, nil, nil))
}

func TestLikeHandlers_Toggle(t *testing.T) {
	ts := newTestServer(t)
	alice, _ := ts.user(t, "alice", false)
	_, bobToken := ts.user(t, "bob", false)
	post := testutil.CreatePost(t, ts.db, alice, "Likeable")
	path := fmt.Sprintf("/api/likes/post/%d", post.ID)

	var res service.LikeResult
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, path, bobToken, nil, &res))
	assert.True(t, res.Liked)
	assert.Equal(t, 1, res.LikesCount)

	var got models.Post
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), bobToken, nil, &got))
	assert.True(t, got.IsLiked)
	assert.Equal(t, 1, got.LikesCount)

	res = service.LikeResult{}
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, path, bobToken, nil, &res))
	assert.False(t, res.Liked)
	assert.Equal(t, 0, res.LikesCount)

	assert.Equal(t, http.StatusUnauthorized, ts.call(t, http.MethodPost, path, "", nil, nil))
	assert.Equal(t, http.StatusNotFound, ts.call(t, http.MethodPost, fmt.Sprintf("/api/likes/story/%d", post.ID), bobToken, nil, nil))
	assert.Equal(t, http.StatusNotFound, ts.call(t, http.MethodPost, "/api/likes/post/999", bobToken, nil, nil))
}

func TestCommentHandlers_ModerationFlow(t *testing.T) {
	ts := newTestServer(t)
	alice, aliceToken := ts.user(t, "alice", false)
	_, bobToken := ts.user(t, "bob", false)
	_, carolToken := ts.user(t, "carol", false)
	post := testutil.CreatePost(t, ts.db, alice, "Moderated")
	commentsPath := fmt.Sprintf("/api/posts/%d/comments", post.ID)

	var comment models.Comment
	require.Equal(t, http.StatusCreated, ts.call(t, http.MethodPost, commentsPath, bobToken,
		map[string]string{"text": "Nice!"}, &comment))
	assert.False(t, comment.IsApproved)

	var visible []models.Comment
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, commentsPath, "", nil, &visible))
	assert.Empty(t, visible)

	var count struct {
		Count int64 `json:"count"`
	}
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/comments/pending/count", aliceToken, nil, &count))
	assert.Equal(t, int64(1), count.Count)

	approvePath := fmt.Sprintf("/api/comments/%d/approve", comment.ID)
	assert.Equal(t, http.StatusForbidden, ts.call(t, http.MethodPost, approvePath, carolToken, nil, nil))
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, approvePath, aliceToken, nil, nil))

	visible = nil
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, commentsPath, "", nil, &visible))
	require.Len(t, visible, 1)

	var got models.Post
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), "", nil, &got))
	assert.Equal(t, 1, got.CommentsCount)

	var reply struct {
		Reply        models.Reply `json:"reply"`
		ReplaysCount int          `json:"replays_count"`
	}
	repliesPath := fmt.Sprintf("/api/comments/%d/replies", comment.ID)
	require.Equal(t, http.StatusCreated, ts.call(t, http.MethodPost, repliesPath, aliceToken,
		map[string]string{"text": "Thanks"}, &reply))
	assert.Equal(t, 1, reply.ReplaysCount)

	var replies []models.Reply
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, repliesPath, "", nil, &replies))
	assert.Len(t, replies, 1)

	// Deleting the comment takes its replies with it and drops the counter.
	assert.Equal(t, http.StatusForbidden, ts.call(t, http.MethodDelete, fmt.Sprintf("/api/comments/%d", comment.ID), carolToken, nil, nil))
	require.Equal(t, http.StatusNoContent, ts.call(t, http.MethodDelete, fmt.Sprintf("/api/comments/%d", comment.ID), bobToken, nil, nil))

	got = models.Post{}
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), "", nil, &got))
	assert.Zero(t, got.CommentsCount)
	var left int64
	require.NoError(t, ts.db.Model(&models.Reply{}).Count(&left).Error)
	assert.Zero(t, left)
}

func TestInboxHandlers_Conversation(t *testing.T) {
	ts := newTestServer(t)
	_, aliceToken := ts.user(t, "alice", false)
	bob, bobToken := ts.user(t, "bob", false)
	_, carolToken := ts.user(t, "carol", false)

	var sent struct {
		ConversationID string         `json:"conversation_id"`
		Message        models.Message `json:"message"`
	}
	require.Equal(t, http.StatusCreated, ts.call(t, http.MethodPost,
		fmt.Sprintf("/api/inbox/users/%d/messages", bob.ID), aliceToken,
		map[string]string{"text": "hi bob"}, &sent))
	assert.Equal(t, "hi bob", sent.Message.Text)

	var unread struct {
		Count int64 `json:"count"`
	}
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/inbox/unread", bobToken, nil, &unread))
	assert.Equal(t, int64(1), unread.Count)

	var list []service.ConversationSummary
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/inbox", bobToken, nil, &list))
	require.Len(t, list, 1)
	assert.True(t, list[0].Unread)
	assert.Equal(t, "alice", list[0].Other.Username)

	convPath := "/api/inbox/" + sent.ConversationID
	var view service.ConversationView
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, convPath, bobToken, nil, &view))
	require.Len(t, view.Messages, 1)
	assert.Equal(t, "hi bob", view.Messages[0].Text)

	unread.Count = -1
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/inbox/unread", bobToken, nil, &unread))
	assert.Zero(t, unread.Count)

	assert.Equal(t, http.StatusCreated, ts.call(t, http.MethodPost, convPath+"/messages", bobToken,
		map[string]string{"text": "hey"}, nil))

	assert.Equal(t, http.StatusNotFound, ts.call(t, http.MethodGet, convPath, carolToken, nil, nil))
	assert.Equal(t, http.StatusBadRequest, ts.call(t, http.MethodGet, "/api/inbox/42", bobToken, nil, nil))
	assert.Equal(t, http.StatusBadRequest, ts.call(t, http.MethodPost,
		fmt.Sprintf("/api/inbox/users/%d/messages", bob.ID), bobToken, map[string]string{"text": "me"}, nil))

	var found []models.User
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/inbox/search?q=al", bobToken, nil, &found))
	require.Len(t, found, 1)
	assert.Equal(t, "alice", found[0].Username)
}

func TestProfileHandlers(t *testing.T) {
	ts := newTestServer(t)
	alice, aliceToken := ts.user(t, "alice", false)
	testutil.CreatePost(t, ts.db, alice, "Public")

	var public service.PublicProfile
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/users/alice", "", nil, &public))
	assert.Empty(t, public.User.Email)
	assert.Len(t, public.Posts, 1)

	assert.Equal(t, http.StatusNotFound, ts.call(t, http.MethodGet, "/api/users/nobody", "", nil, nil))

	var profile models.Profile
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPut, "/api/profile", aliceToken,
		map[string]any{"email": "alice@new.example", "bio": "Photographer"}, &profile))
	assert.Equal(t, "Photographer", profile.Bio)

	assert.Equal(t, http.StatusBadRequest, ts.call(t, http.MethodPut, "/api/profile", aliceToken,
		map[string]any{"email": "not-an-email"}, nil))

	var own service.OwnProfile
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/profile", aliceToken, nil, &own))
	assert.Equal(t, "alice@new.example", own.User.Email)

	req := httptest.NewRequest(http.MethodPost, "/api/profile/avatar", nil)
	req.Header.Set("Authorization", "Bearer "+aliceToken)
	assert.Equal(t, http.StatusBadRequest, ts.send(t, req, nil))
}
