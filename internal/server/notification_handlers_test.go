package server

import (
	"net/http"
	"testing"

	"tidepool/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetNotifications(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	author := env.createUser(t, "Author", "author@example.com", false)
	fan := env.createUser(t, "Fan", "fan@example.com", false)
	postID := env.createPost(t, author, "Popular post")

	resp := env.do(t, jsonRequest(t, http.MethodPut, "/update-likes",
		map[string]any{"postId": postID}, env.token(t, fan)))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, jsonRequest(t, http.MethodGet, "/get-notifications", nil, env.token(t, author)))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Notifications []models.Notification `json:"notifications"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, models.NotificationStatusUnread, body.Notifications[0].Status)
	assert.Equal(t, fan.ID, body.Notifications[0].Creator.UserID)

	// The liker sees nothing; notifications are recipient-scoped.
	resp = env.do(t, jsonRequest(t, http.MethodGet, "/get-notifications", nil, env.token(t, fan)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &body)
	assert.Empty(t, body.Notifications)
}

func TestUpdateNotification_MarkRead(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	author := env.createUser(t, "Author", "author@example.com", false)
	fan := env.createUser(t, "Fan", "fan@example.com", false)
	postID := env.createPost(t, author, "Post")

	resp := env.do(t, jsonRequest(t, http.MethodPut, "/update-likes",
		map[string]any{"postId": postID}, env.token(t, fan)))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	notifs := env.notificationsFor(t, author.ID)
	require.Len(t, notifs, 1)
	id := notifs[0].ID

	t.Run("recipient can mark read", func(t *testing.T) {
		resp := env.do(t, jsonRequest(t, http.MethodPut,
			"/update-notification/"+itoa(id), nil, env.token(t, author)))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Notification models.Notification `json:"notification"`
		}
		decodeBody(t, resp, &body)
		assert.Equal(t, models.NotificationStatusRead, body.Notification.Status)
	})

	t.Run("someone else's notification is invisible", func(t *testing.T) {
		resp := env.do(t, jsonRequest(t, http.MethodPut,
			"/update-notification/"+itoa(id), nil, env.token(t, fan)))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
