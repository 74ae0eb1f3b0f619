package server

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"tidepool/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linkToken(t *testing.T, link string) string {
	t.Helper()
	_, token, found := strings.Cut(link, "token=")
	require.True(t, found, "link %q carries no token", link)
	return token
}

func TestRegisterActivateLoginFlow(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp := env.do(t, jsonRequest(t, http.MethodPost, "/register", map[string]string{
		"firstName": "Marina",
		"lastName":  "Reyes",
		"email":     "Marina@Example.com",
		"password":  testPassword,
	}, ""))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Nothing persists until activation.
	var count int64
	env.server.db.Model(&models.User{}).Count(&count)
	assert.Zero(t, count)

	resp = env.do(t, jsonRequest(t, http.MethodPost, "/activate-user", map[string]string{
		"activation_token": linkToken(t, env.mailer.lastLink(t)),
	}, ""))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var activated struct {
		User models.User `json:"user"`
	}
	decodeBody(t, resp, &activated)
	assert.Equal(t, "Marina Reyes", activated.User.Name)
	assert.Equal(t, "marina@example.com", activated.User.Email)
	assert.True(t, strings.HasPrefix(activated.User.Username, "MarinaReyes"))

	resp = env.do(t, jsonRequest(t, http.MethodPost, "/login", map[string]string{
		"email":    "MARINA@example.com",
		"password": testPassword,
	}, ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login struct {
		AccessToken string      `json:"accessToken"`
		User        models.User `json:"user"`
	}
	decodeBody(t, resp, &login)
	assert.NotEmpty(t, login.AccessToken)
	assert.Equal(t, activated.User.ID, login.User.ID)

	var cookie string
	for _, ck := range resp.Cookies() {
		if ck.Name == accessCookie {
			cookie = ck.Value
			assert.True(t, ck.HttpOnly)
		}
	}
	assert.Equal(t, login.AccessToken, cookie)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing name", map[string]string{"email": "a@b.co", "password": testPassword}},
		{"bad email", map[string]string{"firstName": "A", "email": "nope", "password": testPassword}},
		{"short password", map[string]string{"firstName": "A", "email": "a@b.co", "password": "abc"}},
		{"mismatched confirm", map[string]string{
			"firstName": "A", "email": "a@b.co",
			"password": testPassword, "confirmPassword": "something-else",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, jsonRequest(t, http.MethodPost, "/register", tt.body, ""))
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.createUser(t, "Existing", "taken@example.com", false)

	resp := env.do(t, jsonRequest(t, http.MethodPost, "/register", map[string]string{
		"firstName": "New",
		"email":     "taken@example.com",
		"password":  testPassword,
	}, ""))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestActivate_InvalidToken(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp := env.do(t, jsonRequest(t, http.MethodPost, "/activate-user", map[string]string{
		"activation_token": "not-a-token",
	}, ""))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestActivate_AccessTokenRejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := env.createUser(t, "Someone", "someone@example.com", false)

	// An access token must not pass for an activation token.
	resp := env.do(t, jsonRequest(t, http.MethodPost, "/activate-user", map[string]string{
		"activation_token": env.token(t, user),
	}, ""))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogin_Failures(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := env.createUser(t, "Pat", "pat@example.com", false)

	t.Run("unknown email", func(t *testing.T) {
		resp := env.do(t, jsonRequest(t, http.MethodPost, "/login", map[string]string{
			"email": "nobody@example.com", "password": testPassword,
		}, ""))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := env.do(t, jsonRequest(t, http.MethodPost, "/login", map[string]string{
			"email": user.Email, "password": "wrong-password",
		}, ""))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("suspended account", func(t *testing.T) {
		suspended := env.createUser(t, "Banned", "banned@example.com", false)
		require.NoError(t, env.server.userRepo.SetActive(context.Background(), suspended.ID, false))

		resp := env.do(t, jsonRequest(t, http.MethodPost, "/login", map[string]string{
			"email": suspended.Email, "password": testPassword,
		}, ""))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestLogout_ClearsCookie(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := env.createUser(t, "Lee", "lee@example.com", false)

	resp := env.do(t, jsonRequest(t, http.MethodGet, "/logout", nil, env.token(t, user)))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, ck := range resp.Cookies() {
		if ck.Name == accessCookie {
			assert.Empty(t, ck.Value)
		}
	}
}

func TestPasswordResetFlow(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := env.createUser(t, "Noor", "noor@example.com", false)

	resp := env.do(t, jsonRequest(t, http.MethodPost, "/forgot-password", map[string]string{
		"email": user.Email,
	}, ""))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	token := linkToken(t, env.mailer.lastLink(t))

	t.Run("reusing the old password is rejected", func(t *testing.T) {
		resp := env.do(t, jsonRequest(t, http.MethodPost, "/reset-password", map[string]string{
			"token": token, "newPassword": testPassword,
		}, ""))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	resp = env.do(t, jsonRequest(t, http.MethodPost, "/reset-password", map[string]string{
		"token": token, "newPassword": "brand-new-passphrase",
	}, ""))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Old password no longer works, new one does.
	resp = env.do(t, jsonRequest(t, http.MethodPost, "/login", map[string]string{
		"email": user.Email, "password": testPassword,
	}, ""))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, jsonRequest(t, http.MethodPost, "/login", map[string]string{
		"email": user.Email, "password": "brand-new-passphrase",
	}, ""))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp := env.do(t, jsonRequest(t, http.MethodPost, "/forgot-password", map[string]string{
		"email": "ghost@example.com",
	}, ""))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
