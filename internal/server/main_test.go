package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"tidepool/internal/config"
	"tidepool/internal/database"
	"tidepool/internal/models"
	"tidepool/internal/repository"
	"tidepool/internal/service"
	"tidepool/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	_ = os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

var handlerTestDBSeq atomic.Int64

func newHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:handlertest%d?mode=memory&cache=shared", handlerTestDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// captureMailer records outbound mail instead of sending it.
type captureMailer struct {
	mu    sync.Mutex
	links []string
	to    []string
}

func (m *captureMailer) SendActivation(_ context.Context, to, _, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	m.links = append(m.links, link)
	return nil
}

func (m *captureMailer) SendPasswordReset(_ context.Context, to, _, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	m.links = append(m.links, link)
	return nil
}

func (m *captureMailer) lastLink(t *testing.T) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.links, "no mail was sent")
	return m.links[len(m.links)-1]
}

type testEnv struct {
	server *Server
	app    *fiber.App
	mailer *captureMailer
	store  *testutil.MemoryStore
}

// newTestEnv builds a server over a fresh in-memory database with mail
// and image storage stubbed out. Redis is absent; rate limits are
// bypassed in the test environment and caching degrades to the DB.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newHandlerTestDB(t)
	cfg := &config.Config{
		JWTSecret: "handler-test-secret",
		Env:       "test",
		ClientURL: "http://localhost:5173",
	}

	mailer := &captureMailer{}
	store := testutil.NewMemoryStore()

	s := &Server{
		config:     cfg,
		db:         db,
		userRepo:   repository.NewUserRepository(db),
		postRepo:   repository.NewPostRepository(db),
		followRepo: repository.NewFollowRepository(db),
		notifRepo:  repository.NewNotificationRepository(db),
		mailer:     mailer,
	}
	s.wireServices(service.NewImageService(store))

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupRoutes(app)

	return &testEnv{server: s, app: app, mailer: mailer, store: store}
}

const testPassword = "sunken-harbor-9"

func (e *testEnv) createUser(t *testing.T, name, email string, admin bool) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	role := models.RoleUser
	if admin {
		role = models.RoleAdmin
	}
	user := &models.User{
		Name:     name,
		Username: generateUsername(name),
		Email:    email,
		Password: string(hash),
		Role:     role,
		Active:   true,
	}
	require.NoError(t, e.server.userRepo.Create(context.Background(), user))
	return user
}

func (e *testEnv) token(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := e.server.generateToken(user.ID, user.Username)
	require.NoError(t, err)
	return token
}

func jsonRequest(t *testing.T, method, path string, body any, token string) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func (e *testEnv) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := e.app.Test(req, 10000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
