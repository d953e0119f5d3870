package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemed-health/telemed-api/config"
	"github.com/telemed-health/telemed-api/db"
	"github.com/telemed-health/telemed-api/models"
	"github.com/telemed-health/telemed-api/services"
)

const testSecret = "test-secret"

type mockRecorder struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (m *mockRecorder) Record(entry models.AuditLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
}

func (m *mockRecorder) all() []models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AuditLog(nil), m.entries...)
}

func setupDB(t *testing.T) {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	prev := db.DB
	db.DB = conn
	t.Cleanup(func() {
		db.DB = prev
		db.Close(conn)
	})
}

func createUser(t *testing.T, u models.User) *models.User {
	t.Helper()
	u.IsActive = true
	require.NoError(t, db.DB.Create(&u).Error)
	return &u
}

func accessToken(t *testing.T, u *models.User) string {
	t.Helper()
	pair, err := services.NewTokenIssuer(testSecret, time.Minute, time.Hour).Issue(u)
	require.NoError(t, err)
	return pair.Access
}

func detailOf(t *testing.T, body io.Reader) string {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	s, _ := out["detail"].(string)
	return s
}

func whoAmI(c *fiber.Ctx) error {
	id, _ := UserID(c)
	return c.JSON(fiber.Map{"id": id})
}

func TestProtected(t *testing.T) {
	issuer := services.NewTokenIssuer(testSecret, time.Minute, time.Hour)
	user := &models.User{ID: 7, Username: "jane", Role: models.RolePatient}
	pair, err := issuer.Issue(user)
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/me", Protected([]byte(testSecret)), whoAmI)

	tests := []struct {
		name   string
		header string
		status int
		detail string
	}{
		{"missing header", "", fiber.StatusUnauthorized, "Authentication credentials were not provided."},
		{"garbage token", "Bearer not-a-jwt", fiber.StatusUnauthorized, "Given token not valid for any token type"},
		{"refresh token rejected", "Bearer " + pair.Refresh, fiber.StatusUnauthorized, "Given token not valid for any token type"},
		{"access token", "Bearer " + pair.Access, fiber.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.detail != "" {
				assert.Equal(t, tt.detail, detailOf(t, resp.Body))
			}
		})
	}

	t.Run("wrong secret", func(t *testing.T) {
		other, err := services.NewTokenIssuer("other", time.Minute, time.Hour).Issue(user)
		require.NoError(t, err)
		req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+other.Access)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestRequireStaff(t *testing.T) {
	setupDB(t)
	patient := createUser(t, models.User{Username: "pat"})
	staff := createUser(t, models.User{Username: "staff", IsStaff: true})
	admin := createUser(t, models.User{Username: "root", Role: models.RoleAdmin})

	app := fiber.New()
	app.Get("/admin/users/", Protected([]byte(testSecret)), RequireStaff(), whoAmI)

	for _, tc := range []struct {
		user   *models.User
		status int
	}{
		{patient, fiber.StatusForbidden},
		{staff, fiber.StatusOK},
		{admin, fiber.StatusOK},
	} {
		req := httptest.NewRequest(fiber.MethodGet, "/admin/users/", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+accessToken(t, tc.user))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, tc.user.Username)
	}

	t.Run("revoked staff flag applies immediately", func(t *testing.T) {
		token := accessToken(t, staff)
		require.NoError(t, db.DB.Model(staff).Update("is_staff", false).Error)
		req := httptest.NewRequest(fiber.MethodGet, "/admin/users/", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "You do not have permission to perform this action.", detailOf(t, resp.Body))
	})
}

func TestWritePolicy(t *testing.T) {
	setupDB(t)
	patient := createUser(t, models.User{Username: "pat"})
	staff := createUser(t, models.User{Username: "staff", IsStaff: true})

	build := func(policy string) *fiber.App {
		app := fiber.New()
		g := app.Group("/api/patients", Protected([]byte(testSecret)), WritePolicy(policy))
		g.Get("/", whoAmI)
		g.Post("/", whoAmI)
		return app
	}

	do := func(app *fiber.App, method string, u *models.User) int {
		req := httptest.NewRequest(method, "/api/patients/", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+accessToken(t, u))
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	open := build(config.WritePolicyAuthenticated)
	assert.Equal(t, fiber.StatusOK, do(open, fiber.MethodPost, patient))

	strict := build(config.WritePolicyStaff)
	assert.Equal(t, fiber.StatusOK, do(strict, fiber.MethodGet, patient))
	assert.Equal(t, fiber.StatusForbidden, do(strict, fiber.MethodPost, patient))
	assert.Equal(t, fiber.StatusOK, do(strict, fiber.MethodPost, staff))
}

func TestAudit(t *testing.T) {
	rec := &mockRecorder{}
	app := fiber.New()
	app.Use(RequestID())
	app.Use(Audit(rec))
	app.Get("/health/", func(c *fiber.Ctx) error { return c.SendString("ok") }).Name("health")
	app.Get("/api/ping/", func(c *fiber.Ctx) error { return c.SendString("pong") }).Name("ping")
	app.Get("/api/patients/:id/", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "not found")
	})
	app.Post("/api/auth/request-otp/", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "username is required"})
	}).Name("request_otp")

	send := func(method, path string) int {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set(fiber.HeaderUserAgent, "test-agent")
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, send(fiber.MethodGet, "/health/"))
	assert.Empty(t, rec.all(), "paths outside /api/ and /admin/ are not audited")

	assert.Equal(t, fiber.StatusOK, send(fiber.MethodGet, "/api/ping/"))
	assert.Equal(t, fiber.StatusNotFound, send(fiber.MethodGet, "/api/patients/42/"))
	assert.Equal(t, fiber.StatusBadRequest, send(fiber.MethodPost, "/api/auth/request-otp/"))
	send(fiber.MethodGet, "/admin/unknown/")

	entries := rec.all()
	require.Len(t, entries, 4)

	assert.Equal(t, "GET ping", entries[0].Action)
	assert.EqualValues(t, fiber.StatusOK, entries[0].Metadata["status_code"])
	assert.NotEmpty(t, entries[0].Metadata["request_id"])
	assert.Equal(t, "test-agent", entries[0].UserAgent)
	assert.Nil(t, entries[0].ActorID)

	assert.Equal(t, "GET /api/patients/:id/", entries[1].Action)
	assert.EqualValues(t, fiber.StatusNotFound, entries[1].Metadata["status_code"])

	assert.Equal(t, "POST request_otp", entries[2].Action)
	assert.EqualValues(t, fiber.StatusBadRequest, entries[2].Metadata["status_code"])

	assert.Equal(t, "GET /admin/unknown/", entries[3].Action)
	assert.EqualValues(t, fiber.StatusNotFound, entries[3].Metadata["status_code"])
}

func TestAudit_KeepsClientRequestIDs(t *testing.T) {
	rec := &mockRecorder{}
	app := fiber.New()
	app.Use(RequestID())
	app.Use(Audit(rec))
	app.Get("/api/ping/", func(c *fiber.Ctx) error { return c.SendString("pong") }).Name("ping")

	ids := []string{
		strings.Repeat("A", 36),
		strings.Repeat("B", 36),
		strings.Repeat("C", 36),
	}
	for _, id := range ids {
		req := httptest.NewRequest(fiber.MethodGet, "/api/ping/", nil)
		req.Header.Set(fiber.HeaderXRequestID, id)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	entries := rec.all()
	require.Len(t, entries, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, entries[i].Metadata["request_id"])
	}
}

func TestAudit_RecordsActor(t *testing.T) {
	rec := &mockRecorder{}
	app := fiber.New()
	app.Use(Audit(rec))
	app.Get("/api/me/", Protected([]byte(testSecret)), whoAmI).Name("me")

	user := &models.User{ID: 3, Username: "jane", Role: models.RolePatient}
	req := httptest.NewRequest(fiber.MethodGet, "/api/me/", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+accessToken(t, user))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	entries := rec.all()
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].ActorID)
	assert.Equal(t, uint(3), *entries[0].ActorID)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(RequestID())
	app.Use(RequestLogger(zerolog.New(&buf)))
	app.Get("/health/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest(fiber.MethodGet, "/health/", nil)
	req.Header.Set(fiber.HeaderXRequestID, "rid-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "rid-1", resp.Header.Get(fiber.HeaderXRequestID))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "rid-1", line["request_id"])
	assert.Equal(t, "/health/", line["path"])
	assert.EqualValues(t, 200, line["status"])
}
