package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/rongwang/staff-scheduler/internal/api"
	"github.com/rongwang/staff-scheduler/internal/config"
	"github.com/rongwang/staff-scheduler/internal/models"
	"github.com/rongwang/staff-scheduler/internal/repository"
	"github.com/rongwang/staff-scheduler/internal/service"
	"github.com/rongwang/staff-scheduler/internal/utils"
	"github.com/stretchr/testify/require"
)

const (
	AdminEmail    = "admin@example.com"
	AdminPassword = "adminpassword"
)

// tables in dependency order; TRUNCATE ... CASCADE takes care of the rest
var testTables = []string{
	"expenses", "expense_categories", "audit_logs", "notifications", "board_posts", "tasks",
	"monthly_requirements", "unavailability", "restricted_days", "schedules",
	"leave_requests", "leave_allocations", "leave_types",
	"user_roles", "role_permissions", "permissions", "roles", "users",
}

// TestContext holds all dependencies for tests
type TestContext struct {
	Router     *gin.Engine
	Repository repository.Repository
	Service    service.Service
	DB         *sqlx.DB
	AdminID    string
	AdminJWT   string
}

// SetupTestContext creates a new test context backed by the test database.
// The test is skipped when Postgres is not reachable.
func SetupTestContext(t *testing.T) *TestContext {
	t.Helper()

	// Load configuration from environment
	cfg := config.LoadConfig()
	cfg.Database.DBName = cfg.Database.TestDBName
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "staff_scheduler_test"
	}
	cfg.Auth.JWTSecret = "test-secret-key"

	db, err := config.SetupDatabase(cfg)
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}

	logger := utils.Discard()
	repo := repository.NewPostgresRepository(db)
	cleanupTestDatabase(t, repo.GetDB())
	svc := service.NewDefaultService(repo, service.NewStoreEmitter(repo, logger), logger, cfg)
	require.NoError(t, svc.SeedDefaults(context.Background()), "Failed to seed defaults")

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"http://localhost:3000"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
	}))
	router.Use(api.JWTSecretMiddleware(cfg.Auth.JWTSecret))
	api.NewHandler(svc, logger).SetupRoutes(router)

	tc := &TestContext{
		Router:     router,
		Repository: repo,
		Service:    svc,
		DB:         db,
	}

	// the first account becomes the administrator
	tc.AdminID, tc.AdminJWT = tc.CreateUser(t, AdminEmail, AdminPassword, "Ada", "Admin")
	return tc
}

// CleanupTestContext cleans up test resources
func CleanupTestContext(tc *TestContext) {
	if tc.DB != nil {
		cleanupTestDatabase(nil, tc.DB)
		tc.DB.Close()
	}
}

// cleanupTestDatabase removes all rows left over by earlier tests
func cleanupTestDatabase(t *testing.T, db *sqlx.DB) {
	_, err := db.Exec("TRUNCATE " + strings.Join(testTables, ", ") + " CASCADE")
	if t != nil && err != nil {
		t.Logf("Warning: Failed to clean test tables: %v", err)
	}
}

// CreateUser signs a user up through the service and logs them in
func (tc *TestContext) CreateUser(t *testing.T, email, password, firstName, lastName string) (string, string) {
	t.Helper()
	ctx := context.Background()

	resp, err := tc.Service.SignUp(ctx, models.SignUpRequest{
		Email:     email,
		Password:  password,
		FirstName: firstName,
		LastName:  lastName,
	})
	require.NoError(t, err, "Failed to create test user")

	login, err := tc.Service.Login(ctx, models.LoginRequest{Email: email, Password: password})
	require.NoError(t, err, "Failed to log test user in")

	return resp.UserID, login.Token
}

// LeaveTypeID looks up a seeded leave type by name
func (tc *TestContext) LeaveTypeID(t *testing.T, name string) string {
	t.Helper()
	lt, err := tc.Repository.GetLeaveTypeByName(context.Background(), name)
	require.NoError(t, err)
	require.NotNil(t, lt, "leave type %s not seeded", name)
	return lt.ID
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}

// DecodeJSON unmarshals a recorded response body
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), "body: %s", w.Body.String())
}
