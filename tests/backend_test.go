package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/ixdlabs/go-backend-template/internal/backend/app"
	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
	userpg "github.com/ixdlabs/go-backend-template/internal/backend/repository/userrepo/postgres"
	"github.com/ixdlabs/go-backend-template/internal/pkg/config"
	"github.com/ixdlabs/go-backend-template/internal/pkg/pgtools"
)

const (
	adminUsername = "admin"
	adminPassword = "admin-password-1"
)

type BackendSuite struct {
	suite.Suite
	cancel  context.CancelFunc
	baseURL string
	seq     int
}

func (bs *BackendSuite) SetupSuite() {
	cmd := exec.Command("docker", "compose", "-f", "./test-compose.yaml", "up")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		bs.T().Fatalf("cannot start docker compose error: %v", err)
	}

	cfg, err := config.New("config_test.yaml")
	if err != nil {
		bs.T().Fatalf("cannot get config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	a, err := app.New(ctx, cfg)
	if err != nil {
		cancel()
		bs.T().Fatalf("cannot get app error: %v", err)
	}

	bs.seedAdmin(ctx, cfg)

	bs.cancel = cancel
	bs.baseURL = "http://" + cfg.Server.Addr

	go a.Run(ctx)
	time.Sleep(time.Second * 2) // Time for the server and database to come up.
}

func (bs *BackendSuite) TearDownSuite() {
	bs.cancel()

	cmd := exec.Command("docker", "compose", "-f", "./test-compose.yaml", "down", "-v")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		bs.T().Fatalf("cannot down docker containers error: %v", err)
	}
}

// seedAdmin inserts the admin account directly; registration only
// creates customers.
func (bs *BackendSuite) seedAdmin(ctx context.Context, cfg config.Config) {
	pool, err := pgtools.Connect(ctx, cfg.PostgresDB.URL)
	if err != nil {
		bs.T().Fatalf("cannot connect for seeding error: %v", err)
	}
	defer pool.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		bs.T().Fatalf("cannot hash admin password error: %v", err)
	}

	now := time.Now().UTC()

	err = userpg.New(pool).CreateUser(ctx, models.User{
		ID:            uuid.New(),
		Type:          models.UserTypeAdmin,
		Username:      adminUsername,
		PasswordHash:  string(hash),
		PasswordSetAt: now,
		JoinedAt:      now,
	})
	if err != nil {
		bs.T().Fatalf("cannot seed admin error: %v", err)
	}
}

// Wire shapes shared by the scenarios.

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`  //nolint:tagliatelle
	RefreshToken string `json:"refresh_token"` //nolint:tagliatelle
	User         struct {
		ID       uuid.UUID `json:"id"`
		Type     string    `json:"type"`
		Username string    `json:"username"`
	} `json:"user"`
}

type problemResponse struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Status  int    `json:"status"`
	Detail  string `json:"detail"`
	TraceID string `json:"trace_id"` //nolint:tagliatelle
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"` //nolint:tagliatelle
	LastName  string    `json:"last_name"`  //nolint:tagliatelle
	Email     *string   `json:"email"`
}

type notificationItem struct {
	ID     uuid.UUID  `json:"id"`
	Type   string     `json:"type"`
	Title  string     `json:"title"`
	ReadAt *time.Time `json:"read_at"` //nolint:tagliatelle
}

type notificationPage struct {
	Count int                `json:"count"`
	Items []notificationItem `json:"items"`
}

type flagResponse struct {
	Name                string `json:"name"`
	Enabled             bool   `json:"enabled"`
	Supported           bool   `json:"supported"`
	EnabledAndSupported bool   `json:"enabled_and_supported"` //nolint:tagliatelle
}

func (bs *BackendSuite) request(ctx context.Context, method, path, token string, body interface{},
	headers map[string]string,
) *http.Response {
	var reader io.Reader

	if body != nil {
		b, err := json.Marshal(body)
		bs.Require().NoError(err)
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, bs.baseURL+path, reader)
	bs.Require().NoError(err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	bs.Require().NoError(err)

	return resp
}

func (bs *BackendSuite) decode(resp *http.Response, out interface{}) {
	defer resp.Body.Close()

	bs.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
}

// register creates a fresh customer and returns its token pair.
func (bs *BackendSuite) register(ctx context.Context, prefix string) tokenPairResponse {
	bs.seq++
	username := fmt.Sprintf("%s_%d_%d", prefix, os.Getpid(), bs.seq)

	resp := bs.request(ctx, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username":   username,
		"password":   "password-123",
		"first_name": "Test",
		"last_name":  "User",
	}, nil)
	bs.Require().Equal(http.StatusCreated, resp.StatusCode)

	var pair tokenPairResponse
	bs.decode(resp, &pair)
	bs.Require().Equal(username, pair.User.Username)
	bs.Require().NotEmpty(pair.AccessToken)

	return pair
}

func (bs *BackendSuite) loginAdmin(ctx context.Context) tokenPairResponse {
	resp := bs.request(ctx, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": adminUsername,
		"password": adminPassword,
	}, nil)
	bs.Require().Equal(http.StatusOK, resp.StatusCode)

	var pair tokenPairResponse
	bs.decode(resp, &pair)

	return pair
}

func (bs *BackendSuite) TestAuthFlow() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	// A new customer registers and reads their own profile.
	pair := bs.register(ctx, "auth")

	resp := bs.request(ctx, http.MethodGet, "/api/v1/users/me", pair.AccessToken, nil, nil)
	bs.Require().Equal(http.StatusOK, resp.StatusCode)

	var me userResponse
	bs.decode(resp, &me)
	bs.Require().Equal(pair.User.ID, me.ID)
	bs.Require().Equal("customer", me.Type)
	bs.Require().Nil(me.Email)

	// The refresh token rotates into a working pair.
	resp = bs.request(ctx, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, nil)
	bs.Require().Equal(http.StatusOK, resp.StatusCode)

	var next tokenPairResponse
	bs.decode(resp, &next)
	bs.Require().NotEmpty(next.AccessToken)

	resp = bs.request(ctx, http.MethodGet, "/api/v1/users/me", next.AccessToken, nil, nil)
	bs.Require().Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Without a token the profile is unreachable.
	resp = bs.request(ctx, http.MethodGet, "/api/v1/users/me", "", nil, nil)
	bs.Require().Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func (bs *BackendSuite) TestChangePassword() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	pair := bs.register(ctx, "pw")

	// A wrong current password is rejected with a typed error.
	resp := bs.request(ctx, http.MethodPost, "/api/v1/users/me/password", pair.AccessToken, map[string]string{
		"old_password": "not-the-password",
		"new_password": "next-password-123",
	}, nil)
	bs.Require().Equal(http.StatusBadRequest, resp.StatusCode)

	var problem problemResponse
	bs.decode(resp, &problem)
	bs.Require().Equal("users/common/change-password/password-incorrect", problem.Type)

	resp = bs.request(ctx, http.MethodPost, "/api/v1/users/me/password", pair.AccessToken, map[string]string{
		"old_password": "password-123",
		"new_password": "next-password-123",
	}, nil)
	bs.Require().Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The new password logs in.
	resp = bs.request(ctx, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": pair.User.Username,
		"password": "next-password-123",
	}, nil)
	bs.Require().Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func (bs *BackendSuite) TestErrorResponseShape() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	pair := bs.register(ctx, "err")

	resp := bs.request(ctx, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": pair.User.Username,
		"password": "wrong-password",
	}, nil)
	bs.Require().Equal(http.StatusUnauthorized, resp.StatusCode)
	bs.Require().Equal("application/json", resp.Header.Get("Content-Type"))

	var problem problemResponse
	bs.decode(resp, &problem)
	bs.Require().Equal("users/common/login/invalid-credentials", problem.Type)
	bs.Require().Equal("Unauthorized", problem.Title)
	bs.Require().Equal(http.StatusUnauthorized, problem.Status)
	bs.Require().NotEmpty(problem.Detail)
	bs.Require().Len(problem.TraceID, 32)
}

func (bs *BackendSuite) TestFeatureFlags() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	// The statically configured flag resolves for a client announcing it.
	resp := bs.request(ctx, http.MethodGet, "/api/v1/flags/welcome_banner", "", nil,
		map[string]string{"X-Feature-Flags": "welcome_banner, dark_mode"})
	bs.Require().Equal(http.StatusOK, resp.StatusCode)

	var flag flagResponse
	bs.decode(resp, &flag)
	bs.Require().True(flag.Enabled)
	bs.Require().True(flag.Supported)
	bs.Require().True(flag.EnabledAndSupported)

	// Without the header the flag stays enabled but unsupported.
	resp = bs.request(ctx, http.MethodGet, "/api/v1/flags/welcome_banner", "", nil, nil)
	bs.Require().Equal(http.StatusOK, resp.StatusCode)

	bs.decode(resp, &flag)
	bs.Require().True(flag.Enabled)
	bs.Require().False(flag.Supported)
	bs.Require().False(flag.EnabledAndSupported)
}

func (bs *BackendSuite) TestHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	resp := bs.request(ctx, http.MethodGet, "/api/health", "", nil, nil)
	bs.Require().Equal(http.StatusOK, resp.StatusCode)

	var health struct {
		Status string `json:"status"`
	}
	bs.decode(resp, &health)
	bs.Require().Equal("ok", health.Status)
}

func (bs *BackendSuite) TestNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	// Tasks run eagerly, so the welcome notification lands during
	// registration.
	pair := bs.register(ctx, "notif")

	resp := bs.request(ctx, http.MethodGet, "/api/v1/notifications", pair.AccessToken, nil, nil)
	bs.Require().Equal(http.StatusOK, resp.StatusCode)

	var page notificationPage
	bs.decode(resp, &page)
	bs.Require().Equal(1, page.Count)
	bs.Require().Equal("welcome", page.Items[0].Type)
	bs.Require().Nil(page.Items[0].ReadAt)

	var summary struct {
		UnreadCount int `json:"unread_count"` //nolint:tagliatelle
	}

	resp = bs.request(ctx, http.MethodGet, "/api/v1/notifications/summary", pair.AccessToken, nil, nil)
	bs.Require().Equal(http.StatusOK, resp.StatusCode)
	bs.decode(resp, &summary)
	bs.Require().Equal(1, summary.UnreadCount)

	resp = bs.request(ctx, http.MethodPost,
		"/api/v1/notifications/"+page.Items[0].ID.String()+"/read", pair.AccessToken, nil, nil)
	bs.Require().Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = bs.request(ctx, http.MethodGet, "/api/v1/notifications/summary", pair.AccessToken, nil, nil)
	bs.Require().Equal(http.StatusOK, resp.StatusCode)
	bs.decode(resp, &summary)
	bs.Require().Equal(0, summary.UnreadCount)

	// Another user's feed does not leak the notification.
	other := bs.register(ctx, "notif_other")

	resp = bs.request(ctx, http.MethodGet,
		"/api/v1/notifications/"+page.Items[0].ID.String(), other.AccessToken, nil, nil)
	bs.Require().Equal(http.StatusNotFound, resp.StatusCode)

	var problem problemResponse
	bs.decode(resp, &problem)
	bs.Require().Equal("notifications/common/detail-notification/notification-not-found", problem.Type)
}

func (bs *BackendSuite) TestPreferences() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	admin := bs.loginAdmin(ctx)
	customer := bs.register(ctx, "pref")

	// Customers cannot write preferences.
	resp := bs.request(ctx, http.MethodPut, "/api/v1/preferences/feature_flag.rollout",
		customer.AccessToken, map[string]string{"value": "true"}, nil)
	bs.Require().Equal(http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// The admin flips a flag override and it becomes visible to flag
	// resolution immediately.
	resp = bs.request(ctx, http.MethodPut, "/api/v1/preferences/feature_flag.rollout",
		admin.AccessToken, map[string]string{"value": "true"}, nil)
	bs.Require().Equal(http.StatusOK, resp.StatusCode)

	var pref struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	bs.decode(resp, &pref)
	bs.Require().Equal("feature_flag.rollout", pref.Key)
	bs.Require().Equal("true", pref.Value)

	resp = bs.request(ctx, http.MethodGet, "/api/v1/flags/rollout", "", nil,
		map[string]string{"X-Feature-Flags": "rollout"})
	bs.Require().Equal(http.StatusOK, resp.StatusCode)

	var flag flagResponse
	bs.decode(resp, &flag)
	bs.Require().True(flag.EnabledAndSupported)
}

func (bs *BackendSuite) TestUsersAdmin() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	admin := bs.loginAdmin(ctx)
	customer := bs.register(ctx, "adm")

	// Listing users is admin only.
	resp := bs.request(ctx, http.MethodGet, "/api/v1/users", customer.AccessToken, nil, nil)
	bs.Require().Equal(http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = bs.request(ctx, http.MethodGet, "/api/v1/users", admin.AccessToken, nil, nil)
	bs.Require().Equal(http.StatusOK, resp.StatusCode)

	var page struct {
		Count int `json:"count"`
	}
	bs.decode(resp, &page)
	bs.Require().GreaterOrEqual(page.Count, 2)

	// Detail is admin or self.
	resp = bs.request(ctx, http.MethodGet, "/api/v1/users/"+customer.User.ID.String(),
		admin.AccessToken, nil, nil)
	bs.Require().Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = bs.request(ctx, http.MethodGet, "/api/v1/users/"+admin.User.ID.String(),
		customer.AccessToken, nil, nil)
	bs.Require().Equal(http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Updating another user needs the admin scope.
	resp = bs.request(ctx, http.MethodPut, "/api/v1/users/"+admin.User.ID.String(),
		customer.AccessToken, map[string]string{"first_name": "Nope", "last_name": "Nope"}, nil)
	bs.Require().Equal(http.StatusForbidden, resp.StatusCode)

	var problem problemResponse
	bs.decode(resp, &problem)
	bs.Require().Equal("users/admin/update/not-authorized", problem.Type)

	resp = bs.request(ctx, http.MethodPut, "/api/v1/users/"+customer.User.ID.String(),
		admin.AccessToken, map[string]string{"first_name": "Renamed", "last_name": "User"}, nil)
	bs.Require().Equal(http.StatusOK, resp.StatusCode)

	var updated userResponse
	bs.decode(resp, &updated)
	bs.Require().Equal("Renamed", updated.FirstName)

	// The admin removes the account; its token no longer resolves a user.
	resp = bs.request(ctx, http.MethodDelete, "/api/v1/users/"+customer.User.ID.String(),
		admin.AccessToken, nil, nil)
	bs.Require().Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = bs.request(ctx, http.MethodGet, "/api/v1/users/me", customer.AccessToken, nil, nil)
	bs.Require().Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestBackendSuite(t *testing.T) {
	suite.Run(t, new(BackendSuite))
}
