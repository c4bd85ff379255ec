package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	userapp "github.com/geocontrol/parental-api/internal/application"
	"github.com/geocontrol/parental-api/internal/domain"
	"github.com/geocontrol/parental-api/internal/domain/entity"
	"github.com/geocontrol/parental-api/pkg/helpers"
	"github.com/geocontrol/parental-api/pkg/validation"
)

var initOnce sync.Once

func setupRouter(t *testing.T) (*gin.Engine, *stubRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	initOnce.Do(validation.Init)

	repo := &stubRepo{users: map[string]*entity.User{}}
	hasher := helpers.NewHasher(bcrypt.MinCost)
	jwt := helpers.NewJWTManager("test-access", "test-refresh", time.Minute, time.Hour)
	svc := userapp.NewService(repo, hasher, jwt, nil, nil, nil, "", nil, false, true)
	h := NewUserHandler(svc, nil, "localhost", false)

	r := gin.New()
	r.POST("/api/users", h.Create)
	r.GET("/api/users", h.List)
	r.GET("/api/users/username/:username", h.GetByUsername)
	r.GET("/api/users/:id", h.GetByID)
	r.PUT("/api/users/:id", h.Update)
	r.DELETE("/api/users/:id", h.Delete)
	r.PATCH("/api/users/:id/activate", h.Activate)
	r.PATCH("/api/users/:id/deactivate", h.Deactivate)
	r.POST("/api/login", h.Login)
	return r, repo
}

type stubRepo struct {
	seq   int
	users map[string]*entity.User
}

func (m *stubRepo) Create(ctx context.Context, u *entity.User) error {
	m.seq++
	u.ID = fmt.Sprintf("id-%d", m.seq)
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *stubRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *stubRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *stubRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *stubRepo) List(ctx context.Context, skip, limit int) ([]entity.User, error) {
	ordered := make([]entity.User, 0, len(m.users))
	for i := 1; i <= m.seq; i++ {
		if u, ok := m.users[fmt.Sprintf("id-%d", i)]; ok {
			ordered = append(ordered, *u)
		}
	}
	if skip >= len(ordered) {
		return []entity.User{}, nil
	}
	ordered = ordered[skip:]
	if limit < len(ordered) {
		ordered = ordered[:limit]
	}
	return ordered, nil
}

func (m *stubRepo) Update(ctx context.Context, u *entity.User) error {
	if _, ok := m.users[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *stubRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   map[string]any  `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func createUser(t *testing.T, r *gin.Engine, email, username string) entity.Projection {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/users", gin.H{
		"email":    email,
		"username": username,
		"password": "secret4you",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p entity.Projection
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &p))
	return p
}

func TestCreateUserEndpoint(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/users", gin.H{
		"email":     "alice@example.com",
		"username":  "alice_01",
		"full_name": "Alice Doe",
		"password":  "secret4you",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)
	assert.NotContains(t, w.Body.String(), "hashed_password")
	assert.NotContains(t, w.Body.String(), "$2")

	var p entity.Projection
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "alice@example.com", p.Email)
	assert.True(t, p.IsActive)
}

func TestCreateUserEndpointRejectsBadPayload(t *testing.T) {
	r, _ := setupRouter(t)

	cases := []struct {
		name string
		body gin.H
	}{
		{"missing email", gin.H{"password": "secret4you"}},
		{"bad email", gin.H{"email": "nope", "password": "secret4you"}},
		{"weak password", gin.H{"email": "a@b.com", "password": "abc"}},
		{"bad username", gin.H{"email": "a@b.com", "username": "x", "password": "secret4you"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/api/users", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.False(t, decodeEnvelope(t, w).Success)
		})
	}
}

func TestCreateUserEndpointConflict(t *testing.T) {
	r, _ := setupRouter(t)
	createUser(t, r, "dup@example.com", "dupuser")

	w := doJSON(t, r, http.MethodPost, "/api/users", gin.H{
		"email":    "dup@example.com",
		"password": "secret4you",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "email", env.Error["field"])
}

func TestGetUserEndpoints(t *testing.T) {
	r, _ := setupRouter(t)
	p := createUser(t, r, "get@example.com", "getme")

	w := doJSON(t, r, http.MethodGet, "/api/users/"+p.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/users/username/getme", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/users/missing-id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/users/username/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListUsersEndpoint(t *testing.T) {
	r, _ := setupRouter(t)
	for i := 0; i < 3; i++ {
		createUser(t, r, fmt.Sprintf("u%d@example.com", i), fmt.Sprintf("user_%d", i))
	}

	w := doJSON(t, r, http.MethodGet, "/api/users?skip=1&limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page []entity.Projection
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &page))
	require.Len(t, page, 1)
	assert.Equal(t, "u1@example.com", page[0].Email)
}

func TestUpdateUserEndpoint(t *testing.T) {
	r, _ := setupRouter(t)
	p := createUser(t, r, "upd@example.com", "upduser")

	w := doJSON(t, r, http.MethodPut, "/api/users/"+p.ID, gin.H{"full_name": "Renamed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated entity.Projection
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &updated))
	assert.Equal(t, "Renamed", updated.FullName)
	assert.Equal(t, "upd@example.com", updated.Email)

	w = doJSON(t, r, http.MethodPut, "/api/users/missing", gin.H{"full_name": "X"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteUserEndpoint(t *testing.T) {
	r, _ := setupRouter(t)
	p := createUser(t, r, "del@example.com", "deluser")

	w := doJSON(t, r, http.MethodDelete, "/api/users/"+p.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "User deluser deleted successfully")

	w = doJSON(t, r, http.MethodDelete, "/api/users/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActivationEndpoints(t *testing.T) {
	r, _ := setupRouter(t)
	p := createUser(t, r, "act@example.com", "actuser")

	w := doJSON(t, r, http.MethodPatch, "/api/users/"+p.ID+"/deactivate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out entity.Projection
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &out))
	assert.False(t, out.IsActive)

	w = doJSON(t, r, http.MethodPatch, "/api/users/"+p.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &out))
	assert.True(t, out.IsActive)

	w = doJSON(t, r, http.MethodPatch, "/api/users/missing/activate", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoginEndpoint(t *testing.T) {
	r, _ := setupRouter(t)
	p := createUser(t, r, "login@example.com", "loginuser")

	w := doJSON(t, r, http.MethodPost, "/api/login", gin.H{
		"email":    "login@example.com",
		"password": "secret4you",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cookies := w.Result().Cookies()
	names := make(map[string]bool, len(cookies))
	for _, c := range cookies {
		names[c.Name] = true
	}
	assert.True(t, names["access_token"])
	assert.True(t, names["refresh_token"])

	w = doJSON(t, r, http.MethodPost, "/api/login", gin.H{
		"email":    "login@example.com",
		"password": "wrong2password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// deactivated accounts are rejected with 403
	doJSON(t, r, http.MethodPatch, "/api/users/"+p.ID+"/deactivate", nil)
	w = doJSON(t, r, http.MethodPost, "/api/login", gin.H{
		"email":    "login@example.com",
		"password": "secret4you",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
