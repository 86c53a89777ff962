package auth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/LeventeLantos/result-messaging/internal/model"
	"github.com/LeventeLantos/result-messaging/internal/repo"
)

type memUsers struct {
	mu    sync.Mutex
	seq   int
	users map[string]model.User
}

func newMemUsers() *memUsers { return &memUsers{users: map[string]model.User{}} }

func (m *memUsers) Create(ctx context.Context, u model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return model.User{}, repo.ErrDuplicateEmail
		}
	}
	m.seq++
	u.ID = fmt.Sprintf("u-%d", m.seq)
	m.users[u.ID] = u
	return u, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repo.ErrNotFound
}

func (m *memUsers) GetByID(ctx context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) List(ctx context.Context, role model.Role) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.User{}
	for _, u := range m.users {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUsers) Update(ctx context.Context, u model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return model.User{}, repo.ErrNotFound
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memUsers) UpdateRole(ctx context.Context, id string, role model.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.Role = role
	m.users[id] = u
	return nil
}

func (m *memUsers) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func newTestService(t *testing.T) (*Service, *memUsers) {
	t.Helper()
	users := newMemUsers()
	s := NewService(users, "test-secret", time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.cost = bcrypt.MinCost
	return s, users
}

func TestCan(t *testing.T) {
	assert.True(t, Can(model.RoleAdmin, PermAdmin))
	assert.True(t, Can(model.RoleAdmin, PermSend))
	assert.True(t, Can(model.RoleApproved, PermSend))
	assert.True(t, Can(model.RoleApproved, PermFailures))
	assert.False(t, Can(model.RoleApproved, PermAdmin))
	assert.True(t, Can(model.RolePending, PermProfile))
	assert.False(t, Can(model.RolePending, PermSend))
	assert.False(t, Can(model.Role("ghost"), PermProfile))
}

func TestRegisterAndLogin(t *testing.T) {
	s, users := newTestService(t)
	ctx := context.Background()

	u, err := s.Register(ctx, RegisterInput{Email: "ana@example.com", Password: "secret1", FullName: " Ana "})
	require.NoError(t, err)
	assert.Equal(t, model.RolePending, u.Role)
	assert.Equal(t, "Ana", u.FullName)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	_, err = s.Register(ctx, RegisterInput{Email: "ana@example.com", Password: "x"})
	require.ErrorIs(t, err, repo.ErrDuplicateEmail)

	_, err = s.Login(ctx, "ana@example.com", "secret1")
	require.ErrorIs(t, err, ErrPendingApproval)

	require.NoError(t, s.Approve(ctx, u.ID))

	_, err = s.Login(ctx, "ana@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Login(ctx, "nobody@example.com", "secret1")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	tok, err := s.Login(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)

	claims, err := s.ParseToken(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", claims.Subject)
	assert.Equal(t, model.RoleApproved, claims.Role)
	assert.Equal(t, u.ID, claims.UID)

	// role changes apply to existing tokens
	require.NoError(t, users.UpdateRole(ctx, u.ID, model.RoleAdmin))
	p, err := s.Authenticate(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())
}

func TestParseToken_RejectsExpiredAndForeign(t *testing.T) {
	s, _ := newTestService(t)

	tok, err := s.IssueToken(model.User{ID: "u-1", Email: "a@b.c", Role: model.RoleApproved})
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = s.ParseToken(tok.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	other := NewService(newMemUsers(), "other-secret", time.Minute, nil)
	foreign, err := other.IssueToken(model.User{ID: "u-1", Email: "a@b.c", Role: model.RoleAdmin})
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.ParseToken(foreign.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSeedAdmin_CreatesThenPromotes(t *testing.T) {
	s, users := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.SeedAdmin(ctx, "root@example.com", "pw"))
	u, err := users.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Role)

	// idempotent
	require.NoError(t, s.SeedAdmin(ctx, "root@example.com", "pw"))

	reg, err := s.Register(ctx, RegisterInput{Email: "boss@example.com", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, s.SeedAdmin(ctx, "boss@example.com", "ignored"))
	got, _ := users.GetByID(ctx, reg.ID)
	assert.Equal(t, model.RoleAdmin, got.Role)
}

func TestUpdateProfileAndDelete(t *testing.T) {
	s, users := newTestService(t)
	ctx := context.Background()

	u, err := s.Register(ctx, RegisterInput{Email: "a@example.com", Password: "old"})
	require.NoError(t, err)
	p := Principal{UserID: u.ID, Email: u.Email, Role: u.Role}

	updated, err := s.UpdateProfile(ctx, p, ProfileUpdate{FullName: "New Name", Password: "new"})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.FullName)
	assert.Equal(t, "a@example.com", updated.Email)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("new")))

	require.ErrorIs(t, s.Delete(ctx, p, u.ID), ErrForbidden)

	admin := Principal{UserID: "admin", Role: model.RoleAdmin}
	require.NoError(t, s.Delete(ctx, admin, u.ID))
	_, err = users.GetByID(ctx, u.ID)
	require.ErrorIs(t, err, repo.ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, admin, u.ID), repo.ErrNotFound)
}

func TestMiddlewareAndRequire(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	u, err := s.Register(ctx, RegisterInput{Email: "p@example.com", Password: "pw"})
	require.NoError(t, err)
	pendingTok, err := s.IssueToken(u)
	require.NoError(t, err)

	h := s.Middleware(Require(PermSend)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		require.True(t, ok)
		_, _ = io.WriteString(w, p.Email)
	})))

	do := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := do("")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = do("Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do("Bearer " + pendingTok.AccessToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"detail":"user account is pending approval"}`, rec.Body.String())

	require.NoError(t, s.Approve(ctx, u.ID))
	rec = do("bearer " + pendingTok.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p@example.com", rec.Body.String())
}
