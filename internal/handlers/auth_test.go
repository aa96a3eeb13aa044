package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icard-hq/apiserver/internal/auth"
	"github.com/icard-hq/apiserver/internal/mailer"
	"github.com/icard-hq/apiserver/internal/services"
	"github.com/icard-hq/apiserver/internal/session"
	"github.com/icard-hq/apiserver/internal/store"
	"github.com/icard-hq/apiserver/types"
)

const testCookie = "icard_session"

type stubUsers struct {
	users map[string]types.User
}

func (s *stubUsers) GetByID(_ context.Context, id int) (types.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (s *stubUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *stubUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, ok := s.users[strings.ToLower(email)]
	return ok, nil
}

func (s *stubUsers) Create(_ context.Context, user types.User) (types.User, error) {
	user.ID = len(s.users) + 1
	s.users[strings.ToLower(user.Email)] = user
	return user, nil
}

func (s *stubUsers) Update(_ context.Context, user types.User) (types.User, error) {
	s.users[strings.ToLower(user.Email)] = user
	return user, nil
}

func (s *stubUsers) SetActive(_ context.Context, id int, active bool) error {
	for key, u := range s.users {
		if u.ID == id {
			u.Active = active
			s.users[key] = u
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *stubUsers) SetPasswordHash(_ context.Context, id int, hash string) error {
	for key, u := range s.users {
		if u.ID == id {
			u.PasswordHash = hash
			s.users[key] = u
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *stubUsers) TouchLastLogin(_ context.Context, id int, at time.Time) error {
	for key, u := range s.users {
		if u.ID == id {
			u.LastLogin = &at
			s.users[key] = u
			return nil
		}
	}
	return store.ErrNotFound
}

type stubAddresses struct{}

func (stubAddresses) Get(context.Context, int) (types.Address, error) {
	return types.Address{}, store.ErrNotFound
}

func (stubAddresses) Create(_ context.Context, addr types.Address) (types.Address, error) {
	addr.ID = 1
	return addr, nil
}

func (stubAddresses) Update(_ context.Context, addr types.Address) (types.Address, error) {
	return addr, nil
}

type stubSender struct{ sent int }

func (s *stubSender) Send(context.Context, string, string, string, ...mailer.Attachment) error {
	s.sent++
	return nil
}

func newTestRouter(t *testing.T) (*chi.Mux, *stubUsers, *session.Store) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessionStore := session.NewStore(client, time.Hour)
	sessions := NewSessionManager(sessionStore, testCookie)

	hasher := auth.NewBcryptHasher()
	hash, err := hasher.Hash("secret123")
	require.NoError(t, err)

	users := &stubUsers{users: map[string]types.User{
		"asha@example.com": {
			ID:           1,
			FullName:     "Asha Verma",
			Email:        "asha@example.com",
			Role:         types.RoleAdmin,
			PasswordHash: hash,
			Active:       true,
		},
	}}

	accounts := services.NewAccountService(users, stubAddresses{}, hasher, &stubSender{}, 10*time.Minute)

	router := chi.NewRouter()
	router.Use(sessions.WithSession)
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, accounts, sessions)
	})
	router.With(sessions.RequireAuth).Get("/protected", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router, users, sessionStore
}

func postJSON(t *testing.T, router http.Handler, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == testCookie {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestLoginSetsSessionCookie(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := postJSON(t, router, "/auth/login", LoginRequest{Email: "asha@example.com", Password: "secret123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.NotEmpty(t, cookie.Value)

	var user types.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "asha@example.com", user.Email)
	assert.NotNil(t, user.LastLogin)

	// The cookie grants access to protected routes.
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(cookie)
	got := httptest.NewRecorder()
	router.ServeHTTP(got, req)
	assert.Equal(t, http.StatusOK, got.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router, _, _ := newTestRouter(t)

	unknown := postJSON(t, router, "/auth/login", LoginRequest{Email: "ghost@example.com", Password: "x"})
	wrong := postJSON(t, router, "/auth/login", LoginRequest{Email: "asha@example.com", Password: "x"})

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	// The two failures must be byte-identical to the client.
	assert.Equal(t, unknown.Body.String(), wrong.Body.String())
}

func TestProtectedRouteRedirectsBrowsers(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	// API clients get a status code instead of a redirect.
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Accept", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterVerifyFlowOverHTTP(t *testing.T) {
	router, users, sessionStore := newTestRouter(t)

	login := postJSON(t, router, "/auth/login", LoginRequest{Email: "asha@example.com", Password: "secret123"})
	require.Equal(t, http.StatusOK, login.Code)
	cookie := sessionCookie(t, login)

	reg := postJSON(t, router, "/auth/register", RegisterRequest{
		FullName: "Ravi Kumar",
		Email:    "ravi@example.com",
		Password: "welcome1",
	}, cookie)
	require.Equal(t, http.StatusCreated, reg.Code, reg.Body.String())

	created, ok := users.users["ravi@example.com"]
	require.True(t, ok)
	assert.False(t, created.Active)

	// The OTP lives in the admin's session; read it back from the store.
	sess, err := sessionStore.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	require.NotNil(t, sess.OTP)
	assert.Equal(t, "ravi@example.com", sess.OTP.Email)
	code := sess.OTP.Code

	verify := postJSON(t, router, "/auth/verify-otp", VerifyOTPRequest{
		Email: "ravi@example.com",
		Code:  code,
	}, cookie)
	require.Equal(t, http.StatusOK, verify.Code, verify.Body.String())

	activated := users.users["ravi@example.com"]
	assert.True(t, activated.Active)
}

func TestRegisterWithoutSessionIsRejected(t *testing.T) {
	router, users, _ := newTestRouter(t)

	// A JSON client gets a status code.
	rec := postJSON(t, router, "/auth/register", RegisterRequest{
		FullName: "Ravi Kumar",
		Email:    "ravi@example.com",
		Password: "welcome1",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A browser form post is sent to the login page.
	form := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("full_name=Ravi"))
	form.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	formRec := httptest.NewRecorder()
	router.ServeHTTP(formRec, form)
	assert.Equal(t, http.StatusFound, formRec.Code)
	assert.Equal(t, "/login", formRec.Header().Get("Location"))

	_, created := users.users["ravi@example.com"]
	assert.False(t, created)
}

func TestLoginRotatesSessionCookie(t *testing.T) {
	router, _, sessionStore := newTestRouter(t)

	// Obtain a pre-authentication session id via a password-reset request.
	forgot := postJSON(t, router, "/auth/forgot-password", ForgotPasswordRequest{Email: "asha@example.com"})
	require.Equal(t, http.StatusOK, forgot.Code, forgot.Body.String())
	anon := sessionCookie(t, forgot)

	login := postJSON(t, router, "/auth/login",
		LoginRequest{Email: "asha@example.com", Password: "secret123"}, anon)
	require.Equal(t, http.StatusOK, login.Code)
	authed := sessionCookie(t, login)
	assert.NotEqual(t, anon.Value, authed.Value, "signing in must mint a fresh session id")

	// The pre-login id is gone from the store and cannot be replayed.
	_, err := sessionStore.Get(context.Background(), anon.Value)
	assert.ErrorIs(t, err, session.ErrNotFound)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(anon)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestLogoutClearsSession(t *testing.T) {
	router, _, _ := newTestRouter(t)

	login := postJSON(t, router, "/auth/login", LoginRequest{Email: "asha@example.com", Password: "secret123"})
	cookie := sessionCookie(t, login)

	logout := postJSON(t, router, "/auth/logout", struct{}{}, cookie)
	require.Equal(t, http.StatusOK, logout.Code)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code, "the old cookie must no longer authenticate")
}
