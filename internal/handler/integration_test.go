package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/blogcore/internal/auth"
	"github.com/hitoshi/blogcore/internal/middleware"
	"github.com/hitoshi/blogcore/internal/model"
	"github.com/hitoshi/blogcore/internal/repository"
	"github.com/hitoshi/blogcore/internal/session"
	"github.com/hitoshi/blogcore/internal/user"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memUserRepo はメモリ上のUserRepository実装。nameとemailの一意性を保証する。
type memUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]*model.User)}
}

func (r *memUserRepo) FindByName(_ context.Context, name string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Name == name {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) FindByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *memUserRepo) Create(_ context.Context, name, email, hash string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkUnique(0, name, email); err != nil {
		return nil, err
	}
	r.nextID++
	now := time.Now()
	u := &model.User{ID: r.nextID, Name: name, Email: email, PasswordHash: hash, CreatedAt: now, UpdatedAt: now}
	r.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) Update(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	if err := r.checkUnique(u.ID, u.Name, u.Email); err != nil {
		return err
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) DeleteByID(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) List(_ context.Context) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		cp := *u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *memUserRepo) checkUnique(selfID int64, name, email string) error {
	for id, u := range r.users {
		if id == selfID {
			continue
		}
		if u.Name == name {
			return repository.ErrDuplicateName
		}
		if email != "" && u.Email == email {
			return repository.ErrDuplicateEmail
		}
	}
	return nil
}

// createIntegrationRouter は実際の認証・セッション・ユーザーサービスで構成したルーターを返す。
func createIntegrationRouter(t *testing.T) http.Handler {
	t.Helper()
	users := newMemUserRepo()
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	sessions := session.NewManager(repository.NewMemorySessionRepo(), session.Config{TTL: time.Hour})
	authSvc := auth.NewService(users, hasher, sessions, nil, auth.ServiceConfig{})

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		Logger:         newDiscardLogger(),
		RateLimiter:    rl,
		GatedResources: map[string]bool{ResourceUsers: true},
		AuthService:    authSvc,
		UserService:    user.NewService(users, hasher, 0),
		PostService:    &mockPostService{},
		ContactService: &mockContactService{},
	})
}

// client はCookieを引き継いでリクエストを送るテスト用のクライアント。
type client struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
}

func (c *client) do(method, path, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)

	for _, ck := range w.Result().Cookies() {
		if ck.Name != middleware.SessionCookieName {
			continue
		}
		if ck.MaxAge < 0 {
			c.cookie = nil
		} else {
			c.cookie = ck
		}
	}
	return w
}

func (c *client) loggedInState() string {
	c.t.Helper()
	w := c.do(http.MethodGet, "/logged-in", "")
	var got statusResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		c.t.Fatalf("failed to decode /logged-in: %v", err)
	}
	return got.Status
}

func TestIntegration_RegisterLoginLogoutFlow(t *testing.T) {
	c := &client{t: t, handler: createIntegrationRouter(t)}

	if got := c.loggedInState(); got != "anonymous" {
		t.Fatalf("initial state = %q, want anonymous", got)
	}

	w := c.do(http.MethodPost, "/register", `{"name":"alice","password":"password123"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want %d (body: %s)", w.Code, http.StatusCreated, w.Body.String())
	}
	if c.cookie == nil {
		t.Fatal("register should set session cookie")
	}
	if got := c.loggedInState(); got != "logged_in" {
		t.Errorf("state after register = %q, want logged_in", got)
	}

	w = c.do(http.MethodPost, "/logout", "")
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := c.loggedInState(); got != "anonymous" {
		t.Errorf("state after logout = %q, want anonymous", got)
	}

	w = c.do(http.MethodPost, "/login", `{"name":"alice","password":"wrong-password"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	w = c.do(http.MethodPost, "/login", `{"name":"nobody","password":"password123"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown name status = %d, want %d", w.Code, http.StatusNotFound)
	}

	w = c.do(http.MethodPost, "/login", `{"name":"alice","password":"password123"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := c.loggedInState(); got != "logged_in" {
		t.Errorf("state after login = %q, want logged_in", got)
	}
}

func TestIntegration_DuplicateRegister_KeepsSession(t *testing.T) {
	c := &client{t: t, handler: createIntegrationRouter(t)}

	c.do(http.MethodPost, "/register", `{"name":"alice","password":"password123"}`)
	first := c.cookie

	w := c.do(http.MethodPost, "/register", `{"name":"alice","password":"other-password"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	if c.cookie == nil || c.cookie.Value != first.Value {
		t.Error("failed registration must not change the session cookie")
	}
	if got := c.loggedInState(); got != "logged_in" {
		t.Errorf("state = %q, want logged_in", got)
	}
}

func TestIntegration_DeletedUser_SessionBecomesStale(t *testing.T) {
	c := &client{t: t, handler: createIntegrationRouter(t)}

	w := c.do(http.MethodPost, "/register", `{"name":"alice","password":"password123"}`)
	var reg registerResponse
	if err := json.NewDecoder(w.Body).Decode(&reg); err != nil {
		t.Fatalf("failed to decode register response: %v", err)
	}

	w = c.do(http.MethodDelete, "/api/delete-user/"+strconv.FormatInt(reg.User.ID, 10), "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", w.Code, http.StatusNoContent)
	}

	if got := c.loggedInState(); got != "session_stale" {
		t.Errorf("state after delete = %q, want session_stale", got)
	}

	// 保護されたルートはSESSION_STALEで拒否される
	w = c.do(http.MethodGet, "/users", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if body := decodeErrorBody(t, w.Result()); body.Code != model.ErrCodeSessionStale {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeSessionStale)
	}

	// ログアウトで匿名に戻る
	c.do(http.MethodGet, "/logout", "")
	if got := c.loggedInState(); got != "anonymous" {
		t.Errorf("state after logout = %q, want anonymous", got)
	}
}

func TestIntegration_AddUser_DoesNotChangeLogin(t *testing.T) {
	c := &client{t: t, handler: createIntegrationRouter(t)}

	c.do(http.MethodPost, "/register", `{"name":"alice","password":"password123"}`)
	before := c.cookie.Value

	w := c.do(http.MethodPost, "/add-user", `{"name":"bob","password":"password123"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add-user status = %d, want %d (body: %s)", w.Code, http.StatusCreated, w.Body.String())
	}
	if c.cookie.Value != before {
		t.Error("add-user must not rotate the caller's session")
	}

	w = c.do(http.MethodGet, "/users", "")
	var users []userResponse
	if err := json.NewDecoder(w.Body).Decode(&users); err != nil {
		t.Fatalf("failed to decode users: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("len(users) = %d, want 2", len(users))
	}
}
