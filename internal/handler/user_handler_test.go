package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogcore/internal/model"
	"github.com/hitoshi/blogcore/internal/user"
)

// --- モック定義 ---

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	listFn   func(ctx context.Context) ([]*model.User, error)
	getFn    func(ctx context.Context, id int64) (*model.User, error)
	createFn func(ctx context.Context, name, email, password string) (*model.User, error)
	updateFn func(ctx context.Context, id int64, params user.UpdateParams) (*model.User, error)
	deleteFn func(ctx context.Context, id int64) error
}

func (m *mockUserService) List(ctx context.Context) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.User{}, nil
}

func (m *mockUserService) Get(ctx context.Context, id int64) (*model.User, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewUserNotFoundError()
}

func (m *mockUserService) Create(ctx context.Context, name, email, password string) (*model.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, name, email, password)
	}
	return &model.User{ID: 1, Name: name, Email: email}, nil
}

func (m *mockUserService) Update(ctx context.Context, id int64, params user.UpdateParams) (*model.User, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, params)
	}
	return &model.User{ID: id}, nil
}

func (m *mockUserService) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// withURLParam はchiのURLパラメータをリクエストに設定する。
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// --- GET /users ---

func TestUserHandler_List_ReturnsUsersWithoutHash(t *testing.T) {
	svc := &mockUserService{
		listFn: func(ctx context.Context) ([]*model.User, error) {
			return []*model.User{
				{ID: 1, Name: "alice", Email: "alice@example.com", PasswordHash: "hash-a"},
				{ID: 2, Name: "bob", PasswordHash: "hash-b"},
			}, nil
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if strings.Contains(w.Body.String(), "hash-") {
		t.Errorf("response leaks password hash: %s", w.Body.String())
	}

	var got []userResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Name != "alice" || got[1].Name != "bob" {
		t.Errorf("names = %q, %q", got[0].Name, got[1].Name)
	}
}

func TestUserHandler_List_Empty_ReturnsEmptyArray(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

// --- GET /user/{id} ---

func TestUserHandler_Get(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{"存在するユーザー", "1", http.StatusOK},
		{"存在しないユーザー", "99", http.StatusNotFound},
		{"数値でないID", "abc", http.StatusBadRequest},
		{"0以下のID", "0", http.StatusBadRequest},
	}

	svc := &mockUserService{
		getFn: func(ctx context.Context, id int64) (*model.User, error) {
			if id == 1 {
				return &model.User{ID: 1, Name: "alice"}, nil
			}
			return nil, model.NewUserNotFoundError()
		},
	}
	h := NewUserHandler(svc)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/user/"+tt.id, nil)
			req = withURLParam(req, "id", tt.id)
			w := httptest.NewRecorder()
			h.Get(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

// --- POST /add-user ---

func TestUserHandler_Create_Success(t *testing.T) {
	svc := &mockUserService{
		createFn: func(ctx context.Context, name, email, password string) (*model.User, error) {
			if name != "carol" || password != "password123" {
				t.Errorf("unexpected args: %q %q", name, password)
			}
			return &model.User{ID: 3, Name: name, Email: email}, nil
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/add-user",
		strings.NewReader(`{"name":"carol","email":"carol@example.com","password":"password123"}`))
	w := httptest.NewRecorder()
	h.Create(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if len(resp.Cookies()) != 0 {
		t.Error("creating a user must not set cookies")
	}
}

func TestUserHandler_Create_DuplicateEmail_ReturnsConflict(t *testing.T) {
	svc := &mockUserService{
		createFn: func(ctx context.Context, name, email, password string) (*model.User, error) {
			return nil, model.NewDuplicateEmailError()
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/add-user",
		strings.NewReader(`{"name":"carol","email":"carol@example.com","password":"password123"}`))
	w := httptest.NewRecorder()
	h.Create(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
	if body := decodeErrorBody(t, resp); body.Code != model.ErrCodeEmailTaken {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeEmailTaken)
	}
}

// --- PATCH /user/{id} ---

func TestUserHandler_Update_PassesOnlyProvidedFields(t *testing.T) {
	var got user.UpdateParams
	svc := &mockUserService{
		updateFn: func(ctx context.Context, id int64, params user.UpdateParams) (*model.User, error) {
			got = params
			return &model.User{ID: id, Name: "alice2"}, nil
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodPatch, "/user/1", strings.NewReader(`{"name":"alice2"}`))
	req = withURLParam(req, "id", "1")
	w := httptest.NewRecorder()
	h.Update(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.Name == nil || *got.Name != "alice2" {
		t.Errorf("Name = %v, want alice2", got.Name)
	}
	if got.Email != nil || got.Password != nil {
		t.Error("omitted fields should be nil")
	}
}

func TestUserHandler_Update_ShortPassword_ReturnsBadRequest(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	req := httptest.NewRequest(http.MethodPatch, "/user/1", strings.NewReader(`{"password":"short"}`))
	req = withURLParam(req, "id", "1")
	w := httptest.NewRecorder()
	h.Update(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- DELETE /user/{id} ---

func TestUserHandler_Delete(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"成功", nil, http.StatusNoContent},
		{"存在しない", model.NewUserNotFoundError(), http.StatusNotFound},
		{"ストア障害", model.NewStoreError("user.delete", errors.New("boom")), http.StatusInternalServerError},
		{"想定外のエラー", errors.New("unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var deletedID int64
			svc := &mockUserService{
				deleteFn: func(ctx context.Context, id int64) error {
					deletedID = id
					return tt.err
				},
			}
			h := NewUserHandler(svc)

			req := httptest.NewRequest(http.MethodDelete, "/user/5", nil)
			req = withURLParam(req, "id", "5")
			w := httptest.NewRecorder()
			h.Delete(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if deletedID != 5 {
				t.Errorf("deleted id = %d, want 5", deletedID)
			}
		})
	}
}
