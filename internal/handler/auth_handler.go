// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/blogcore/internal/auth"
	"github.com/hitoshi/blogcore/internal/middleware"
	"github.com/hitoshi/blogcore/internal/model"
	"github.com/hitoshi/blogcore/internal/session"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, slot *session.Slot, name, email, password string) (*model.User, error)
	Login(ctx context.Context, slot *session.Slot, name, password string) error
	Logout(ctx context.Context, slot *session.Slot)
	CheckSession(ctx context.Context, slot *session.Slot) (*auth.SessionStatus, error)
	CurrentUser(ctx context.Context, slot *session.Slot) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

// AuthHandler はパスワード認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Name     string `json:"name" validate:"required,min=3,max=25"`
	Email    string `json:"email" validate:"omitempty,email,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72,maxbytes=72"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Name     string `json:"name" validate:"required,max=25"`
	Password string `json:"password" validate:"required,max=72,maxbytes=72"`
}

// registerResponse はユーザー登録のレスポンス。
type registerResponse struct {
	Status string       `json:"status"`
	User   userResponse `json:"user"`
}

// Register はユーザーを登録し、ログイン状態にする。
// POST /register, POST /signup
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	slot := slotFromRequest(r)
	user, err := h.service.Register(r.Context(), slot, req.Name, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.writeSessionCookie(w, slot)
	writeJSON(w, http.StatusCreated, registerResponse{
		Status: "ok",
		User:   toUserResponse(user),
	})
}

// Login はユーザー名とパスワードでログインする。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	slot := slotFromRequest(r)
	if err := h.service.Login(r.Context(), slot, req.Name, req.Password); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.writeSessionCookie(w, slot)
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// Logout はセッションを破棄する。未ログインでも成功する。
// GET /logout, POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	slot := slotFromRequest(r)
	h.service.Logout(r.Context(), slot)

	h.writeSessionCookie(w, slot)
	writeJSON(w, http.StatusOK, statusResponse{Status: "logged_out"})
}

// LoggedIn はCookieのセッションによるログイン状態を返す。
// GET /logged-in
func (h *AuthHandler) LoggedIn(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.CheckSession(r.Context(), slotFromRequest(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: string(status.State)})
}

// writeSessionCookie はslotの状態に応じてセッションCookieを設定または削除する。
// 発行時のみ有効期限付きで設定し、以降のリクエストでは延長しない。
func (h *AuthHandler) writeSessionCookie(w http.ResponseWriter, slot *session.Slot) {
	if issued := slot.Issued(); issued != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookieName,
			Value:    issued.ID,
			Path:     "/",
			Domain:   h.config.CookieDomain,
			Expires:  issued.ExpiresAt,
			MaxAge:   int(issued.ExpiresAt.Sub(issued.CreatedAt) / time.Second),
			HttpOnly: true,
			Secure:   h.config.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
		return
	}
	if slot.Cleared() {
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookieName,
			Value:    "",
			Path:     "/",
			Domain:   h.config.CookieDomain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.config.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// slotFromRequest はリクエストのSlotを返す。
// Slotミドルウェアを通っていない場合はCookieから生成する。
func slotFromRequest(r *http.Request) *session.Slot {
	if slot, ok := session.SlotFromContext(r.Context()); ok {
		return slot
	}
	var id string
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		id = cookie.Value
	}
	return session.NewSlot(id)
}
