// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/blogcore/internal/model"
	"github.com/hitoshi/blogcore/internal/session"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストにログイン中のユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// IdentityResolver はリクエストのセッションからログイン中のユーザーを解決するインターフェース。
// auth.ServiceのCurrentUserが満たす。
type IdentityResolver interface {
	CurrentUser(ctx context.Context, slot *session.Slot) (*model.User, error)
}

// NewSessionSlotMiddleware はCookieのセッションIDからリクエスト単位のSlotを生成し、
// コンテキストに格納するミドルウェアを返す。Cookieがない場合は空のSlotを格納する。
// セッションの有効性はここでは判定しない。
func NewSessionSlotMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if cookie, err := r.Cookie(SessionCookieName); err == nil {
				id = cookie.Value
			}
			ctx := session.ContextWithSlot(r.Context(), session.NewSlot(id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRequireLoginMiddleware はログインを必須とするミドルウェアを返す。
// セッションが無効な場合は401、ユーザーが削除されている場合は401 SESSION_STALE、
// ストア障害の場合は500を返す。
func NewRequireLoginMiddleware(resolver IdentityResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slot, ok := session.SlotFromContext(r.Context())
			if !ok {
				slot = session.NewSlot("")
			}

			user, err := resolver.CurrentUser(r.Context(), slot)
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
					return
				}
				slog.Error("failed to resolve current user",
					slog.String("error", err.Error()),
					slog.String("path", r.URL.Path),
				)
				WriteStoreErrorResponse(w)
				return
			}

			setRequestUser(r.Context(), user.Name)
			ctx := ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext はリクエストコンテキストからログイン中のユーザーを取得する。
// ログイン必須ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok && user != nil
}

// ContextWithUser はコンテキストにユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
