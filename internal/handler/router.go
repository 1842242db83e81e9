package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/blogcore/internal/metrics"
	"github.com/hitoshi/blogcore/internal/middleware"
)

// ログイン必須にできるリソース名。
const (
	ResourceUsers    = "users"
	ResourcePosts    = "posts"
	ResourceComments = "comments"
	ResourceContacts = "contacts"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// GatedResources に含まれるリソースのルートはログイン必須になる。
	// POST /contact は常に公開。
	GatedResources map[string]bool

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ブログ
	UserService    UserServiceInterface
	PostService    PostServiceInterface
	ContactService ContactServiceInterface

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RealIP → Logging → SecurityHeaders → CORS → SessionSlot → RateLimit(General) → CSRF
//
// /health と /metrics はチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(chimw.RealIP)

	healthHandler := NewHealthHandler(deps.HealthChecker)
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)
	postHandler := NewPostHandler(deps.PostService)
	contactHandler := NewContactHandler(deps.ContactService)

	requireLogin := middleware.NewRequireLoginMiddleware(deps.AuthService)
	gate := func(resource string) func(http.Handler) http.Handler {
		if deps.GatedResources[resource] {
			return requireLogin
		}
		return func(next http.Handler) http.Handler { return next }
	}

	loginLimit := func(next http.Handler) http.Handler { return next }

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewLoggingMiddleware(logger, collector))
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(middleware.NewSessionSlotMiddleware())
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
			loginLimit = deps.RateLimiter.LoginMiddleware()
		}
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// 認証
		r.With(loginLimit).Post("/register", authHandler.Register)
		r.With(loginLimit).Post("/signup", authHandler.Register)
		r.With(loginLimit).Post("/login", authHandler.Login)
		r.Get("/logout", authHandler.Logout)
		r.Post("/logout", authHandler.Logout)
		r.Get("/logged-in", authHandler.LoggedIn)

		// ユーザー管理
		r.Group(func(r chi.Router) {
			r.Use(gate(ResourceUsers))
			r.Get("/users", userHandler.List)
			r.Post("/add-user", userHandler.Create)
			r.Get("/user/{id}", userHandler.Get)
			r.Patch("/user/{id}", userHandler.Update)
			r.Delete("/user/{id}", userHandler.Delete)
			r.Delete("/api/delete-user/{id}", userHandler.Delete)
		})

		// 記事
		r.Group(func(r chi.Router) {
			r.Use(gate(ResourcePosts))
			r.Get("/posts", postHandler.ListPosts)
			r.Post("/add-post", postHandler.CreatePost)
			r.Get("/post/{id}", postHandler.GetPost)
			r.Patch("/post/{id}", postHandler.UpdatePost)
			r.Delete("/post/{id}", postHandler.DeletePost)
		})

		// コメント
		r.Group(func(r chi.Router) {
			r.Use(gate(ResourceComments))
			r.Get("/post/{id}/comments", postHandler.ListComments)
			r.Post("/post/{id}/comments", postHandler.AddComment)
			r.Delete("/comment/{id}", postHandler.DeleteComment)
		})

		// お問い合わせ
		r.Post("/contact", contactHandler.Submit)
		r.With(gate(ResourceContacts)).Get("/contacts", contactHandler.List)
	})

	return r
}
