// Package auth はパスワード認証によるユーザー登録・ログイン・ログアウトと、
// セッションに基づくログイン状態の確認を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/blogcore/internal/metrics"
	"github.com/hitoshi/blogcore/internal/model"
	"github.com/hitoshi/blogcore/internal/repository"
	"github.com/hitoshi/blogcore/internal/session"
)

// SessionManager はセッションの発行・参照・破棄のインターフェース。
type SessionManager interface {
	Issue(ctx context.Context, slot *session.Slot, subjectName string) (*model.Session, error)
	Read(ctx context.Context, slot *session.Slot) (string, error)
	Clear(ctx context.Context, slot *session.Slot) error
}

// SessionState はログイン状態確認の結果を表す。
type SessionState string

const (
	// StateLoggedIn はCookieのセッションが有効で、ユーザーも存在する状態。
	StateLoggedIn SessionState = "logged_in"
	// StateSessionStale はセッションは有効だが、ユーザーが削除されている状態。
	StateSessionStale SessionState = "session_stale"
	// StateAnonymous はセッションがない、または期限切れの状態。
	StateAnonymous SessionState = "anonymous"
)

// SessionStatus はCheckSessionの結果。
type SessionStatus struct {
	State SessionState
	Name  string      // セッションが主張するユーザー名（匿名の場合は空）
	User  *model.User // StateLoggedIn の場合のみ設定
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// UnifiedLoginErrors がtrueの場合、ログイン失敗を外部向けに
	// INVALID_CREDENTIALS に統一する。ログとメトリクスでは区別を保つ。
	UnifiedLoginErrors bool
	// StoreTimeout はユーザーストア呼び出し1回あたりのタイムアウト。
	StoreTimeout time.Duration
}

// dummyPassword はユーザーが存在しない場合のタイミング平準化に使うハッシュの元。
const dummyPassword = "blogcore-timing-equalizer"

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users     repository.UserRepository
	hasher    Hasher
	sessions  SessionManager
	metrics   metrics.MetricsCollector
	config    ServiceConfig
	dummyHash string
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	hasher Hasher,
	sessions SessionManager,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		slog.Warn("failed to prepare dummy password hash", slog.String("error", err.Error()))
	}
	return &Service{
		users:     users,
		hasher:    hasher,
		sessions:  sessions,
		metrics:   collector,
		config:    config,
		dummyHash: dummyHash,
	}
}

// Register はユーザーを登録し、そのユーザーのセッションを発行する。
// 同名ユーザーが存在する場合は NAME_TAKEN を返し、何も変更しない。
// セッション発行に失敗した場合は作成したユーザーを削除してから StoreError を返す。
func (s *Service) Register(ctx context.Context, slot *session.Slot, name, email, password string) (*model.User, error) {
	existing, err := s.findByName(ctx, name)
	if err != nil {
		s.metrics.RecordRegister("store_error")
		return nil, err
	}
	if existing != nil {
		s.metrics.RecordRegister("name_taken")
		slog.Info("registration rejected: name taken", slog.String("name", name))
		return nil, model.NewDuplicateNameError(name)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.metrics.RecordRegister("invalid_password")
		switch {
		case errors.Is(err, ErrPasswordTooLong):
			return nil, model.NewValidationError(map[string]string{"password": "max"})
		case errors.Is(err, ErrEmptyPassword):
			return nil, model.NewValidationError(map[string]string{"password": "required"})
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.createUser(ctx, name, email, hash)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.Issue(ctx, slot, name); err != nil {
		s.metrics.RecordRegister("store_error")
		s.recordStoreError(err)
		s.compensateUser(ctx, user)
		return nil, err
	}

	s.metrics.RecordRegister("ok")
	slog.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("name", user.Name),
	)
	return user, nil
}

// Login はユーザー名とパスワードを検証し、成功した場合にセッションを発行する。
// 失敗した場合、セッションには触れない。
func (s *Service) Login(ctx context.Context, slot *session.Slot, name, password string) error {
	user, err := s.findByName(ctx, name)
	if err != nil {
		s.metrics.RecordLogin("store_error")
		return err
	}

	if user == nil {
		// 存在しないユーザーでも同程度の時間をかける
		s.hasher.Verify(password, s.dummyHash)
		s.metrics.RecordLogin("name_not_found")
		slog.Info("login failed: name not found", slog.String("name", name))
		return s.loginError(model.NewNameNotFoundError())
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.metrics.RecordLogin("password_incorrect")
		slog.Info("login failed: password incorrect", slog.String("name", name))
		return s.loginError(model.NewBadPasswordError())
	}

	sess, err := s.sessions.Issue(ctx, slot, name)
	if err != nil {
		s.metrics.RecordLogin("store_error")
		s.recordStoreError(err)
		return err
	}

	s.metrics.RecordLogin("ok")
	slog.Info("user logged in",
		slog.String("name", name),
		slog.String("session", session.ShortID(sess.ID)),
	)
	return nil
}

// Logout はセッションを破棄する。元の状態に関わらず常に成功する。
// ストアからの削除に失敗した場合はログに記録するのみ。
func (s *Service) Logout(ctx context.Context, slot *session.Slot) {
	prev := slot.ID()
	if err := s.sessions.Clear(ctx, slot); err != nil {
		s.recordStoreError(err)
		slog.Warn("failed to delete session on logout",
			slog.String("session", session.ShortID(prev)),
			slog.String("error", err.Error()),
		)
	}
	s.metrics.RecordLogout()
	if prev != "" {
		slog.Info("user logged out", slog.String("session", session.ShortID(prev)))
	}
}

// CheckSession はセッションの状態を判定する。
// セッションが有効ならユーザーを再解決し、存在しなければ StateSessionStale を返す。
// 不整合なセッションでも破棄はしない。
func (s *Service) CheckSession(ctx context.Context, slot *session.Slot) (*SessionStatus, error) {
	name, err := s.sessions.Read(ctx, slot)
	if err != nil {
		s.recordStoreError(err)
		return nil, err
	}
	if name == "" {
		s.metrics.RecordSessionCheck(string(StateAnonymous))
		return &SessionStatus{State: StateAnonymous}, nil
	}

	user, err := s.findByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.metrics.RecordSessionCheck(string(StateSessionStale))
		slog.Info("stale session detected",
			slog.String("name", name),
			slog.String("session", session.ShortID(slot.ID())),
		)
		return &SessionStatus{State: StateSessionStale, Name: name}, nil
	}

	s.metrics.RecordSessionCheck(string(StateLoggedIn))
	return &SessionStatus{State: StateLoggedIn, Name: name, User: user}, nil
}

// CurrentUser はセッションのユーザーを返す。
// 匿名の場合は UNAUTHORIZED、ユーザーが削除されている場合は SESSION_STALE を返す。
func (s *Service) CurrentUser(ctx context.Context, slot *session.Slot) (*model.User, error) {
	status, err := s.CheckSession(ctx, slot)
	if err != nil {
		return nil, err
	}
	switch status.State {
	case StateLoggedIn:
		return status.User, nil
	case StateSessionStale:
		return nil, model.NewSessionStaleError()
	default:
		return nil, model.NewUnauthorizedError()
	}
}

// loginError は設定に応じて外部向けのログインエラーを返す。
func (s *Service) loginError(err *model.APIError) error {
	if s.config.UnifiedLoginErrors {
		return model.NewInvalidCredentialsError()
	}
	return err
}

func (s *Service) findByName(ctx context.Context, name string) (*model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.users.FindByName(ctx, name)
	if err != nil {
		s.metrics.RecordStoreError("user.find_by_name")
		return nil, model.NewStoreError("user.find_by_name", err)
	}
	return user, nil
}

func (s *Service) createUser(ctx context.Context, name, email, hash string) (*model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.users.Create(ctx, name, email, hash)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, repository.ErrDuplicateName):
		// 事前確認と挿入の間に同名ユーザーが登録された
		s.metrics.RecordRegister("name_taken")
		return nil, model.NewDuplicateNameError(name)
	case errors.Is(err, repository.ErrDuplicateEmail):
		s.metrics.RecordRegister("email_taken")
		return nil, model.NewDuplicateEmailError()
	default:
		s.metrics.RecordRegister("store_error")
		s.metrics.RecordStoreError("user.create")
		return nil, model.NewStoreError("user.create", err)
	}
}

// compensateUser はセッション発行に失敗した登録を取り消す。
func (s *Service) compensateUser(ctx context.Context, user *model.User) {
	ctx, cancel := s.withTimeout(context.WithoutCancel(ctx))
	defer cancel()

	if err := s.users.DeleteByID(ctx, user.ID); err != nil {
		slog.Error("failed to roll back registered user",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) recordStoreError(err error) {
	var storeErr *model.StoreError
	if errors.As(err, &storeErr) {
		s.metrics.RecordStoreError(storeErr.Op)
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.StoreTimeout)
}
