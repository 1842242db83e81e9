// Package user はユーザー管理（一覧・取得・作成・更新・削除）のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/blogcore/internal/auth"
	"github.com/hitoshi/blogcore/internal/model"
	"github.com/hitoshi/blogcore/internal/repository"
)

// PasswordHasher はパスワードのハッシュ化インターフェース。
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// UpdateParams はユーザー更新時の変更内容。nilのフィールドは変更しない。
type UpdateParams struct {
	Name     *string
	Email    *string
	Password *string
}

// Service はユーザー管理のサービス層。
type Service struct {
	users        repository.UserRepository
	hasher       PasswordHasher
	storeTimeout time.Duration
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users repository.UserRepository, hasher PasswordHasher, storeTimeout time.Duration) *Service {
	return &Service{
		users:        users,
		hasher:       hasher,
		storeTimeout: storeTimeout,
	}
}

// List は全ユーザーを返す。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, model.NewStoreError("user.list", err)
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, nil
}

// Get は指定IDのユーザーを返す。存在しない場合は USER_NOT_FOUND を返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewStoreError("user.find_by_id", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Create はユーザーを作成する。セッションは発行しない。
func (s *Service) Create(ctx context.Context, name, email, password string) (*model.User, error) {
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.users.Create(ctx, name, email, hash)
	if err != nil {
		return nil, mapWriteError("user.create", name, err)
	}

	slog.Info("ユーザーを作成しました",
		slog.Int64("user_id", user.ID),
		slog.String("name", user.Name),
	)
	return user, nil
}

// Update はユーザー情報を更新する。パスワードが指定された場合は再ハッシュして保存する。
// 名前を変更すると、旧名を主体とする既存セッションはユーザー不在として扱われる。
func (s *Service) Update(ctx context.Context, id int64, params UpdateParams) (*model.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		user.Name = *params.Name
	}
	if params.Email != nil {
		user.Email = *params.Email
	}
	if params.Password != nil {
		hash, err := s.hash(*params.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, mapWriteError("user.update", user.Name, err)
	}

	slog.Info("ユーザーを更新しました",
		slog.Int64("user_id", user.ID),
		slog.Bool("password_changed", params.Password != nil),
	)
	return user, nil
}

// Delete はユーザーを削除する。
// セッションは削除しないため、削除されたユーザーのセッションはSESSION_STALEとして検出される。
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.users.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return model.NewStoreError("user.delete", err)
	}

	slog.Info("ユーザーを削除しました", slog.Int64("user_id", id))
	return nil
}

func (s *Service) hash(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrPasswordTooLong):
			return "", model.NewValidationError(map[string]string{"password": "max"})
		case errors.Is(err, auth.ErrEmptyPassword):
			return "", model.NewValidationError(map[string]string{"password": "required"})
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

// mapWriteError はusersへの書き込みエラーをAPIエラーまたはStoreErrorに変換する。
func mapWriteError(op, name string, err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateName):
		return model.NewDuplicateNameError(name)
	case errors.Is(err, repository.ErrDuplicateEmail):
		return model.NewDuplicateEmailError()
	default:
		return model.NewStoreError(op, err)
	}
}
