// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/blogcore/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// usersテーブルのname列にはUNIQUE制約があり、同名ユーザーの同時登録は
// Createが ErrDuplicateName を返すことで検出される。
type UserRepository interface {
	// FindByName はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// Create はユーザーを作成し、ストアが採番したIDを設定して返す。
	// name または email が重複する場合は ErrDuplicateName / ErrDuplicateEmail を返す。
	Create(ctx context.Context, name, email, passwordHash string) (*model.User, error)

	// Update はユーザー情報を更新する。存在しない場合は ErrNotFound を返す。
	Update(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。存在しない場合は ErrNotFound を返す。
	DeleteByID(ctx context.Context, id int64) error

	// List は全ユーザーをID昇順で返す。
	List(ctx context.Context) ([]*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
// Cookieの値をキーとしたプロセス共通のセッションストア。
type SessionRepository interface {
	// Save はセッションを保存する。同一IDが存在する場合は上書きする。
	Save(ctx context.Context, session *model.Session) error

	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	// 期限切れのセッションも返す（期限の判定は呼び出し側で行う）。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// DeleteByID は指定IDのセッションを削除する。存在しない場合もエラーにしない。
	DeleteByID(ctx context.Context, id string) error

	// DeleteExpired はexpires_atがbeforeより前のセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// PostRepository は記事データの永続化インターフェース。
type PostRepository interface {
	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Post, error)

	// List は全記事を新しい順で返す。
	List(ctx context.Context) ([]*model.Post, error)

	// Create は記事を作成し、IDと作成日時を設定する。
	Create(ctx context.Context, post *model.Post) error

	// Update は記事を更新する。存在しない場合は ErrNotFound を返す。
	Update(ctx context.Context, post *model.Post) error

	// DeleteByID は記事を削除する。関連コメントはCASCADE削除される。
	// 存在しない場合は ErrNotFound を返す。
	DeleteByID(ctx context.Context, id int64) error
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// ListByPostID は記事のコメントを古い順で返す。
	ListByPostID(ctx context.Context, postID int64) ([]*model.Comment, error)

	// Create はコメントを作成し、IDと作成日時を設定する。
	Create(ctx context.Context, comment *model.Comment) error

	// DeleteByID はコメントを削除する。存在しない場合は ErrNotFound を返す。
	DeleteByID(ctx context.Context, id int64) error
}

// ContactRepository はお問い合わせメッセージの永続化インターフェース。
type ContactRepository interface {
	// Create はお問い合わせを保存し、IDと作成日時を設定する。
	Create(ctx context.Context, contact *model.Contact) error

	// List は全お問い合わせを新しい順で返す。
	List(ctx context.Context) ([]*model.Contact, error)
}
