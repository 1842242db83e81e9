// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"sort"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIの分岐に使える機械可読なコードと、表示用のメッセージ・対処方法を含む。
type APIError struct {
	Code     string            // エラーコード
	Message  string            // エラーメッセージ
	Category string            // カテゴリ: auth, validation, blog, system
	Action   string            // ユーザー向け対処方法
	Fields   map[string]string // バリデーションエラー時のフィールド別詳細
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNameTaken          = "NAME_TAKEN"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeNameNotFound       = "NAME_NOT_FOUND"
	ErrCodePasswordIncorrect  = "PASSWORD_INCORRECT"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeSessionStale       = "SESSION_STALE"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodePostNotFound       = "POST_NOT_FOUND"
	ErrCodeCommentNotFound    = "COMMENT_NOT_FOUND"
	ErrCodeStoreError         = "STORE_ERROR"
)

// NewDuplicateNameError はユーザー名重複エラーを生成する。
func NewDuplicateNameError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeNameTaken,
		Message:  fmt.Sprintf("ユーザー名は既に使われています: %s", name),
		Category: "auth",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "別のメールアドレスを指定するか、既存のアカウントでログインしてください。",
	}
}

// NewNameNotFoundError はログイン時にユーザー名が存在しない場合のエラーを生成する。
func NewNameNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNameNotFound,
		Message:  "ユーザー名が見つかりません。",
		Category: "auth",
		Action:   "ユーザー名を確認するか、新規登録してください。",
	}
}

// NewBadPasswordError はパスワード不一致エラーを生成する。
func NewBadPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordIncorrect,
		Message:  "パスワードが正しくありません。",
		Category: "auth",
		Action:   "パスワードを確認して再度お試しください。",
	}
}

// NewInvalidCredentialsError はユーザー名不在とパスワード不一致を区別しない外部向けエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewSessionStaleError はセッションは存在するがユーザーが削除されている場合のエラーを生成する。
func NewSessionStaleError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionStale,
		Message:  "セッションは存在しますが、ユーザーが存在しません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUnauthorizedError は未ログインエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewValidationError はリクエストのバリデーションエラーを生成する。
// fieldsにはフィールド名とその違反内容を指定する。
func NewValidationError(fields map[string]string) *APIError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容が不正です: %s", strings.Join(names, ", ")),
		Category: "validation",
		Action:   "入力内容を確認してください。",
		Fields:   fields,
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "blog",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewPostNotFoundError は記事が見つからない場合のエラーを生成する。
func NewPostNotFoundError(postID int64) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %d", postID),
		Category: "blog",
		Action:   "記事IDを確認してください。",
	}
}

// NewCommentNotFoundError はコメントが見つからない場合のエラーを生成する。
func NewCommentNotFoundError(commentID int64) *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("指定されたコメントが見つかりません: %d", commentID),
		Category: "blog",
		Action:   "コメントIDを確認してください。",
	}
}

// StoreError は永続化層（DB、セッションストア）の失敗を表す。
// 1リクエストに対して致命的で、呼び出し元には汎用的な失敗として返す。
type StoreError struct {
	Op  string
	Err error
}

// NewStoreError はStoreErrorを生成する。
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// Error はerrorインターフェースを実装する。
func (e *StoreError) Error() string {
	return fmt.Sprintf("store error (%s): %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *StoreError) Unwrap() error {
	return e.Err
}
