package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound は更新・削除対象のレコードが存在しない場合に返される。
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateName はusers.nameのUNIQUE制約違反時に返される。
	ErrDuplicateName = errors.New("duplicate user name")

	// ErrDuplicateEmail はusers.emailのUNIQUE制約違反時に返される。
	ErrDuplicateEmail = errors.New("duplicate user email")
)

// PostgreSQLのエラーコードと制約名
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	usersNameUniqueKey    = "users_name_key"
	usersEmailUniqueKey   = "users_email_key"
)

// mapUserConstraintError はusersテーブルへの書き込みエラーを
// ドメインのセンチネルエラーに変換する。該当しない場合はnilを返す。
func mapUserConstraintError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}
	if string(pqErr.Code) != pqUniqueViolation {
		return nil
	}
	switch pqErr.Constraint {
	case usersEmailUniqueKey:
		return ErrDuplicateEmail
	case usersNameUniqueKey:
		return ErrDuplicateName
	default:
		// 制約名が取れない場合はnameの重複として扱う
		return ErrDuplicateName
	}
}

// isForeignKeyViolation は外部キー制約違反かどうかを判定する。
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqForeignKeyViolation
}
