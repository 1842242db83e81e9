// Package model はドメインモデルを定義する。
package model

import "time"

// User はブログの利用ユーザーを表す。
// Nameは一意で、セッションはIDではなくNameを主体として保持する。
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session はサーバー側で保持するログインセッションを表す。
// IDはCookieに格納される不透明な値で、SubjectNameはログインしたユーザー名。
type Session struct {
	ID          string
	SubjectName string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// IsExpiredAt は指定時刻においてセッションが期限切れかどうかを返す。
func (s *Session) IsExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IsAnonymous はセッションが主体を持たない（未ログインと同等）かどうかを返す。
func (s *Session) IsAnonymous() bool {
	return s.SubjectName == ""
}
