package model

import "time"

// Post はブログ記事を表す。
type Post struct {
	ID        int64
	Title     string
	Author    string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Comment は記事に付くコメントを表す。
// 記事が削除されるとCASCADE削除される。
type Comment struct {
	ID        int64
	PostID    int64
	Author    string
	Content   string
	CreatedAt time.Time
}

// Contact はお問い合わせフォームから送信されたメッセージを表す。
type Contact struct {
	ID        int64
	Name      string
	Email     string
	Subject   string
	Message   string
	CreatedAt time.Time
}
