// Package session はリクエスト単位のセッションスロットと、
// プロセス共通のセッションストアを使ったセッションの発行・参照・破棄を提供する。
package session

import (
	"context"

	"github.com/hitoshi/blogcore/internal/model"
)

// Slot は1リクエストに紐づくセッションの状態を保持する。
// リクエストのCookieから生成され、ハンドラーはサービス呼び出し後に
// Issued/Clearedを見てCookieの書き込み・削除を決める。
// 1リクエスト内でのみ使用し、リクエスト間で共有しない。
type Slot struct {
	id      string
	issued  *model.Session
	cleared bool
}

// NewSlot はCookieの値からSlotを生成する。Cookieがない場合は空文字列を渡す。
func NewSlot(cookieID string) *Slot {
	return &Slot{id: cookieID}
}

// ID は現在のセッションIDを返す。未発行・破棄済みの場合は空文字列。
func (s *Slot) ID() string {
	return s.id
}

// Issued はこのリクエストで発行されたセッションを返す。発行されていなければnil。
func (s *Slot) Issued() *model.Session {
	return s.issued
}

// Cleared はこのリクエストでセッションが破棄されたかどうかを返す。
func (s *Slot) Cleared() bool {
	return s.cleared
}

func (s *Slot) setIssued(sess *model.Session) {
	s.id = sess.ID
	s.issued = sess
	s.cleared = false
}

func (s *Slot) setCleared() {
	s.id = ""
	s.issued = nil
	s.cleared = true
}

type slotContextKey struct{}

// ContextWithSlot はSlotをコンテキストに格納する。
func ContextWithSlot(ctx context.Context, slot *Slot) context.Context {
	return context.WithValue(ctx, slotContextKey{}, slot)
}

// SlotFromContext はコンテキストからSlotを取得する。
func SlotFromContext(ctx context.Context) (*Slot, bool) {
	slot, ok := ctx.Value(slotContextKey{}).(*Slot)
	return slot, ok && slot != nil
}

// ShortID はログ出力用にセッションIDの先頭だけを返す。
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
