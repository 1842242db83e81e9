package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/blogcore/internal/model"
	"github.com/hitoshi/blogcore/internal/repository"
)

// Config はセッション管理の設定。
type Config struct {
	TTL          time.Duration    // 発行からの絶対的な有効期間（延長しない）
	StoreTimeout time.Duration    // ストア呼び出し1回あたりのタイムアウト
	Now          func() time.Time // 現在時刻の取得（nilの場合はtime.Now）
}

// Manager はセッションの発行・参照・破棄を行う。
// 期限切れは参照時に判定し、期限切れのレコードはストアから削除せず匿名として扱う。
type Manager struct {
	store  repository.SessionRepository
	config Config
	now    func() time.Time
	newID  func() (string, error)
}

// NewManager はManagerを生成する。
func NewManager(store repository.SessionRepository, config Config) *Manager {
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		store:  store,
		config: config,
		now:    now,
		newID:  generateSessionID,
	}
}

// TTL はセッションの有効期間を返す。
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}

// Issue はsubjectNameに対するセッションを発行し、slotを発行済み状態にする。
// 新しいIDで保存できた後に、slotが参照していた既存のセッションを削除する。
// 保存に失敗した場合は既存のセッションもslotも変更せず *model.StoreError を返す。
func (m *Manager) Issue(ctx context.Context, slot *Slot, subjectName string) (*model.Session, error) {
	id, err := m.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := m.now()
	sess := &model.Session{
		ID:          id,
		SubjectName: subjectName,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.config.TTL),
	}

	saveCtx, cancel := m.withTimeout(ctx)
	defer cancel()
	if err := m.store.Save(saveCtx, sess); err != nil {
		return nil, model.NewStoreError("session.issue", err)
	}

	// 旧セッションの削除失敗は発行を妨げない。残ったレコードは期限後に掃除される。
	if prev := slot.ID(); prev != "" && prev != id {
		if err := m.deleteByID(ctx, prev); err != nil {
			slog.Warn("failed to delete previous session",
				slog.String("session", ShortID(prev)),
				slog.String("error", err.Error()),
			)
		}
	}

	slot.setIssued(sess)
	return sess, nil
}

// Read はslotのセッションが有効ならそのユーザー名を返す。
// セッションがない、期限切れ、または主体を持たない場合は空文字列を返す（エラーではない）。
func (m *Manager) Read(ctx context.Context, slot *Slot) (string, error) {
	id := slot.ID()
	if id == "" {
		return "", nil
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	sess, err := m.store.FindByID(ctx, id)
	if err != nil {
		return "", model.NewStoreError("session.read", err)
	}
	if sess == nil || sess.IsAnonymous() || sess.IsExpiredAt(m.now()) {
		return "", nil
	}
	return sess.SubjectName, nil
}

// Clear はslotのセッションを破棄し、slotを匿名状態にする。
// 元の状態に関わらず実行でき、何度呼んでも同じ結果になる。
// ストアからの削除に失敗してもslotは匿名状態になり、エラーを返す。
func (m *Manager) Clear(ctx context.Context, slot *Slot) error {
	id := slot.ID()
	slot.setCleared()
	if id == "" {
		return nil
	}
	if err := m.deleteByID(ctx, id); err != nil {
		return model.NewStoreError("session.clear", err)
	}
	return nil
}

func (m *Manager) deleteByID(ctx context.Context, id string) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.store.DeleteByID(ctx, id)
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.config.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.config.StoreTimeout)
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
