package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/blogcore/internal/model"
)

const sessionKeyPrefix = "session:"

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// キーのTTLは有効期限に保持期間を加えた値で、期限切れ後の掃除はRedisに任せる。
type RedisSessionRepo struct {
	rdb       *redis.Client
	retention time.Duration
	now       func() time.Time
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
// retentionは期限切れ後もレコードを残しておく期間。
func NewRedisSessionRepo(rdb *redis.Client, retention time.Duration) *RedisSessionRepo {
	return &RedisSessionRepo{rdb: rdb, retention: retention, now: time.Now}
}

type redisSessionRecord struct {
	SubjectName string    `json:"subject_name"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Save はセッションをJSONで保存する。
func (r *RedisSessionRepo) Save(ctx context.Context, session *model.Session) error {
	payload, err := json.Marshal(redisSessionRecord{
		SubjectName: session.SubjectName,
		CreatedAt:   session.CreatedAt,
		ExpiresAt:   session.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	ttl := session.ExpiresAt.Sub(r.now()) + r.retention
	if ttl <= 0 {
		// 既に保持期間も過ぎているレコードは保存しない
		return r.DeleteByID(ctx, session.ID)
	}

	if err := r.rdb.Set(ctx, sessionKey(session.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *RedisSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	data, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var rec redisSessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &model.Session{
		ID:          id,
		SubjectName: rec.SubjectName,
		CreatedAt:   rec.CreatedAt,
		ExpiresAt:   rec.ExpiresAt,
	}, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *RedisSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired はキーのTTLで自動削除されるため何もしない。
func (r *RedisSessionRepo) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionRepo)(nil)
