// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// セッションの期限判定は参照時に行うため、このジョブは保持期間を
// 過ぎたレコードをストアから取り除くだけで、ログイン状態には影響しない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/blogcore/internal/metrics"
)

// ExpiredSessionDeleter は期限切れセッションの一括削除インターフェース。
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// SessionSweepJob は保持期間を超過したセッションの削除ジョブ。
// 冪等な削除処理で、何度実行しても結果は変わらない。
type SessionSweepJob struct {
	store     ExpiredSessionDeleter
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
	Retention time.Duration // 期限切れ後にレコードを残す期間（デフォルト: 1時間）
	now       func() time.Time
}

// NewSessionSweepJob は新しいSessionSweepJobを生成する。
// デフォルトの保持期間は1時間。
func NewSessionSweepJob(store ExpiredSessionDeleter, logger *slog.Logger, collector metrics.MetricsCollector) *SessionSweepJob {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &SessionSweepJob{
		store:     store,
		logger:    logger,
		metrics:   collector,
		Retention: time.Hour,
		now:       time.Now,
	}
}

// RunOnce はexpires_atが「現在時刻 - 保持期間」より前のセッションを削除する。
// 削除対象がない場合でもエラーにならない。
func (j *SessionSweepJob) RunOnce(ctx context.Context) (int64, error) {
	start := j.now()
	before := start.Add(-j.Retention)

	deleted, err := j.store.DeleteExpired(ctx, before)
	if err != nil {
		j.metrics.RecordStoreError("session.sweep")
		j.logger.Error("セッション削除ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("retention", j.Retention),
		)
		return 0, fmt.Errorf("セッション削除の実行に失敗: %w", err)
	}

	j.metrics.RecordSessionsSwept(deleted)
	j.logger.Info("セッション削除ジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Duration("retention", j.Retention),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return deleted, nil
}

// Start はintervalごとにRunOnceを実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *SessionSweepJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッション削除ジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("retention", j.Retention),
	)

	// エラーはRunOnce内でログ出力済み
	_, _ = j.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッション削除ジョブを停止しました")
			return
		case <-ticker.C:
			_, _ = j.RunOnce(ctx)
		}
	}
}
