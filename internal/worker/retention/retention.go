// Package retention はチェック履歴の自動削除ジョブを提供する。
// 保持期間(デフォルト90日)を超過したチェック結果を日次バッチで削除する。
// アラート台帳は削除対象外で、解消されるまで保持される。
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/sentinelx/internal/repository"
)

// Job は保持期間を超過したチェック履歴の自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type Job struct {
	checkRepo     repository.CheckRepository
	logger        *slog.Logger
	RetentionDays int // チェック履歴の保持日数（デフォルト: 90）
}

// NewJob は新しいJobを生成する。デフォルトの保持日数は90日。
func NewJob(checkRepo repository.CheckRepository, logger *slog.Logger) *Job {
	return &Job{
		checkRepo:     checkRepo,
		logger:        logger,
		RetentionDays: 90,
	}
}

// Run は保持期間を超過したチェック履歴を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := start.AddDate(0, 0, -j.RetentionDays)

	deleted, err := j.checkRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("チェック履歴クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("チェック履歴クリーンアップの実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("チェック履歴クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は24時間間隔のティッカーでジョブを起動する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	if err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップの初回実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
