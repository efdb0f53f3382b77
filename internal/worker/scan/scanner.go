// Package scan は監視対象アドレスの定期スキャン処理を提供する。
// スケジューラとフルスキャンの実行ロジックを含む。
package scan

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hitoshi/sentinelx/internal/metrics"
	"github.com/hitoshi/sentinelx/internal/model"
	"github.com/hitoshi/sentinelx/internal/repository"
)

// CheckRunner は漏洩チェックの実行インターフェース。
type CheckRunner interface {
	// RunCheck は指定アドレスの漏洩チェックを1回実行する。
	RunCheck(ctx context.Context, userID, email string) (*model.CheckOutcome, error)
}

// Scanner は全ユーザーの監視対象アドレスを走査するフルスキャンの実行器。
// 1アドレスの失敗はそのサイクルでスキップするだけで、走査全体は継続する。
// 失敗したアドレスの再試行は次のサイクルに委ねる。
type Scanner struct {
	userRepo repository.UserRepository
	checker  CheckRunner
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	running  atomic.Bool
	now      func() time.Time
}

// NewScanner はScannerの新しいインスタンスを生成する。
func NewScanner(
	userRepo repository.UserRepository,
	checker CheckRunner,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Scanner {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Scanner{
		userRepo: userRepo,
		checker:  checker,
		metrics:  collector,
		logger:   logger,
		now:      time.Now,
	}
}

// RunFullScan は全ユーザーの監視対象アドレスを1巡チェックする。
// 同時に1つしか実行できず、実行中に呼ばれた場合はエラーを返す。
func (s *Scanner) RunFullScan(ctx context.Context) (*model.ScanStats, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, model.NewScanAlreadyRunningError()
	}
	defer s.running.Store(false)

	stats := &model.ScanStats{StartedAt: s.now()}
	s.metrics.RecordScanCycle()

	users, err := s.userRepo.ListWithMonitoredEmails(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("フルスキャンを開始します",
		slog.Int("user_count", len(users)),
	)

	for _, user := range users {
		if ctx.Err() != nil {
			break
		}
		stats.UsersScanned++

		for _, email := range user.MonitoredEmails {
			if ctx.Err() != nil {
				break
			}
			s.checkAddress(ctx, user.ID, email, stats)
		}
	}

	stats.CompletedAt = s.now()
	s.logger.Info("フルスキャンが完了しました",
		slog.Int("users_scanned", stats.UsersScanned),
		slog.Int("emails_checked", stats.EmailsChecked),
		slog.Int("breaches_found", stats.BreachesFound),
		slog.Int("alerts_created", stats.AlertsCreated),
		slog.Int("notifications_sent", stats.NotificationsSent),
		slog.Int("errors", stats.Errors),
	)

	return stats, nil
}

// IsScanning はフルスキャンが実行中かを返す。
func (s *Scanner) IsScanning() bool {
	return s.running.Load()
}

// checkAddress は1アドレスのチェックを実行し、統計に反映する。
// 失敗はログと統計に記録するだけで、走査全体には影響させない。
// 停止要求はアドレスの境界でのみ反映し、実行中のチェックは最後まで完遂させる。
func (s *Scanner) checkAddress(ctx context.Context, userID, email string, stats *model.ScanStats) {
	outcome, err := s.checker.RunCheck(context.WithoutCancel(ctx), userID, email)
	if err != nil {
		stats.Errors++
		s.metrics.RecordCheckError()

		// APIキー無効はアドレス単位ではなくシステム全体の問題
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeLookupUnauthorized {
			s.logger.Error("APIキーが無効なためチェックできません",
				slog.String("email", email),
			)
			return
		}

		s.logger.Warn("アドレスのチェックに失敗したためこのサイクルではスキップします",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return
	}

	stats.EmailsChecked++
	s.metrics.RecordEmailChecked()

	if outcome.Result != nil {
		stats.BreachesFound += outcome.Result.BreachCount
		s.metrics.RecordBreachesFound(outcome.Result.BreachCount)
	}
	if outcome.Alert != nil {
		stats.AlertsCreated++
		s.metrics.RecordAlertCreated()
	}
	if outcome.NotificationSent {
		stats.NotificationsSent++
		s.metrics.RecordNotificationSent()
	}
}
