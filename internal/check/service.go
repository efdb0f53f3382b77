// Package check は漏洩チェックのドメインロジックを提供する。
// 1回のチェックは「検索 → リスク評価 → 履歴記録 → 差分判定 → アラート反映 → 通知」
// のパイプラインとして実行される。
package check

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/hitoshi/sentinelx/internal/hibp"
	"github.com/hitoshi/sentinelx/internal/model"
	"github.com/hitoshi/sentinelx/internal/notifier"
	"github.com/hitoshi/sentinelx/internal/repository"
	"github.com/hitoshi/sentinelx/internal/risk"
)

// emailPattern はメールアドレス形式の検証パターン。
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail はメールアドレス形式を検証する。
// 作業を開始する前に呼び、不正な入力を拒否する。
func ValidateEmail(email string) error {
	if email == "" {
		return model.NewEmailRequiredError()
	}
	if !emailPattern.MatchString(email) {
		return model.NewInvalidEmailError(email)
	}
	return nil
}

// LookupService はライブ漏洩検索のインターフェース。
type LookupService interface {
	Lookup(ctx context.Context, email string) (*hibp.LookupResult, error)
}

// SimulatedLookup は組み込みデータによる漏洩検索のインターフェース。
type SimulatedLookup interface {
	Lookup(email string) []model.BreachRecord
}

// Service は漏洩チェックのサービス層。
type Service struct {
	live         LookupService
	simulated    SimulatedLookup
	checkRepo    repository.CheckRepository
	userRepo     repository.UserRepository
	notifier     notifier.Notifier
	logger       *slog.Logger
	useSimulated bool
	now          func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// useSimulatedがtrueの場合、ライブ検索を行わず組み込みデータを使用する。
func NewService(
	live LookupService,
	simulated SimulatedLookup,
	checkRepo repository.CheckRepository,
	userRepo repository.UserRepository,
	n notifier.Notifier,
	logger *slog.Logger,
	useSimulated bool,
) *Service {
	return &Service{
		live:         live,
		simulated:    simulated,
		checkRepo:    checkRepo,
		userRepo:     userRepo,
		notifier:     n,
		logger:       logger,
		useSimulated: useSimulated,
		now:          time.Now,
	}
}

// RunCheck は指定アドレスの漏洩チェックを1回実行する。
// 結果は履歴に記録され、前回結果との差分がアラート台帳へ反映される。
// 初回チェックはベースライン確立であり、アラートは生成されない。
func (s *Service) RunCheck(ctx context.Context, userID, email string) (*model.CheckOutcome, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	breaches, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}

	now := s.now()
	assessment := risk.Evaluate(breaches, now)
	result := &model.CheckResult{
		Email:           email,
		CheckedAt:       now,
		BreachCount:     len(breaches),
		RiskScore:       assessment.Score,
		RiskCategory:    assessment.Category,
		Breaches:        breaches,
		Recommendations: assessment.Recommendations,
	}

	commit, err := s.checkRepo.CommitCheck(ctx, userID, result)
	if err != nil {
		return nil, fmt.Errorf("チェック結果のコミットに失敗しました: %w", err)
	}

	outcome := &model.CheckOutcome{
		Result:      result,
		Baseline:    commit.Baseline,
		NewBreaches: commit.NewBreaches,
		Alert:       commit.Alert,
	}

	s.logger.Info("漏洩チェックを実行しました",
		slog.String("email", email),
		slog.Int("breach_count", result.BreachCount),
		slog.Int("risk_score", result.RiskScore),
		slog.Bool("baseline", outcome.Baseline),
		slog.Int("new_breaches", len(outcome.NewBreaches)),
	)

	if outcome.Alert != nil {
		outcome.NotificationSent = s.notify(ctx, userID, outcome.Alert)
	}

	return outcome, nil
}

// lookup は設定に応じてライブ検索または組み込みデータを使用する。
// ライブ検索がAPIキー未設定を返した場合も組み込みデータへフォールバックし、
// 監視が停止しないようにする。
func (s *Service) lookup(ctx context.Context, email string) ([]model.BreachRecord, error) {
	if s.useSimulated || s.live == nil {
		return s.simulated.Lookup(email), nil
	}

	result, err := s.live.Lookup(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("漏洩検索に失敗しました: %w", err)
	}

	switch result.Status {
	case hibp.StatusBreaches:
		return result.Breaches, nil
	case hibp.StatusNoBreach:
		return nil, nil
	case hibp.StatusNotConfigured:
		s.logger.Warn("APIキーが未設定のため組み込みデータを使用します",
			slog.String("email", email),
		)
		return s.simulated.Lookup(email), nil
	case hibp.StatusRateLimited:
		return nil, model.NewLookupRateLimitedError()
	case hibp.StatusUnauthorized:
		return nil, model.NewLookupUnauthorizedError()
	default:
		return nil, model.NewLookupFailedError(result.Status.String())
	}
}

// notify はアラートをユーザーの通知先アドレスへ送信する。
// 送信失敗はログのみで、チェック処理のエラーにはしない。
func (s *Service) notify(ctx context.Context, userID string, a *model.Alert) bool {
	if s.notifier == nil {
		return false
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil || user == nil {
		s.logger.Error("通知先ユーザーの取得に失敗しました",
			slog.String("user_id", userID),
		)
		return false
	}

	if err := s.notifier.SendBreachAlert(ctx, user.Email, a); err != nil {
		s.logger.Error("アラート通知の送信に失敗しました",
			slog.String("user_id", userID),
			slog.String("monitored_email", a.MonitoredEmail),
			slog.String("error", err.Error()),
		)
		return false
	}

	s.logger.Info("アラート通知を送信しました",
		slog.String("user_id", userID),
		slog.String("monitored_email", a.MonitoredEmail),
		slog.Int("breach_count", a.BreachCount),
	)
	return true
}
