// Package dashboard はダッシュボード表示用の集約ロジックを提供する。
package dashboard

import (
	"context"
	"fmt"

	"github.com/hitoshi/sentinelx/internal/model"
	"github.com/hitoshi/sentinelx/internal/repository"
)

// Summary はダッシュボードに表示する集約結果。
type Summary struct {
	Email string `json:"email"`
	// LatestCheck は最新のチェック結果。履歴がない場合はnil。
	LatestCheck *model.CheckResult `json:"latest_check,omitempty"`
	// MostRecentBreach は最新チェック結果の中で漏洩日が最も新しいレコード。
	MostRecentBreach *model.BreachRecord `json:"most_recent_breach,omitempty"`
	// HasAlerts は未解消アラートの有無（バナー表示用）。
	HasAlerts bool `json:"has_alerts"`
	// History はチェック履歴（新しい順）。
	History []*model.CheckResult `json:"history,omitempty"`
}

// historyLimit はダッシュボードに表示する履歴の最大件数。
const historyLimit = 10

// Service はダッシュボードのサービス層。
type Service struct {
	checkRepo repository.CheckRepository
	alertRepo repository.AlertRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(checkRepo repository.CheckRepository, alertRepo repository.AlertRepository) *Service {
	return &Service{
		checkRepo: checkRepo,
		alertRepo: alertRepo,
	}
}

// GetSummary は指定アドレスのダッシュボード表示用データを集約する。
func (s *Service) GetSummary(ctx context.Context, email string) (*Summary, error) {
	latest, err := s.checkRepo.LatestByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("最新チェック結果の取得に失敗しました: %w", err)
	}

	history, err := s.checkRepo.ListByEmail(ctx, email, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("チェック履歴の取得に失敗しました: %w", err)
	}

	hasAlerts, err := s.HasAlerts(ctx, email)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Email:       email,
		LatestCheck: latest,
		HasAlerts:   hasAlerts,
		History:     history,
	}
	if latest != nil {
		summary.MostRecentBreach = mostRecentBreach(latest.Breaches)
	}

	return summary, nil
}

// HasAlerts は指定アドレスに対するアラートの有無を返す。
func (s *Service) HasAlerts(ctx context.Context, email string) (bool, error) {
	exists, err := s.alertRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("アラートの存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// mostRecentBreach は漏洩日が最も新しいレコードを返す。
// 漏洩日はYYYY-MM-DD形式のため文字列比較で新旧を判定できる。
func mostRecentBreach(breaches []model.BreachRecord) *model.BreachRecord {
	if len(breaches) == 0 {
		return nil
	}

	latest := &breaches[0]
	for i := 1; i < len(breaches); i++ {
		if breaches[i].BreachDate > latest.BreachDate {
			latest = &breaches[i]
		}
	}
	return latest
}
