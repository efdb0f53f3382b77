// Package alert はアラート台帳の純粋なマージロジックを提供する。
// 台帳は (ユーザー, 監視アドレス) ごとに1件のアラートを保持し、
// 既知の漏洩を再度通知しないための重複排除を担う。
package alert

import (
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/sentinelx/internal/model"
)

// mergedScorePerBreach はマージ後スコアの漏洩1件あたりの重み。
const mergedScorePerBreach = 25

// maxMergedScore はマージ後スコアの上限。
const maxMergedScore = 100

// DiffNewBreaches は前回チェック結果に存在しなかった漏洩のみを返す。
// 名前の集合差で判定する。前回結果がない場合（初回チェック）は
// 呼び出し元がベースラインとして扱うため、本関数は使用されない。
func DiffNewBreaches(previous, current []model.BreachRecord) []model.BreachRecord {
	seen := make(map[string]struct{}, len(previous))
	for _, b := range previous {
		seen[b.Name] = struct{}{}
	}

	var diff []model.BreachRecord
	for _, b := range current {
		if _, ok := seen[b.Name]; !ok {
			diff = append(diff, b)
		}
	}
	return diff
}

// FilterNewBreaches は既存アラートに記録済みの漏洩を除外する。
// 既存アラートがない場合は全件をそのまま返す。
func FilterNewBreaches(existing *model.Alert, breaches []model.BreachRecord) []model.BreachRecord {
	if existing == nil {
		return breaches
	}

	var filtered []model.BreachRecord
	for _, b := range breaches {
		if !existing.HasBreach(b.Name) {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

// Merge は新規漏洩を既存アラートに統合した新しいアラート値を返す。
// 既存アラートは変更しない。全件が記録済みの場合はnilを返し、
// 呼び出し元は台帳への書き込みを省略する。
//   - 漏洩集合: 既存と新規の和集合（名前で重複排除）
//   - breach_count: 和集合のサイズ
//   - risk_score: min(件数*25, 100)
//   - severity: 今回チェックの判定値
//   - detected_at: 現在時刻
func Merge(existing *model.Alert, userID, email string, breaches []model.BreachRecord, severity model.Severity, now time.Time) *model.Alert {
	newBreaches := FilterNewBreaches(existing, breaches)
	if len(newBreaches) == 0 {
		return nil
	}

	merged := newBreaches
	id := uuid.New().String()
	if existing != nil {
		merged = append(append([]model.BreachRecord{}, existing.Breaches...), newBreaches...)
		id = existing.ID
	}

	count := len(merged)
	score := count * mergedScorePerBreach
	if score > maxMergedScore {
		score = maxMergedScore
	}

	return &model.Alert{
		ID:             id,
		UserID:         userID,
		MonitoredEmail: email,
		BreachCount:    count,
		Breaches:       merged,
		Severity:       severity,
		RiskScore:      score,
		DetectedAt:     now,
	}
}
