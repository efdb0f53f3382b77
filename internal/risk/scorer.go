// Package risk は漏洩レコード集合からのリスク評価機能を提供する。
// 評価は純粋関数であり、状態を持たない。
package risk

import (
	"strings"
	"time"

	"github.com/hitoshi/sentinelx/internal/model"
)

const (
	// lowMax はLow判定となるスコアの上限。
	lowMax = 30
	// mediumMax はMedium判定となるスコアの上限。これを超えるとHigh。
	mediumMax = 70

	// maxScore はリスクスコアの上限。
	maxScore = 100
	// baseScorePerBreach は漏洩1件あたりの基礎スコア。
	baseScorePerBreach = 10
	// baseScoreCap は基礎スコアの上限。
	baseScoreCap = 30
)

// Assessment はリスク評価の結果を表す。
type Assessment struct {
	Score           int
	Category        model.Severity
	Recommendations []string
}

// Evaluate は漏洩レコード集合をリスクスコア（0〜100）・カテゴリ・推奨対応に評価する。
//
// スコアの構成:
//   - 基礎スコア: min(漏洩件数 * 10, 30)
//   - 漏洩カテゴリごとの重み: 金融系 +35、パスワード系 +25、"email" +5、その他 +10
//   - 漏洩の新しさ: 1年以内 +20、3年以内 +10、5年以内 +5（日付不明は+0）
//
// 合計は[0,100]にクランプされる。カテゴリ閾値（≤30 Low、≤70 Medium、>70 High）は
// 固定定数であり、変更してはならない。
func Evaluate(breaches []model.BreachRecord, now time.Time) Assessment {
	score := len(breaches) * baseScorePerBreach
	if score > baseScoreCap {
		score = baseScoreCap
	}

	allDataTypes := make(map[string]bool)
	for _, b := range breaches {
		for _, item := range b.DataExposed {
			normalized := strings.ToLower(item)
			allDataTypes[normalized] = true
			score += dataTypeWeight(normalized)
		}
		score += recencyWeight(b.BreachDate, now)
	}

	if score > maxScore {
		score = maxScore
	}

	return Assessment{
		Score:           score,
		Category:        Category(score),
		Recommendations: recommendations(allDataTypes),
	}
}

// Category はスコアをリスクカテゴリに分類する。
func Category(score int) model.Severity {
	if score <= lowMax {
		return model.SeverityLow
	}
	if score <= mediumMax {
		return model.SeverityMedium
	}
	return model.SeverityHigh
}

// dataTypeWeight は漏洩カテゴリ1件あたりの重みを返す。
// 引数は小文字に正規化済みであること。
func dataTypeWeight(dataType string) int {
	if strings.Contains(dataType, "financial") ||
		strings.Contains(dataType, "credit") ||
		strings.Contains(dataType, "bank") {
		return 35
	}
	if strings.Contains(dataType, "password") {
		return 25
	}
	if dataType == "email" {
		return 5
	}
	return 10
}

// recencyWeight は漏洩日付の新しさに応じた重みを返す。
// 日付がパースできない場合は0を返す。
func recencyWeight(breachDate string, now time.Time) int {
	parsed, err := time.Parse("2006-01-02", breachDate)
	if err != nil {
		return 0
	}

	age := now.Year() - parsed.Year()
	if age < 0 {
		age = 0
	}
	switch {
	case age <= 1:
		return 20
	case age <= 3:
		return 10
	case age <= 5:
		return 5
	default:
		return 0
	}
}

// 推奨対応の定型文。
const (
	recResetPassword     = "Reset password immediately and enable 2FA."
	recMonitorStatements = "Monitor bank statements and card activity."
	recBewarePhishing    = "Beware of phishing attempts and suspicious emails."
	recAvoidReuse        = "Change passwords across platforms and avoid reuse."
	recReviewSettings    = "Review account security settings and enable 2FA where possible."
)

// recommendations は全漏洩の漏洩カテゴリの和集合から推奨対応を導出する。
// ルールは固定の優先順位で評価され、該当するものはすべて追加される
// （相互排他ではない）。どのルールにも該当しない場合は汎用の推奨を返す。
func recommendations(dataTypes map[string]bool) []string {
	var recs []string

	if dataTypes["password"] || dataTypes["passwords"] {
		recs = append(recs, recResetPassword)
	}

	hasFinancial := false
	for dt := range dataTypes {
		if strings.Contains(dt, "financial") {
			hasFinancial = true
			break
		}
	}
	if hasFinancial {
		recs = append(recs, recMonitorStatements)
	}

	if len(dataTypes) == 1 && dataTypes["email"] {
		recs = append(recs, recBewarePhishing)
	}

	if dataTypes["username"] && (dataTypes["password"] || dataTypes["passwords"]) {
		recs = append(recs, recAvoidReuse)
	}

	if len(recs) == 0 {
		recs = append(recs, recReviewSettings)
	}

	return recs
}
