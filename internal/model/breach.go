// Package model はドメインモデルを定義する。
package model

import "time"

// Severity は漏洩の深刻度を表す。
type Severity string

const (
	// SeverityLow は低リスク（メールアドレスのみの漏洩）。
	SeverityLow Severity = "Low"
	// SeverityMedium は中リスク。
	SeverityMedium Severity = "Medium"
	// SeverityHigh は高リスク（金融情報・認証情報の漏洩）。
	SeverityHigh Severity = "High"
)

// BreachRecord は正規化済みの漏洩レコードを表す。
// Normalizerを通過した後は不変として扱う。
type BreachRecord struct {
	Name        string   `json:"name"`
	BreachDate  string   `json:"breach_date"` // YYYY-MM-DD。日付不明の場合は固定のプレースホルダー
	DataExposed []string `json:"data_exposed"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description,omitempty"` // サニタイズ済み
}

// CheckResult は1回の漏洩チェックの結果を表す。
// 履歴に追記専用で保存され、作成後は変更されない。
type CheckResult struct {
	Email           string         `json:"email"`
	CheckedAt       time.Time      `json:"checked_at"`
	BreachCount     int            `json:"breach_count"`
	RiskScore       int            `json:"risk_score"`
	RiskCategory    Severity       `json:"risk_category"`
	Breaches        []BreachRecord `json:"breaches"`
	Recommendations []string       `json:"recommendations"`
}

// CheckOutcome は1回のチェック処理（記録 + 差分 + アラート判定）の結果を表す。
type CheckOutcome struct {
	Result *CheckResult
	// Baseline は初回チェック（比較対象の履歴なし）であることを示す。
	// 初回チェックはベースライン確立であり、アラート対象にはならない。
	Baseline bool
	// NewBreaches は前回チェックに存在しなかった漏洩レコード。
	NewBreaches []BreachRecord
	// Alert はアラート台帳への反映結果。新規漏洩がなかった場合はnil。
	Alert *Alert
	// NotificationSent は通知メールの送信に成功したことを示す。
	NotificationSent bool
}

// ScanStats は1回のフルスキャンの実行統計を表す。
// スキャン実行の戻り値としてのみ使用し、永続化はしない。
type ScanStats struct {
	StartedAt         time.Time `json:"started_at"`
	CompletedAt       time.Time `json:"completed_at"`
	UsersScanned      int       `json:"users_scanned"`
	EmailsChecked     int       `json:"emails_checked"`
	BreachesFound     int       `json:"breaches_found"`
	AlertsCreated     int       `json:"alerts_created"`
	NotificationsSent int       `json:"notifications_sent"`
	Errors            int       `json:"errors"`
}
