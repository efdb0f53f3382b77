// Package model はドメインモデルを定義する。
package model

import "time"

// Alert はユーザーと監視対象アドレスの組に対するアラートレコードを表す。
// (user_id, monitored_email) の組につき常に1件のみ存在する。
// マージは新しい値で置き換える形で行い、部分更新はしない。
type Alert struct {
	ID             string         `json:"id"`
	UserID         string         `json:"-"`
	MonitoredEmail string         `json:"email"`
	BreachCount    int            `json:"breach_count"`
	Breaches       []BreachRecord `json:"breaches"`
	Severity       Severity       `json:"severity"`
	RiskScore      int            `json:"risk_score"`
	DetectedAt     time.Time      `json:"detected_at"`
}

// HasBreach は指定名の漏洩がアラートに含まれているかを返す。
func (a *Alert) HasBreach(name string) bool {
	if a == nil {
		return false
	}
	for _, b := range a.Breaches {
		if b.Name == name {
			return true
		}
	}
	return false
}

// MonitoredEmail は監視対象アドレスのグローバル登録簿のエントリを表す。
// 初回チェック成功時に作成（または再有効化）される。
type MonitoredEmail struct {
	Email     string
	Active    bool
	CreatedAt time.Time
}
