// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// IDは外部IDプロバイダが発行するユーザーIDをそのまま使用する。
type User struct {
	ID          string
	Email       string // 通知先アドレス
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserWithEmails はユーザーと監視対象アドレス一覧を結合したモデル。
// フルスキャンの走査単位として使用する。
type UserWithEmails struct {
	User
	MonitoredEmails []string
}
