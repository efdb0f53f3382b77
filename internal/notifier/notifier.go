// Package notifier はアラート通知の送信機能を提供する。
package notifier

import (
	"context"

	"github.com/hitoshi/sentinelx/internal/model"
)

// Notifier はアラート通知の送信インターフェース。
// 送信失敗はアラート台帳への書き込みをロールバックしない。
type Notifier interface {
	// SendBreachAlert は新規漏洩の検出をユーザーの通知先アドレスへ送信する。
	SendBreachAlert(ctx context.Context, to string, alert *model.Alert) error
}
