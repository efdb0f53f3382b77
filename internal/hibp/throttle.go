package hibp

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle は外部検索サービスへの連続呼び出し間の最低間隔を強制する。
// プロセス全体で1インスタンスを共有し、バックグラウンドスキャンと
// オンデマンドチェックが同時に走っても間隔契約を守る。
// 「最終呼び出し時刻」の状態はrate.Limiterが内部の排他制御付きで保持するため、
// 外部に公開するのはWaitのみとする。
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle は指定の最低間隔を強制するThrottleを生成する。
// バーストは1に固定し、呼び出し間に常に間隔が空くことを保証する。
func NewThrottle(minInterval time.Duration) *Throttle {
	return &Throttle{
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Wait は前回の呼び出しから最低間隔が経過するまでブロックし、
// 新しい呼び出し時刻を記録する。コンテキストのキャンセルで早期復帰する。
// 複数ゴルーチンからの同時呼び出しは直列化される。
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
