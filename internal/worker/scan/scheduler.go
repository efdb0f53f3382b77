package scan

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// defaultPollSlice は停止フラグを確認する間隔のデフォルト値。
const defaultPollSlice = 30 * time.Second

// Scheduler は定期スキャンのスケジューラ。
// 起動直後に1回スキャンを実行し、以後は指定間隔で繰り返す。
// 待機は小さなスライスに分割して行い、停止要求は最大でも1スライス以内に反映される。
type Scheduler struct {
	scanner   *Scanner
	logger    *slog.Logger
	interval  time.Duration
	pollSlice time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// pollSliceが0以下の場合はデフォルト値30秒を使用する。
func NewScheduler(scanner *Scanner, logger *slog.Logger, interval, pollSlice time.Duration) *Scheduler {
	if pollSlice <= 0 {
		pollSlice = defaultPollSlice
	}
	return &Scheduler{
		scanner:   scanner,
		logger:    logger,
		interval:  interval,
		pollSlice: pollSlice,
	}
}

// Start はバックグラウンドのスキャンループを起動する。
// 既に実行中の場合は何もせずfalseを返す。
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(runCtx)

	s.logger.Info("スキャンスケジューラを開始しました",
		slog.Duration("interval", s.interval),
		slog.Duration("poll_slice", s.pollSlice),
	)
	return true
}

// Stop はスキャンループに停止を要求し、終了まで待つ。
// 実行中のアドレスのチェックは中断せず、完了してから停止する。
// 実行中でない場合は何もしない。
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("スキャンスケジューラを停止しました")
}

// IsRunning はスケジューラが実行中かを返す。
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// loop はスキャンと待機を繰り返すメインループ。
func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	// 起動直後に1回実行
	s.runScan(ctx)

	for {
		if !s.sleep(ctx, s.interval) {
			return
		}
		s.runScan(ctx)
	}
}

// runScan はフルスキャンを1回実行する。失敗はログのみでループは継続する。
func (s *Scheduler) runScan(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.scanner.RunFullScan(ctx); err != nil {
		s.logger.Error("スキャンサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// sleep は指定時間をスライスに分割して待機する。
// 停止要求を受けた場合はfalseを返す。
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	remaining := d
	for remaining > 0 {
		slice := s.pollSlice
		if slice > remaining {
			slice = remaining
		}

		timer := time.NewTimer(slice)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		remaining -= slice
	}
	return true
}
