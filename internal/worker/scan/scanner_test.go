package scan

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/sentinelx/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

// --- モック ---

type mockUserRepo struct {
	listFunc func(ctx context.Context) ([]*model.UserWithEmails, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Upsert(ctx context.Context, user *model.User) error { return nil }

func (m *mockUserRepo) ListWithMonitoredEmails(ctx context.Context) ([]*model.UserWithEmails, error) {
	return m.listFunc(ctx)
}

type mockCheckRunner struct {
	runCheckFunc func(ctx context.Context, userID, email string) (*model.CheckOutcome, error)
	calls        []string
}

func (m *mockCheckRunner) RunCheck(ctx context.Context, userID, email string) (*model.CheckOutcome, error) {
	m.calls = append(m.calls, email)
	return m.runCheckFunc(ctx, userID, email)
}

func twoUsers() []*model.UserWithEmails {
	return []*model.UserWithEmails{
		{
			User:            model.User{ID: "user-1", Email: "one@example.com"},
			MonitoredEmails: []string{"a@example.com", "b@example.com"},
		},
		{
			User:            model.User{ID: "user-2", Email: "two@example.com"},
			MonitoredEmails: []string{"c@example.com"},
		},
	}
}

// --- フルスキャン ---

func TestRunFullScan_AggregatesStats(t *testing.T) {
	userRepo := &mockUserRepo{
		listFunc: func(ctx context.Context) ([]*model.UserWithEmails, error) {
			return twoUsers(), nil
		},
	}
	checker := &mockCheckRunner{
		runCheckFunc: func(ctx context.Context, userID, email string) (*model.CheckOutcome, error) {
			outcome := &model.CheckOutcome{
				Result: &model.CheckResult{Email: email, BreachCount: 2},
			}
			if email == "b@example.com" {
				outcome.Alert = &model.Alert{MonitoredEmail: email}
				outcome.NotificationSent = true
			}
			return outcome, nil
		},
	}

	var buf bytes.Buffer
	scanner := NewScanner(userRepo, checker, nil, newTestLogger(&buf))

	stats, err := scanner.RunFullScan(context.Background())
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	if stats.UsersScanned != 2 {
		t.Errorf("UsersScanned = %d, 期待値 2", stats.UsersScanned)
	}
	if stats.EmailsChecked != 3 {
		t.Errorf("EmailsChecked = %d, 期待値 3", stats.EmailsChecked)
	}
	if stats.BreachesFound != 6 {
		t.Errorf("BreachesFound = %d, 期待値 6", stats.BreachesFound)
	}
	if stats.AlertsCreated != 1 {
		t.Errorf("AlertsCreated = %d, 期待値 1", stats.AlertsCreated)
	}
	if stats.NotificationsSent != 1 {
		t.Errorf("NotificationsSent = %d, 期待値 1", stats.NotificationsSent)
	}
	if stats.Errors != 0 {
		t.Errorf("Errors = %d, 期待値 0", stats.Errors)
	}
}

func TestRunFullScan_IsolatesPerAddressFailure(t *testing.T) {
	userRepo := &mockUserRepo{
		listFunc: func(ctx context.Context) ([]*model.UserWithEmails, error) {
			return twoUsers(), nil
		},
	}
	checker := &mockCheckRunner{
		runCheckFunc: func(ctx context.Context, userID, email string) (*model.CheckOutcome, error) {
			if email == "b@example.com" {
				return nil, model.NewLookupFailedError("timeout")
			}
			return &model.CheckOutcome{
				Result: &model.CheckResult{Email: email, BreachCount: 1},
			}, nil
		},
	}

	var buf bytes.Buffer
	scanner := NewScanner(userRepo, checker, nil, newTestLogger(&buf))

	stats, err := scanner.RunFullScan(context.Background())
	if err != nil {
		t.Fatalf("1アドレスの失敗で走査全体が失敗してはならない: %v", err)
	}

	// 失敗したアドレスの後続もチェックされている
	if len(checker.calls) != 3 {
		t.Errorf("チェック回数 = %d, 期待値 3: %v", len(checker.calls), checker.calls)
	}
	if stats.EmailsChecked != 2 {
		t.Errorf("EmailsChecked = %d, 期待値 2", stats.EmailsChecked)
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, 期待値 1", stats.Errors)
	}
}

func TestRunFullScan_LogsUnauthorizedDistinctly(t *testing.T) {
	userRepo := &mockUserRepo{
		listFunc: func(ctx context.Context) ([]*model.UserWithEmails, error) {
			return twoUsers()[:1], nil
		},
	}
	checker := &mockCheckRunner{
		runCheckFunc: func(ctx context.Context, userID, email string) (*model.CheckOutcome, error) {
			return nil, model.NewLookupUnauthorizedError()
		},
	}

	var buf bytes.Buffer
	scanner := NewScanner(userRepo, checker, nil, newTestLogger(&buf))

	stats, err := scanner.RunFullScan(context.Background())
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if stats.Errors != 2 {
		t.Errorf("Errors = %d, 期待値 2", stats.Errors)
	}
	if !bytes.Contains(buf.Bytes(), []byte("APIキーが無効")) {
		t.Error("APIキー無効はシステム全体の問題としてログされるべき")
	}
}

func TestRunFullScan_CancelDoesNotInterruptInFlightCheck(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	interrupted := make(chan struct{}, 1)

	userRepo := &mockUserRepo{
		listFunc: func(ctx context.Context) ([]*model.UserWithEmails, error) {
			return twoUsers(), nil
		},
	}
	checker := &mockCheckRunner{
		runCheckFunc: func(ctx context.Context, userID, email string) (*model.CheckOutcome, error) {
			close(started)
			select {
			case <-ctx.Done():
				interrupted <- struct{}{}
				return nil, ctx.Err()
			case <-release:
			}
			return &model.CheckOutcome{
				Result: &model.CheckResult{Email: email, BreachCount: 1},
			}, nil
		},
	}

	var buf bytes.Buffer
	scanner := NewScanner(userRepo, checker, nil, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		stats *model.ScanStats
		err   error
	}
	done := make(chan result, 1)
	go func() {
		stats, err := scanner.RunFullScan(ctx)
		done <- result{stats, err}
	}()

	<-started
	cancel()
	// 停止要求が実行中のチェックに伝播しないことを確認する猶予
	time.Sleep(20 * time.Millisecond)
	close(release)

	res := <-done
	if res.err != nil {
		t.Fatalf("予期しないエラー: %v", res.err)
	}

	select {
	case <-interrupted:
		t.Error("実行中のチェックが停止要求で中断された")
	default:
	}

	// 実行中だったアドレスは完遂され、後続のアドレスはスキップされる
	if len(checker.calls) != 1 {
		t.Errorf("チェック回数 = %d, 期待値 1: %v", len(checker.calls), checker.calls)
	}
	if res.stats.EmailsChecked != 1 {
		t.Errorf("EmailsChecked = %d, 期待値 1", res.stats.EmailsChecked)
	}
}

func TestRunFullScan_RejectsConcurrentRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	userRepo := &mockUserRepo{
		listFunc: func(ctx context.Context) ([]*model.UserWithEmails, error) {
			close(started)
			<-release
			return nil, nil
		},
	}

	var buf bytes.Buffer
	scanner := NewScanner(userRepo, &mockCheckRunner{}, nil, newTestLogger(&buf))

	go scanner.RunFullScan(context.Background())
	<-started

	if !scanner.IsScanning() {
		t.Error("IsScanningがtrueであるべき")
	}

	_, err := scanner.RunFullScan(context.Background())
	if err == nil {
		t.Error("実行中の多重起動はエラーになるべき")
	}

	close(release)

	// 完了後は再実行できる
	deadline := time.After(time.Second)
	for scanner.IsScanning() {
		select {
		case <-deadline:
			t.Fatal("スキャンが完了しない")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}
