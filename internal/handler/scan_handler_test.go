package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/sentinelx/internal/model"
)

// mockScanRunner はScanRunnerのモック実装。
type mockScanRunner struct {
	runFullScanFn func(ctx context.Context) (*model.ScanStats, error)
	scanning      bool
}

func (m *mockScanRunner) RunFullScan(ctx context.Context) (*model.ScanStats, error) {
	if m.runFullScanFn != nil {
		return m.runFullScanFn(ctx)
	}
	return &model.ScanStats{}, nil
}

func (m *mockScanRunner) IsScanning() bool {
	return m.scanning
}

func TestScanHandler_RunScan_ReturnsStats(t *testing.T) {
	runner := &mockScanRunner{
		runFullScanFn: func(ctx context.Context) (*model.ScanStats, error) {
			return &model.ScanStats{
				UsersScanned:  2,
				EmailsChecked: 5,
				BreachesFound: 3,
			}, nil
		},
	}
	h := NewScanHandler(runner)

	req := httptest.NewRequest(http.MethodPost, "/api/scan/run", nil)
	req = withIdentity(req, "user-123")
	w := httptest.NewRecorder()

	h.RunScan(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var stats model.ScanStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if stats.EmailsChecked != 5 {
		t.Errorf("emails_checked = %d, want 5", stats.EmailsChecked)
	}
}

func TestScanHandler_RunScan_AlreadyRunning(t *testing.T) {
	runner := &mockScanRunner{
		runFullScanFn: func(ctx context.Context) (*model.ScanStats, error) {
			return nil, model.NewScanAlreadyRunningError()
		},
	}
	h := NewScanHandler(runner)

	req := httptest.NewRequest(http.MethodPost, "/api/scan/run", nil)
	req = withIdentity(req, "user-123")
	w := httptest.NewRecorder()

	h.RunScan(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	resp := parseAPIErrorResponse(t, w)
	if resp["code"] != model.ErrCodeScanAlreadyRunning {
		t.Errorf("code = %q, want %q", resp["code"], model.ErrCodeScanAlreadyRunning)
	}
}

func TestScanHandler_ScanStatus(t *testing.T) {
	h := NewScanHandler(&mockScanRunner{scanning: true})

	req := httptest.NewRequest(http.MethodGet, "/api/scan/status", nil)
	req = withIdentity(req, "user-123")
	w := httptest.NewRecorder()

	h.ScanStatus(w, req)

	var resp scanStatusResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Running {
		t.Error("running はtrueであるべき")
	}
}
