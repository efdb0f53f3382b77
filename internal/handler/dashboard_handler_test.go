package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/sentinelx/internal/dashboard"
	"github.com/hitoshi/sentinelx/internal/model"
)

// mockDashboardService はDashboardServiceInterfaceのモック実装。
type mockDashboardService struct {
	getSummaryFn func(ctx context.Context, email string) (*dashboard.Summary, error)
}

func (m *mockDashboardService) GetSummary(ctx context.Context, email string) (*dashboard.Summary, error) {
	if m.getSummaryFn != nil {
		return m.getSummaryFn(ctx, email)
	}
	return &dashboard.Summary{Email: email}, nil
}

func TestDashboardHandler_GetDashboard_Success(t *testing.T) {
	svc := &mockDashboardService{
		getSummaryFn: func(ctx context.Context, email string) (*dashboard.Summary, error) {
			return &dashboard.Summary{
				Email:       email,
				LatestCheck: &model.CheckResult{Email: email, BreachCount: 2, RiskScore: 60},
				HasAlerts:   true,
			}, nil
		},
	}
	h := NewDashboardHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard?email=target@example.com", nil)
	req = withIdentity(req, "user-123")
	w := httptest.NewRecorder()

	h.GetDashboard(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp dashboard.Summary
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Email != "target@example.com" || !resp.HasAlerts {
		t.Errorf("summary = %+v", resp)
	}
}

func TestDashboardHandler_GetDashboard_MissingEmail(t *testing.T) {
	h := NewDashboardHandler(&mockDashboardService{})

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req = withIdentity(req, "user-123")
	w := httptest.NewRecorder()

	h.GetDashboard(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	resp := parseAPIErrorResponse(t, w)
	if resp["code"] != model.ErrCodeEmailRequired {
		t.Errorf("code = %q, want %q", resp["code"], model.ErrCodeEmailRequired)
	}
}
