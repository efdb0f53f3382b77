package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/sentinelx/internal/dashboard"
	"github.com/hitoshi/sentinelx/internal/model"
)

// DashboardServiceInterface はダッシュボードハンドラーが必要とするサービスインターフェース。
type DashboardServiceInterface interface {
	// GetSummary は指定アドレスのダッシュボード表示用データを集約する。
	GetSummary(ctx context.Context, email string) (*dashboard.Summary, error)
}

// DashboardHandler はダッシュボード表示のHTTPハンドラー。
type DashboardHandler struct {
	service DashboardServiceInterface
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(service DashboardServiceInterface) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// GetDashboard は指定アドレスのダッシュボードデータを返す。
// GET /api/dashboard?email=...
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewEmailRequiredError())
		return
	}

	summary, err := h.service.GetSummary(r.Context(), email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}
