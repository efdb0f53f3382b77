package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/sentinelx/internal/model"
)

// ScanRunner はスキャンハンドラーが必要とするスキャナーインターフェース。
type ScanRunner interface {
	// RunFullScan は全ユーザーの全監視対象アドレスをチェックする。
	RunFullScan(ctx context.Context) (*model.ScanStats, error)
	// IsScanning はフルスキャンが実行中かどうかを返す。
	IsScanning() bool
}

// ScanHandler は手動スキャン実行のHTTPハンドラー。
type ScanHandler struct {
	runner ScanRunner
}

// NewScanHandler はScanHandlerを生成する。
func NewScanHandler(runner ScanRunner) *ScanHandler {
	return &ScanHandler{runner: runner}
}

// scanStatusResponse はスキャン状態のAPIレスポンス。
type scanStatusResponse struct {
	Running bool `json:"running"`
}

// RunScan はフルスキャンを即時実行する。
// 実行中の場合は409を返す（スキャンは同時に1つしか走らない）。
// POST /api/scan/run
func (h *ScanHandler) RunScan(w http.ResponseWriter, r *http.Request) {
	stats, err := h.runner.RunFullScan(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// ScanStatus はフルスキャンの実行状態を返す。
// GET /api/scan/status
func (h *ScanHandler) ScanStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(scanStatusResponse{Running: h.runner.IsScanning()})
}
