package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/sentinelx/internal/middleware"
	"github.com/hitoshi/sentinelx/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// GetProfile はユーザープロフィールを監視対象アドレス一覧付きで返す。
	GetProfile(ctx context.Context, userID string) (*model.UserWithEmails, error)
	// ListEmails はユーザーの監視対象アドレス一覧を返す。
	ListEmails(ctx context.Context, userID string) ([]string, error)
	// AddEmail は監視対象アドレスを追加し、追加直後に即時チェックを実行する。
	AddEmail(ctx context.Context, userID, email string) (*model.CheckOutcome, error)
	// RemoveEmail は監視対象アドレスを削除する。
	RemoveEmail(ctx context.Context, userID, email string) error
	// ListAlerts はユーザーの全アラートを返す。
	ListAlerts(ctx context.Context, userID string) ([]*model.Alert, error)
}

// UserHandler はユーザープロフィールと監視対象アドレス管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// profileResponse はプロフィールのAPIレスポンス。
type profileResponse struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	DisplayName     string   `json:"display_name"`
	MonitoredEmails []string `json:"monitored_emails"`
}

// monitoredEmailRequest は監視対象アドレスの追加・削除リクエストのボディ。
type monitoredEmailRequest struct {
	Email string `json:"email"`
}

// addEmailResponse は監視対象アドレス追加のAPIレスポンス。
// InitialCheck は追加直後の即時チェック結果。チェック失敗時はnil。
type addEmailResponse struct {
	Email        string              `json:"email"`
	InitialCheck *checkEmailResponse `json:"initial_check,omitempty"`
}

// emailListResponse は監視対象アドレス一覧のAPIレスポンス。
type emailListResponse struct {
	Emails []string `json:"emails"`
}

// alertListResponse はアラート一覧のAPIレスポンス。
type alertListResponse struct {
	Alerts []*model.Alert `json:"alerts"`
}

// Me は認証済みユーザーのプロフィールを返す。
// プロフィール行は認証ミドルウェアが保証済み。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	profile, err := h.service.GetProfile(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profileResponse{
		ID:              profile.ID,
		Email:           profile.Email,
		DisplayName:     profile.DisplayName,
		MonitoredEmails: profile.MonitoredEmails,
	})
}

// ListEmails は監視対象アドレス一覧を返す。
// GET /api/users/me/emails
func (h *UserHandler) ListEmails(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	emails, err := h.service.ListEmails(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(emailListResponse{Emails: emails})
}

// AddEmail は監視対象アドレスを追加する。
// POST /api/users/me/emails
func (h *UserHandler) AddEmail(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	var req monitoredEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	outcome, err := h.service.AddEmail(r.Context(), userID, req.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := addEmailResponse{Email: req.Email}
	if outcome != nil {
		resp.InitialCheck = &checkEmailResponse{
			Result:           outcome.Result,
			Baseline:         outcome.Baseline,
			NewBreaches:      outcome.NewBreaches,
			Alert:            outcome.Alert,
			NotificationSent: outcome.NotificationSent,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// RemoveEmail は監視対象アドレスを削除する。
// DELETE /api/users/me/emails
func (h *UserHandler) RemoveEmail(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	var req monitoredEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	if err := h.service.RemoveEmail(r.Context(), userID, req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListAlerts はユーザーの全アラートを検出日時の新しい順に返す。
// GET /api/users/me/alerts
func (h *UserHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	alerts, err := h.service.ListAlerts(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if alerts == nil {
		alerts = []*model.Alert{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(alertListResponse{Alerts: alerts})
}
