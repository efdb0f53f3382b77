package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/sentinelx/internal/middleware"
	"github.com/hitoshi/sentinelx/internal/model"
)

// CheckServiceInterface はチェックハンドラーが必要とするサービスインターフェース。
type CheckServiceInterface interface {
	// RunCheck は指定アドレスの漏洩チェックを実行し、履歴記録とアラート判定を行う。
	RunCheck(ctx context.Context, userID, email string) (*model.CheckOutcome, error)
}

// CheckHandler はオンデマンド漏洩チェックのHTTPハンドラー。
type CheckHandler struct {
	service CheckServiceInterface
}

// NewCheckHandler はCheckHandlerを生成する。
func NewCheckHandler(service CheckServiceInterface) *CheckHandler {
	return &CheckHandler{service: service}
}

// checkEmailRequest はチェック実行リクエストのボディ。
type checkEmailRequest struct {
	Email string `json:"email"`
}

// checkEmailResponse はチェック実行結果のAPIレスポンス。
type checkEmailResponse struct {
	Result           *model.CheckResult   `json:"result"`
	Baseline         bool                 `json:"baseline"`
	NewBreaches      []model.BreachRecord `json:"new_breaches,omitempty"`
	Alert            *model.Alert         `json:"alert,omitempty"`
	NotificationSent bool                 `json:"notification_sent"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// CheckEmail はオンデマンドの漏洩チェックを処理する。
// POST /api/check-email
func (h *CheckHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	var req checkEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	outcome, err := h.service.RunCheck(r.Context(), userID, req.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(checkEmailResponse{
		Result:           outcome.Result,
		Baseline:         outcome.Baseline,
		NewBreaches:      outcome.NewBreaches,
		Alert:            outcome.Alert,
		NotificationSent: outcome.NotificationSent,
	})
}

// --- ヘルパー関数 ---

// unauthorizedError は認証必須エラーを生成する。
func unauthorizedError() *model.APIError {
	return &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// invalidRequestError はリクエストボディ解析失敗のエラーを生成する。
func invalidRequestError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidEmail, model.ErrCodeEmailRequired:
		return http.StatusBadRequest
	case model.ErrCodeDuplicateEmail:
		return http.StatusConflict
	case model.ErrCodeEmailNotMonitored, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeLookupFailed:
		return http.StatusBadGateway
	case model.ErrCodeLookupRateLimited:
		return http.StatusServiceUnavailable
	case model.ErrCodeLookupUnauthorized:
		return http.StatusBadGateway
	case model.ErrCodeScanAlreadyRunning:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
