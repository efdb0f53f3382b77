package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/sentinelx/internal/middleware"
)

// identityResponse は認証済みIDのAPIレスポンス。
type identityResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// AuthMe はトークンに対応する認証済みIDを返す。
// プロフィールと違いDBアクセスを伴わず、トークンの死活確認に使える。
// GET /auth/me
func AuthMe(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(identityResponse{
		UserID:      identity.UserID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
	})
}
