package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockVerifier はTokenVerifierのモック実装。
type mockVerifier struct {
	verifyFunc func(ctx context.Context, token string) (*Identity, error)
	lastToken  string
}

func (m *mockVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	m.lastToken = token
	return m.verifyFunc(ctx, token)
}

func TestAuthMiddleware_InjectsIdentity(t *testing.T) {
	verifier := &mockVerifier{
		verifyFunc: func(ctx context.Context, token string) (*Identity, error) {
			return &Identity{UserID: "user-1", Email: "user@example.com"}, nil
		},
	}
	mw := NewAuthMiddleware(verifier, nil)

	var gotUserID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("コンテキストにユーザーIDが注入されているべき: %v", err)
		}
		gotUserID = userID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if verifier.lastToken != "valid-token" {
		t.Errorf("token = %q, want %q", verifier.lastToken, "valid-token")
	}
	if gotUserID != "user-1" {
		t.Errorf("userID = %q, want %q", gotUserID, "user-1")
	}
}

func TestAuthMiddleware_MissingHeader_Returns401(t *testing.T) {
	verifier := &mockVerifier{
		verifyFunc: func(ctx context.Context, token string) (*Identity, error) {
			t.Error("ヘッダがない場合Verifyは呼ばれないべき")
			return nil, nil
		},
	}
	mw := NewAuthMiddleware(verifier, nil)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("ハンドラーは呼ばれないべき")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_MalformedHeader_Returns401(t *testing.T) {
	verifier := &mockVerifier{
		verifyFunc: func(ctx context.Context, token string) (*Identity, error) {
			return &Identity{UserID: "user-1"}, nil
		},
	}
	mw := NewAuthMiddleware(verifier, nil)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("ハンドラーは呼ばれないべき")
	}))

	for _, header := range []string{"Basic abc", "Bearer", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want %d", header, w.Result().StatusCode, http.StatusUnauthorized)
		}
	}
}

func TestAuthMiddleware_VerifyFailure_Returns401(t *testing.T) {
	verifier := &mockVerifier{
		verifyFunc: func(ctx context.Context, token string) (*Identity, error) {
			return nil, errors.New("トークンの有効期限切れ")
		},
	}
	mw := NewAuthMiddleware(verifier, nil)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("ハンドラーは呼ばれないべき")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// mockEnsurer はProfileEnsurerのモック実装。
type mockEnsurer struct {
	ensureFunc func(ctx context.Context, userID, email, displayName string) error
	calls      []string
}

func (m *mockEnsurer) EnsureProfile(ctx context.Context, userID, email, displayName string) error {
	m.calls = append(m.calls, userID)
	if m.ensureFunc != nil {
		return m.ensureFunc(ctx, userID, email, displayName)
	}
	return nil
}

func TestAuthMiddleware_EnsuresProfileBeforeHandler(t *testing.T) {
	verifier := &mockVerifier{
		verifyFunc: func(ctx context.Context, token string) (*Identity, error) {
			return &Identity{UserID: "user-1", Email: "user@example.com", DisplayName: "山田"}, nil
		},
	}
	var gotEmail, gotName string
	ensurer := &mockEnsurer{
		ensureFunc: func(ctx context.Context, userID, email, displayName string) error {
			gotEmail = email
			gotName = displayName
			return nil
		},
	}
	mw := NewAuthMiddleware(verifier, ensurer)

	handlerCalled := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// ハンドラー到達時点でプロフィールが保証されている
		if len(ensurer.calls) != 1 {
			t.Errorf("ハンドラー実行前にEnsureProfileが呼ばれているべき: calls=%v", ensurer.calls)
		}
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/users/me/emails", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !handlerCalled {
		t.Fatal("ハンドラーが呼ばれるべき")
	}
	if len(ensurer.calls) != 1 || ensurer.calls[0] != "user-1" {
		t.Errorf("EnsureProfileの呼び出し = %v, 期待値 [user-1]", ensurer.calls)
	}
	if gotEmail != "user@example.com" || gotName != "山田" {
		t.Errorf("email = %q, displayName = %q", gotEmail, gotName)
	}
}

func TestAuthMiddleware_EnsurerFailure_Returns500(t *testing.T) {
	verifier := &mockVerifier{
		verifyFunc: func(ctx context.Context, token string) (*Identity, error) {
			return &Identity{UserID: "user-1"}, nil
		},
	}
	ensurer := &mockEnsurer{
		ensureFunc: func(ctx context.Context, userID, email, displayName string) error {
			return errors.New("DB接続エラー")
		},
	}
	mw := NewAuthMiddleware(verifier, ensurer)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("ハンドラーは呼ばれないべき")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}

func TestIdentityFromContext_Missing(t *testing.T) {
	if _, err := IdentityFromContext(context.Background()); err == nil {
		t.Error("認証情報がない場合はエラーを返すべき")
	}
}

func TestContextWithIdentity_RoundTrip(t *testing.T) {
	identity := &Identity{UserID: "user-9", Email: "nine@example.com"}
	ctx := ContextWithIdentity(context.Background(), identity)

	got, err := IdentityFromContext(ctx)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if got.UserID != "user-9" || got.Email != "nine@example.com" {
		t.Errorf("identity = %+v", got)
	}
}
