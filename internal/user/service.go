// Package user はユーザープロフィールと監視対象アドレス管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/sentinelx/internal/check"
	"github.com/hitoshi/sentinelx/internal/middleware"
	"github.com/hitoshi/sentinelx/internal/model"
	"github.com/hitoshi/sentinelx/internal/repository"
)

// CheckRunner は漏洩チェックの実行インターフェース。
// 監視対象アドレスの追加直後に即時チェックを行うために使用する。
type CheckRunner interface {
	RunCheck(ctx context.Context, userID, email string) (*model.CheckOutcome, error)
}

// Service はユーザープロフィールと監視対象アドレスのサービス層。
type Service struct {
	userRepo      repository.UserRepository
	userEmailRepo repository.UserEmailRepository
	alertRepo     repository.AlertRepository
	monitoredRepo repository.MonitoredEmailRepository
	checker       CheckRunner
	logger        *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	userEmailRepo repository.UserEmailRepository,
	alertRepo repository.AlertRepository,
	monitoredRepo repository.MonitoredEmailRepository,
	checker CheckRunner,
	logger *slog.Logger,
) *Service {
	return &Service{
		userRepo:      userRepo,
		userEmailRepo: userEmailRepo,
		alertRepo:     alertRepo,
		monitoredRepo: monitoredRepo,
		checker:       checker,
		logger:        logger,
	}
}

var _ middleware.ProfileEnsurer = (*Service)(nil)

// EnsureProfile は認証済みユーザーのプロフィールを確立する。
// 初回アクセス時に作成し、以後は通知先・表示名を最新の値で更新する。
// 認証ミドルウェアから毎リクエスト呼ばれるため、プロフィール行の存在は
// すべてのエンドポイントで前提にできる。
func (s *Service) EnsureProfile(ctx context.Context, userID, email, displayName string) error {
	u := &model.User{
		ID:          userID,
		Email:       email,
		DisplayName: displayName,
	}
	if err := s.userRepo.Upsert(ctx, u); err != nil {
		return fmt.Errorf("プロフィールの確立に失敗しました: %w", err)
	}
	return nil
}

// GetProfile はユーザープロフィールを監視対象アドレス一覧付きで返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.UserWithEmails, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}

	emails, err := s.userEmailRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("監視対象アドレス一覧の取得に失敗しました: %w", err)
	}

	return &model.UserWithEmails{User: *u, MonitoredEmails: emails}, nil
}

// ListEmails はユーザーの監視対象アドレス一覧を返す。
func (s *Service) ListEmails(ctx context.Context, userID string) ([]string, error) {
	emails, err := s.userEmailRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("監視対象アドレス一覧の取得に失敗しました: %w", err)
	}
	return emails, nil
}

// AddEmail は監視対象アドレスを追加し、追加直後に即時チェックを実行する。
// 即時チェックの結果は戻り値で返すが、チェック失敗は追加を取り消さない。
func (s *Service) AddEmail(ctx context.Context, userID, email string) (*model.CheckOutcome, error) {
	if err := check.ValidateEmail(email); err != nil {
		return nil, err
	}

	exists, err := s.userEmailRepo.Exists(ctx, userID, email)
	if err != nil {
		return nil, fmt.Errorf("監視対象アドレスの存在確認に失敗しました: %w", err)
	}
	if exists {
		return nil, model.NewDuplicateEmailError(email)
	}

	if err := s.userEmailRepo.Add(ctx, userID, email); err != nil {
		return nil, fmt.Errorf("監視対象アドレスの追加に失敗しました: %w", err)
	}

	s.logger.Info("監視対象アドレスを追加しました",
		slog.String("user_id", userID),
		slog.String("email", email),
	)

	// 追加直後の即時チェック。初回チェックはベースライン確立となる。
	outcome, err := s.checker.RunCheck(ctx, userID, email)
	if err != nil {
		s.logger.Warn("追加直後のチェックに失敗しました。次回スキャンで再試行されます",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	return outcome, nil
}

// RemoveEmail は監視対象アドレスを削除する。
// 該当アドレスのアラートも削除し、監視するユーザーがいなくなった場合は
// グローバル登録簿のエントリを非活性化する。
func (s *Service) RemoveEmail(ctx context.Context, userID, email string) error {
	found, err := s.userEmailRepo.Delete(ctx, userID, email)
	if err != nil {
		return fmt.Errorf("監視対象アドレスの削除に失敗しました: %w", err)
	}
	if !found {
		return model.NewEmailNotMonitoredError(email)
	}

	if err := s.alertRepo.DeleteByUserAndEmail(ctx, userID, email); err != nil {
		return fmt.Errorf("アラートのクリーンアップに失敗しました: %w", err)
	}

	count, err := s.userEmailRepo.CountByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("監視ユーザー数の取得に失敗しました: %w", err)
	}
	if count == 0 {
		if err := s.monitoredRepo.Deactivate(ctx, email); err != nil {
			return fmt.Errorf("登録簿エントリの非活性化に失敗しました: %w", err)
		}
	}

	s.logger.Info("監視対象アドレスを削除しました",
		slog.String("user_id", userID),
		slog.String("email", email),
		slog.Int("remaining_watchers", count),
	)
	return nil
}

// ListAlerts はユーザーの全アラートを検出日時の新しい順に返す。
func (s *Service) ListAlerts(ctx context.Context, userID string) ([]*model.Alert, error) {
	alerts, err := s.alertRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("アラート一覧の取得に失敗しました: %w", err)
	}
	return alerts, nil
}
