package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/sentinelx/internal/model"
)

// PostgresAlertRepo はPostgreSQLを使用したアラートリポジトリ。
type PostgresAlertRepo struct {
	db *sql.DB
}

// NewPostgresAlertRepo はPostgresAlertRepoを生成する。
func NewPostgresAlertRepo(db *sql.DB) *PostgresAlertRepo {
	return &PostgresAlertRepo{db: db}
}

// FindByUserAndEmail はユーザーと監視対象アドレスの組のアラートを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresAlertRepo) FindByUserAndEmail(ctx context.Context, userID, email string) (*model.Alert, error) {
	a := &model.Alert{}
	var breachesJSON []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, monitored_email, breach_count, breaches_json,
		        severity, risk_score, detected_at
		 FROM alerts
		 WHERE user_id = $1 AND monitored_email = $2`,
		userID, email,
	).Scan(
		&a.ID, &a.UserID, &a.MonitoredEmail, &a.BreachCount, &breachesJSON,
		&a.Severity, &a.RiskScore, &a.DetectedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アラートの取得に失敗しました: %w", err)
	}

	if err := json.Unmarshal(breachesJSON, &a.Breaches); err != nil {
		return nil, fmt.Errorf("アラートの漏洩一覧のパースに失敗しました: %w", err)
	}
	return a, nil
}

// ListByUserID はユーザーの全アラートを検出日時の新しい順に返す。
func (r *PostgresAlertRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Alert, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, monitored_email, breach_count, breaches_json,
		        severity, risk_score, detected_at
		 FROM alerts
		 WHERE user_id = $1
		 ORDER BY detected_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("アラート一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var alerts []*model.Alert
	for rows.Next() {
		a := &model.Alert{}
		var breachesJSON []byte

		if err := rows.Scan(
			&a.ID, &a.UserID, &a.MonitoredEmail, &a.BreachCount, &breachesJSON,
			&a.Severity, &a.RiskScore, &a.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("アラートの読み取りに失敗しました: %w", err)
		}

		if err := json.Unmarshal(breachesJSON, &a.Breaches); err != nil {
			return nil, fmt.Errorf("アラートの漏洩一覧のパースに失敗しました: %w", err)
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アラート一覧の走査に失敗しました: %w", err)
	}

	return alerts, nil
}

// ExistsByEmail は指定アドレスに対するアラートが存在するかを返す。
func (r *PostgresAlertRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM alerts WHERE monitored_email = $1)`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("アラートの存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// DeleteByUserAndEmail はユーザーと監視対象アドレスの組のアラートを削除する。
func (r *PostgresAlertRepo) DeleteByUserAndEmail(ctx context.Context, userID, email string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM alerts WHERE user_id = $1 AND monitored_email = $2`,
		userID, email,
	)
	if err != nil {
		return fmt.Errorf("アラートの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AlertRepository = (*PostgresAlertRepo)(nil)
