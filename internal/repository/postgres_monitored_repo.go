package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sentinelx/internal/model"
)

// PostgresMonitoredEmailRepo はPostgreSQLを使用したグローバル登録簿リポジトリ。
type PostgresMonitoredEmailRepo struct {
	db *sql.DB
}

// NewPostgresMonitoredEmailRepo はPostgresMonitoredEmailRepoを生成する。
func NewPostgresMonitoredEmailRepo(db *sql.DB) *PostgresMonitoredEmailRepo {
	return &PostgresMonitoredEmailRepo{db: db}
}

// FindByEmail は登録簿のエントリを取得する。見つからない場合はnilを返す。
func (r *PostgresMonitoredEmailRepo) FindByEmail(ctx context.Context, email string) (*model.MonitoredEmail, error) {
	m := &model.MonitoredEmail{}

	err := r.db.QueryRowContext(ctx,
		`SELECT email, active, created_at FROM monitored_emails WHERE email = $1`,
		email,
	).Scan(&m.Email, &m.Active, &m.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("登録簿エントリの取得に失敗しました: %w", err)
	}

	return m, nil
}

// Deactivate は登録簿のエントリを非活性化する。
func (r *PostgresMonitoredEmailRepo) Deactivate(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE monitored_emails SET active = false WHERE email = $1`,
		email,
	)
	if err != nil {
		return fmt.Errorf("登録簿エントリの非活性化に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ MonitoredEmailRepository = (*PostgresMonitoredEmailRepo)(nil)
