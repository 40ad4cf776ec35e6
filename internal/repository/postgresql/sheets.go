package postgresql

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mobidash/importd/internal/core"
)

const TableSheetsConfig = "sheets_config"

// SheetsConfigRepository persists the single-row sheet sync configuration.
type SheetsConfigRepository struct {
	pool *pgxpool.Pool
	qb   sq.StatementBuilderType
}

func NewSheetsConfigRepository(pool *pgxpool.Pool) *SheetsConfigRepository {
	return &SheetsConfigRepository{
		pool: pool,
		qb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *SheetsConfigRepository) SaveSheetsConfig(ctx context.Context, cfg core.SheetsConfig) error {
	db := querier(ctx, r.pool)

	sql, args, err := r.qb.
		Insert(TableSheetsConfig).
		Columns("id", "spreadsheet_id_corridas", "spreadsheet_id_metas", "updated_at").
		Values(1, cfg.SpreadsheetRides, cfg.SpreadsheetTargets, sq.Expr("now()")).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			spreadsheet_id_corridas = EXCLUDED.spreadsheet_id_corridas,
			spreadsheet_id_metas = EXCLUDED.spreadsheet_id_metas,
			updated_at = now()`).
		ToSql()
	if err != nil {
		return buildQueryError(err)
	}

	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return execQueryError(err)
	}

	return nil
}

func (r *SheetsConfigRepository) GetSheetsConfig(ctx context.Context) (*core.SheetsConfig, error) {
	db := querier(ctx, r.pool)

	sql, args, err := r.qb.
		Select("spreadsheet_id_corridas", "spreadsheet_id_metas").
		From(TableSheetsConfig).
		Where(sq.Eq{"id": 1}).
		ToSql()
	if err != nil {
		return nil, buildQueryError(err)
	}

	var cfg core.SheetsConfig
	err = db.QueryRow(ctx, sql, args...).Scan(&cfg.SpreadsheetRides, &cfg.SpreadsheetTargets)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, scanRowError(err)
	}

	return &cfg, nil
}
