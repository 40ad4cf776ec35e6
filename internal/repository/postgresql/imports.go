package postgresql

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mobidash/importd/internal/core"
)

const TableImportLogs = "import_logs"

// ImportLogRepository persists import history entries.
type ImportLogRepository struct {
	pool *pgxpool.Pool
	qb   sq.StatementBuilderType
}

func NewImportLogRepository(pool *pgxpool.Pool) *ImportLogRepository {
	return &ImportLogRepository{
		pool: pool,
		qb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *ImportLogRepository) CreateImportLog(ctx context.Context, params core.CreateImportLogParams) (int64, error) {
	db := querier(ctx, r.pool)

	builder := r.qb.
		Insert(TableImportLogs).
		Columns("filename", "file_size", "import_type", "status", "started_at").
		Values(params.Filename, params.FileSize, string(params.ImportType), core.StatusProcessing, sq.Expr("now()")).
		Suffix("RETURNING id")

	if params.IdempotencyKey != "" {
		builder = r.qb.
			Insert(TableImportLogs).
			Columns("filename", "file_size", "import_type", "status", "idempotency_key", "started_at").
			Values(params.Filename, params.FileSize, string(params.ImportType), core.StatusProcessing, params.IdempotencyKey, sq.Expr("now()")).
			Suffix("RETURNING id")
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return 0, buildQueryError(err)
	}

	var id int64
	if err := db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, scanRowError(err)
	}

	return id, nil
}

func (r *ImportLogRepository) FinishImportLog(ctx context.Context, params core.FinishImportLogParams) error {
	db := querier(ctx, r.pool)

	sql, args, err := r.qb.
		Update(TableImportLogs).
		Set("total_rows", params.TotalRows).
		Set("success_rows", params.SuccessRows).
		Set("error_rows", params.ErrorRows).
		Set("status", params.Status).
		Set("error_message", params.ErrorMessage).
		Set("completed_at", sq.Expr("now()")).
		Where(sq.Eq{"id": params.ID}).
		ToSql()
	if err != nil {
		return buildQueryError(err)
	}

	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return execQueryError(err)
	}

	return nil
}

func (r *ImportLogRepository) ListImportLogs(ctx context.Context, limit int) ([]core.ImportLogEntry, error) {
	db := querier(ctx, r.pool)

	sql, args, err := r.qb.
		Select(
			"id",
			"filename",
			"file_size",
			"total_rows",
			"success_rows",
			"error_rows",
			"import_type",
			"status",
			"COALESCE(error_message, '') AS error_message",
			"started_at",
			"completed_at",
		).
		From(TableImportLogs).
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, buildQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, execQueryError(err)
	}

	entries, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[core.ImportLogEntry])
	if err != nil {
		return nil, collectRowsError(err)
	}

	return entries, nil
}

func (r *ImportLogRepository) FindByIdempotencyKey(ctx context.Context, key string) (*core.ImportLogEntry, error) {
	db := querier(ctx, r.pool)

	sql, args, err := r.qb.
		Select(
			"id",
			"filename",
			"file_size",
			"total_rows",
			"success_rows",
			"error_rows",
			"import_type",
			"status",
			"COALESCE(error_message, '') AS error_message",
			"started_at",
			"completed_at",
		).
		From(TableImportLogs).
		Where(sq.Eq{"idempotency_key": key}).
		OrderBy("started_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, buildQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, execQueryError(err)
	}

	entry, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByNameLax[core.ImportLogEntry])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, collectRowsError(err)
	}

	return entry, nil
}
