package postgresql

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mobidash/importd/internal/core"
)

const (
	TableRides   = "corridas"
	TableDrivers = "motoristas"
	TableTargets = "metas"
)

// RecordRepository persists the typed rows of an import batch.
type RecordRepository struct {
	pool *pgxpool.Pool
	qb   sq.StatementBuilderType
}

func NewRecordRepository(pool *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{
		pool: pool,
		qb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// InsertRides bulk-loads ride rows with COPY. Ride batches are by far the
// largest, so the row-at-a-time insert path is not worth it here.
func (r *RecordRepository) InsertRides(ctx context.Context, rides []core.Ride) error {
	db := querier(ctx, r.pool)

	copied, err := db.CopyFrom(ctx, pgx.Identifier{TableRides}, []string{
		"data",
		"usuario_nome",
		"usuario_telefone",
		"motorista_nome",
		"municipio",
		"status",
		"valor",
		"distancia",
		"tempo_corrida",
		"avaliacao",
		"motivo_cancelamento",
		"source",
	}, pgx.CopyFromSlice(len(rides), func(i int) ([]any, error) {
		return []any{
			rides[i].Date,
			rides[i].UserName,
			rides[i].UserPhone,
			rides[i].DriverName,
			rides[i].City,
			string(rides[i].Status),
			rides[i].Fare,
			rides[i].DistanceKM,
			rides[i].DurationMin,
			rides[i].Rating,
			rides[i].CancelReason,
			rides[i].Source,
		}, nil
	}))
	if err != nil {
		return fmt.Errorf("failed to save rides: %w", err)
	}

	if copied != int64(len(rides)) {
		return fmt.Errorf("failed to save rides: copied %d rows, expected %d", copied, len(rides))
	}

	return nil
}

// InsertDrivers upserts driver rows keyed by (nome, municipio) so re-imports
// refresh contact details instead of duplicating drivers.
func (r *RecordRepository) InsertDrivers(ctx context.Context, drivers []core.Driver) error {
	db := querier(ctx, r.pool)

	builder := r.qb.
		Insert(TableDrivers).
		Columns("nome", "municipio", "telefone", "status", "data_cadastro", "source")

	for _, d := range drivers {
		builder = builder.Values(d.Name, d.City, d.Phone, d.Status, d.RegisteredAt, d.Source)
	}

	sql, args, err := builder.
		Suffix(`ON CONFLICT (nome, municipio) DO UPDATE SET
			telefone = EXCLUDED.telefone,
			status = EXCLUDED.status,
			data_cadastro = EXCLUDED.data_cadastro`).
		ToSql()
	if err != nil {
		return buildQueryError(err)
	}

	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return execQueryError(err)
	}

	return nil
}

// InsertTargets upserts monthly targets keyed by (municipio, mes). A
// re-imported month replaces the previous numbers.
func (r *RecordRepository) InsertTargets(ctx context.Context, targets []core.Target) error {
	db := querier(ctx, r.pool)

	builder := r.qb.
		Insert(TableTargets).
		Columns("municipio", "mes", "meta_corridas", "meta_receita", "meta_motoristas", "source")

	for _, t := range targets {
		builder = builder.Values(t.City, t.Month, t.TargetRides, t.TargetRevenue, t.TargetDrivers, t.Source)
	}

	sql, args, err := builder.
		Suffix(`ON CONFLICT (municipio, mes) DO UPDATE SET
			meta_corridas = EXCLUDED.meta_corridas,
			meta_receita = EXCLUDED.meta_receita,
			meta_motoristas = EXCLUDED.meta_motoristas`).
		ToSql()
	if err != nil {
		return buildQueryError(err)
	}

	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return execQueryError(err)
	}

	return nil
}
