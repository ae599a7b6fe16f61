package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/recordmatch/internal/db"
	"github.com/sells-group/recordmatch/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgInsertComparison = `INSERT INTO comparisons (id, master_file, secondary_file, total_rows, matched_rows, unmatched_rows, master_columns, secondary_columns, secondary_header, comparison_method, similarity_threshold, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	pgGetComparison    = `SELECT id, master_file, secondary_file, total_rows, matched_rows, unmatched_rows, master_columns, secondary_columns, secondary_header, comparison_method, similarity_threshold, created_at, updated_at FROM comparisons WHERE id = $1`
	pgListComparisons  = `SELECT id, master_file, secondary_file, total_rows, matched_rows, unmatched_rows, comparison_method, similarity_threshold, created_at FROM comparisons ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	pgComparisonExists = `SELECT EXISTS (SELECT 1 FROM comparisons WHERE id = $1)`
	pgDeleteComparison = `DELETE FROM comparisons WHERE id = $1`
)

// rowColumns is the COPY column list for comparison_rows.
var rowColumns = []string{"comparison_id", "row_num", "matched", "master_row", "similarity_score", "per_column", "data"}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_comparison": pgInsertComparison,
	"get_comparison":    pgGetComparison,
	"list_comparisons":  pgListComparisons,
	"comparison_exists": pgComparisonExists,
	"delete_comparison": pgDeleteComparison,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				// Statements reference tables created by Migrate.
				if isUndefinedTable(err) {
					continue
				}
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS comparisons (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	master_file          TEXT NOT NULL,
	secondary_file       TEXT NOT NULL,
	total_rows           INTEGER NOT NULL,
	matched_rows         INTEGER NOT NULL,
	unmatched_rows       INTEGER NOT NULL,
	master_columns       JSONB NOT NULL,
	secondary_columns    JSONB NOT NULL,
	secondary_header     JSONB NOT NULL,
	comparison_method    TEXT NOT NULL DEFAULT 'exact',
	similarity_threshold DOUBLE PRECISION,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS comparison_rows (
	comparison_id    TEXT NOT NULL REFERENCES comparisons(id) ON DELETE CASCADE,
	row_num          INTEGER NOT NULL,
	matched          BOOLEAN NOT NULL,
	master_row       INTEGER NOT NULL DEFAULT 0,
	similarity_score DOUBLE PRECISION,
	per_column       JSONB,
	data             JSONB NOT NULL,
	PRIMARY KEY (comparison_id, row_num)
);

CREATE INDEX IF NOT EXISTS idx_comparisons_created_at ON comparisons(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_comparison_rows_matched ON comparison_rows(comparison_id, matched);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveComparison inserts the comparison row, then streams its outcomes with
// COPY inside the same transaction.
func (s *PostgresStore) SaveComparison(ctx context.Context, c *model.Comparison, rows []model.RowResult) error {
	prepare(c)

	masterCols, secondaryCols, header, err := marshalColumns(c)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal columns")
	}

	copyRows := make([][]any, len(rows))
	for i, r := range rows {
		perColumn, data, err := marshalRow(r)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal row %d", r.Row)
		}
		copyRows[i] = []any{c.ID, r.Row, r.Matched, r.MasterRow, r.Score, perColumn, data}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, pgInsertComparison,
		c.ID, c.MasterFile, c.SecondaryFile, c.TotalRows, c.MatchedRows, c.UnmatchedRows,
		[]byte(masterCols), []byte(secondaryCols), []byte(header), string(c.Method), c.Threshold,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert comparison")
	}

	if _, err := db.CopyFrom(ctx, tx, "comparison_rows", rowColumns, copyRows); err != nil {
		return eris.Wrap(err, "postgres: copy rows")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit comparison")
}

func (s *PostgresStore) GetComparison(ctx context.Context, id string) (*model.Comparison, error) {
	var (
		c                               model.Comparison
		masterCols, secondaryCols, head []byte
	)
	err := s.pool.QueryRow(ctx, pgGetComparison, id).Scan(
		&c.ID, &c.MasterFile, &c.SecondaryFile, &c.TotalRows, &c.MatchedRows, &c.UnmatchedRows,
		&masterCols, &secondaryCols, &head, &c.Method, &c.Threshold, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get comparison %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get comparison %s", id)
	}
	if err := unmarshalColumns(&c, masterCols, secondaryCols, head); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal columns")
	}
	return &c, nil
}

func (s *PostgresStore) ListComparisons(ctx context.Context, filter ListFilter) ([]model.ComparisonSummary, error) {
	rows, err := s.pool.Query(ctx, pgListComparisons, listLimit(filter.Limit), max(filter.Offset, 0))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list comparisons")
	}
	defer rows.Close()

	out := []model.ComparisonSummary{}
	for rows.Next() {
		var sm model.ComparisonSummary
		if err := rows.Scan(&sm.ID, &sm.MasterFile, &sm.SecondaryFile, &sm.TotalRows, &sm.MatchedRows,
			&sm.UnmatchedRows, &sm.Method, &sm.Threshold, &sm.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan comparison")
		}
		out = append(out, sm)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list comparisons iterate")
}

func (s *PostgresStore) ListRows(ctx context.Context, id string, filter model.RowFilter) ([]model.RowResult, int, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, pgComparisonExists, id).Scan(&exists); err != nil {
		return nil, 0, eris.Wrapf(err, "postgres: lookup comparison %s", id)
	}
	if !exists {
		return nil, 0, eris.Wrapf(ErrNotFound, "postgres: comparison %s", id)
	}

	where := `comparison_id = $1`
	args := []any{id}
	argIdx := 2
	if matched, ok := statusMatched(filter.Status); ok {
		where += fmt.Sprintf(` AND matched = $%d`, argIdx)
		args = append(args, matched)
		argIdx++
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM comparison_rows WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrapf(err, "postgres: count rows %s", id)
	}

	query := `SELECT row_num, matched, master_row, similarity_score, per_column, data FROM comparison_rows WHERE ` +
		where + ` ORDER BY row_num`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
		args = append(args, filter.Limit, max(filter.Offset, 0))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "postgres: list rows %s", id)
	}
	defer rows.Close()

	out := []model.RowResult{}
	for rows.Next() {
		var (
			r               model.RowResult
			perColumn, data []byte
		)
		if err := rows.Scan(&r.Row, &r.Matched, &r.MasterRow, &r.Score, &perColumn, &data); err != nil {
			return nil, 0, eris.Wrap(err, "postgres: scan row")
		}
		if err := unmarshalRow(&r, perColumn, data); err != nil {
			return nil, 0, eris.Wrap(err, "postgres: unmarshal row")
		}
		out = append(out, r)
	}
	return out, total, eris.Wrap(rows.Err(), "postgres: list rows iterate")
}

func (s *PostgresStore) DeleteComparison(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, pgDeleteComparison, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete comparison %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: comparison %s", id)
	}
	return nil
}
