package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/recordmatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS comparisons (
	id                   TEXT PRIMARY KEY,
	master_file          TEXT NOT NULL,
	secondary_file       TEXT NOT NULL,
	total_rows           INTEGER NOT NULL,
	matched_rows         INTEGER NOT NULL,
	unmatched_rows       INTEGER NOT NULL,
	master_columns       TEXT NOT NULL,
	secondary_columns    TEXT NOT NULL,
	secondary_header     TEXT NOT NULL,
	comparison_method    TEXT NOT NULL DEFAULT 'exact',
	similarity_threshold REAL,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS comparison_rows (
	comparison_id    TEXT NOT NULL REFERENCES comparisons(id),
	row_num          INTEGER NOT NULL,
	matched          INTEGER NOT NULL,
	master_row       INTEGER NOT NULL DEFAULT 0,
	similarity_score REAL,
	per_column       TEXT,
	data             TEXT NOT NULL,
	PRIMARY KEY (comparison_id, row_num)
);

CREATE INDEX IF NOT EXISTS idx_comparisons_created_at ON comparisons(created_at);
CREATE INDEX IF NOT EXISTS idx_comparison_rows_matched ON comparison_rows(comparison_id, matched);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveComparison(ctx context.Context, c *model.Comparison, rows []model.RowResult) error {
	prepare(c)

	masterCols, secondaryCols, header, err := marshalColumns(c)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal columns")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO comparisons (id, master_file, secondary_file, total_rows, matched_rows, unmatched_rows,
			master_columns, secondary_columns, secondary_header, comparison_method, similarity_threshold,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.MasterFile, c.SecondaryFile, c.TotalRows, c.MatchedRows, c.UnmatchedRows,
		masterCols, secondaryCols, header, string(c.Method), nullFloat(c.Threshold),
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert comparison")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO comparison_rows (comparison_id, row_num, matched, master_row, similarity_score, per_column, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare row insert")
	}
	defer stmt.Close()

	for _, r := range rows {
		perColumn, data, err := marshalRow(r)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal row %d", r.Row)
		}
		var pc sql.NullString
		if perColumn != nil {
			pc = sql.NullString{String: string(perColumn), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, c.ID, r.Row, r.Matched, r.MasterRow, nullFloat(r.Score), pc, string(data)); err != nil {
			return eris.Wrapf(err, "sqlite: insert row %d", r.Row)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit comparison")
}

const sqliteComparisonColumns = `id, master_file, secondary_file, total_rows, matched_rows, unmatched_rows,
	master_columns, secondary_columns, secondary_header, comparison_method, similarity_threshold,
	created_at, updated_at`

func (s *SQLiteStore) GetComparison(ctx context.Context, id string) (*model.Comparison, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteComparisonColumns+` FROM comparisons WHERE id = ?`, id)

	var (
		c                               model.Comparison
		masterCols, secondaryCols, head string
		threshold                       sql.NullFloat64
	)
	err := row.Scan(&c.ID, &c.MasterFile, &c.SecondaryFile, &c.TotalRows, &c.MatchedRows, &c.UnmatchedRows,
		&masterCols, &secondaryCols, &head, &c.Method, &threshold, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get comparison %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get comparison %s", id)
	}
	if err := unmarshalColumns(&c, []byte(masterCols), []byte(secondaryCols), []byte(head)); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal columns")
	}
	if threshold.Valid {
		c.Threshold = &threshold.Float64
	}
	return &c, nil
}

func (s *SQLiteStore) ListComparisons(ctx context.Context, filter ListFilter) ([]model.ComparisonSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, master_file, secondary_file, total_rows, matched_rows, unmatched_rows,
			comparison_method, similarity_threshold, created_at
		 FROM comparisons ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		listLimit(filter.Limit), max(filter.Offset, 0))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list comparisons")
	}
	defer rows.Close()

	out := []model.ComparisonSummary{}
	for rows.Next() {
		var (
			sm        model.ComparisonSummary
			threshold sql.NullFloat64
		)
		if err := rows.Scan(&sm.ID, &sm.MasterFile, &sm.SecondaryFile, &sm.TotalRows, &sm.MatchedRows,
			&sm.UnmatchedRows, &sm.Method, &threshold, &sm.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan comparison")
		}
		if threshold.Valid {
			v := threshold.Float64
			sm.Threshold = &v
		}
		out = append(out, sm)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list comparisons iterate")
}

func (s *SQLiteStore) ListRows(ctx context.Context, id string, filter model.RowFilter) ([]model.RowResult, int, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, 0, err
	}

	where := `comparison_id = ?`
	args := []any{id}
	if matched, ok := statusMatched(filter.Status); ok {
		where += ` AND matched = ?`
		args = append(args, matched)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comparison_rows WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrapf(err, "sqlite: count rows %s", id)
	}

	query := `SELECT row_num, matched, master_row, similarity_score, per_column, data
		FROM comparison_rows WHERE ` + where + ` ORDER BY row_num`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, max(filter.Offset, 0))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "sqlite: list rows %s", id)
	}
	defer rows.Close()

	out := []model.RowResult{}
	for rows.Next() {
		var (
			r         model.RowResult
			score     sql.NullFloat64
			perColumn sql.NullString
			data      string
		)
		if err := rows.Scan(&r.Row, &r.Matched, &r.MasterRow, &score, &perColumn, &data); err != nil {
			return nil, 0, eris.Wrap(err, "sqlite: scan row")
		}
		if score.Valid {
			v := score.Float64
			r.Score = &v
		}
		var pc []byte
		if perColumn.Valid {
			pc = []byte(perColumn.String)
		}
		if err := unmarshalRow(&r, pc, []byte(data)); err != nil {
			return nil, 0, eris.Wrap(err, "sqlite: unmarshal row")
		}
		out = append(out, r)
	}
	return out, total, eris.Wrap(rows.Err(), "sqlite: list rows iterate")
}

func (s *SQLiteStore) DeleteComparison(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM comparison_rows WHERE comparison_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete rows %s", id)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM comparisons WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete comparison %s", id)
	}
	if err := checkRowsAffected(res, id); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete")
}

func (s *SQLiteStore) exists(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM comparisons WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "sqlite: comparison %s", id)
	}
	return eris.Wrapf(err, "sqlite: lookup comparison %s", id)
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "comparison %s", id)
	}
	return nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func marshalColumns(c *model.Comparison) (master, secondary, header string, err error) {
	var b []byte
	if b, err = json.Marshal(nonNil(c.MasterColumns)); err != nil {
		return
	}
	master = string(b)
	if b, err = json.Marshal(nonNil(c.SecondaryColumns)); err != nil {
		return
	}
	secondary = string(b)
	if b, err = json.Marshal(nonNil(c.SecondaryHeader)); err != nil {
		return
	}
	header = string(b)
	return
}

func unmarshalColumns(c *model.Comparison, master, secondary, header []byte) error {
	if err := json.Unmarshal(master, &c.MasterColumns); err != nil {
		return err
	}
	if err := json.Unmarshal(secondary, &c.SecondaryColumns); err != nil {
		return err
	}
	return json.Unmarshal(header, &c.SecondaryHeader)
}

// marshalRow encodes the JSON columns of a row. perColumn is nil when the
// row has no per-column scores.
func marshalRow(r model.RowResult) (perColumn, data []byte, err error) {
	if len(r.PerColumn) > 0 {
		if perColumn, err = json.Marshal(r.PerColumn); err != nil {
			return nil, nil, err
		}
	}
	data, err = json.Marshal(nonNil(r.Data))
	return perColumn, data, err
}

func unmarshalRow(r *model.RowResult, perColumn, data []byte) error {
	if len(perColumn) > 0 {
		if err := json.Unmarshal(perColumn, &r.PerColumn); err != nil {
			return err
		}
	}
	return json.Unmarshal(data, &r.Data)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
