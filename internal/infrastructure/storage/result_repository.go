package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
	"github.com/jbctechsolutions/webdistill/internal/domain/page"
)

// timeLayout keeps sub-second precision and sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const recordColumns = `id, run_id, url, format, strategy, chunk_count, content_length,
	content_tokens, instruction_tokens, answer_tokens, prompt_tokens, completion_tokens,
	total_tokens, cost_usd, model, limit_exceeded, answer, raw_content, adapted_content, created_at`

// ResultRepository implements ports.ResultStoragePort using SQLite.
type ResultRepository struct {
	conn *Connection
	db   *sql.DB
}

var _ ports.ResultStoragePort = (*ResultRepository)(nil)

// OpenResultRepository opens (or creates) the database at path.
func OpenResultRepository(path string) (*ResultRepository, error) {
	conn, err := NewConnection(path)
	if err != nil {
		return nil, err
	}
	if err := conn.Open(); err != nil {
		return nil, errors.WithContext(errors.NewError(errors.CodeConfiguration, "failed to open result database", err), "path", conn.Path())
	}
	db, _ := conn.DB()
	return &ResultRepository{conn: conn, db: db}, nil
}

// Save persists a record.
func (r *ResultRepository) Save(ctx context.Context, rec *page.Record) error {
	if rec == nil {
		return fmt.Errorf("record is nil")
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.RunID,
		rec.URL,
		string(rec.Format),
		string(rec.Strategy),
		rec.ChunkCount,
		rec.ContentLength,
		rec.ContentTokens,
		rec.InstructionTokens,
		rec.AnswerTokens,
		rec.Usage.PromptTokens,
		rec.Usage.CompletionTokens,
		rec.TotalTokens,
		rec.CostUSD,
		rec.Model,
		rec.LimitExceeded,
		rec.Answer,
		rec.RawContent,
		rec.AdaptedContent,
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Get returns a single record by id. A missing id is NOT_FOUND.
func (r *ResultRepository) Get(ctx context.Context, id string) (*page.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, errors.WithContext(errors.NewError(errors.CodeNotFound, "record not found", nil), "id", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// List returns records matching the filter, most recent first.
func (r *ResultRepository) List(ctx context.Context, filter ports.ResultFilter) ([]page.Record, error) {
	where, args := buildWhere(filter)
	query := `SELECT ` + recordColumns + ` FROM records` + where + ` ORDER BY created_at DESC, id`

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []page.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return out, nil
}

// Summary aggregates records matching the filter, per model.
// Limit and Offset are ignored.
func (r *ResultRepository) Summary(ctx context.Context, filter ports.ResultFilter) (*ports.ResultSummary, error) {
	where, args := buildWhere(filter)
	query := `SELECT model, COUNT(*), COALESCE(SUM(total_tokens), 0), COALESCE(SUM(cost_usd), 0),
		COALESCE(SUM(CASE WHEN limit_exceeded THEN 1 ELSE 0 END), 0)
		FROM records` + where + ` GROUP BY model ORDER BY model`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize records: %w", err)
	}
	defer rows.Close()

	summary := &ports.ResultSummary{}
	for rows.Next() {
		var m ports.ModelSummary
		if err := rows.Scan(&m.Model, &m.Pages, &m.TotalTokens, &m.CostUSD, &m.LimitExceeded); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		summary.Pages += m.Pages
		summary.TotalTokens += m.TotalTokens
		summary.CostUSD += m.CostUSD
		summary.ByModel = append(summary.ByModel, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary: %w", err)
	}
	return summary, nil
}

// Close closes the database.
func (r *ResultRepository) Close() error {
	return r.conn.Close()
}

func buildWhere(filter ports.ResultFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.RunID != "" {
		clauses = append(clauses, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.Model != "" {
		clauses = append(clauses, "model = ?")
		args = append(args, filter.Model)
	}
	if filter.URL != "" {
		clauses = append(clauses, "url LIKE ?")
		args = append(args, "%"+filter.URL+"%")
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*page.Record, error) {
	var rec page.Record
	var format, strategy, createdAt string
	var prompt, completion int

	err := s.Scan(
		&rec.ID,
		&rec.RunID,
		&rec.URL,
		&format,
		&strategy,
		&rec.ChunkCount,
		&rec.ContentLength,
		&rec.ContentTokens,
		&rec.InstructionTokens,
		&rec.AnswerTokens,
		&prompt,
		&completion,
		&rec.TotalTokens,
		&rec.CostUSD,
		&rec.Model,
		&rec.LimitExceeded,
		&rec.Answer,
		&rec.RawContent,
		&rec.AdaptedContent,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Format = page.Format(format)
	rec.Strategy = page.Strategy(strategy)
	rec.Usage = page.NewUsage(prompt, completion)
	rec.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &rec, nil
}
