package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS traces (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	agent_name TEXT NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	latency_ms INTEGER,
	input_tokens INTEGER,
	output_tokens INTEGER,
	request_body TEXT NOT NULL,
	response_content TEXT,
	response_tool_calls TEXT,
	error TEXT
);
CREATE INDEX IF NOT EXISTS idx_traces_session ON traces(session_id, started_at);

CREATE TABLE IF NOT EXISTS tool_call_records (
	id TEXT PRIMARY KEY,
	trace_id TEXT NOT NULL REFERENCES traces(id),
	tool_name TEXT NOT NULL,
	arguments TEXT,
	result TEXT,
	duration_ms INTEGER,
	success INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tool_calls_trace ON tool_call_records(trace_id);
`

// writeJob is one unit of work handed to the background writer
// goroutine. done is closed after err is set, letting the submitting
// caller block until the write actually lands.
type writeJob struct {
	run  func(*sql.DB) error
	done chan error
}

// SQLiteStore is the embedded telemetry backend: an append-only table
// pair written by a single background goroutine so that concurrent
// event emission never contends for the database's write lock, while
// still letting a caller await durability before acking a TurnComplete.
type SQLiteStore struct {
	db     *sql.DB
	jobs   chan writeJob
	done   chan struct{}
	wg     sync.WaitGroup
	closer sync.Once
}

// Open creates or attaches to a SQLite database at dsn and starts its
// background writer.
func Open(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open telemetry store: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("open telemetry store: enable wal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("open telemetry store: migrate: %w", err)
	}

	store := &SQLiteStore{
		db:   db,
		jobs: make(chan writeJob, 64),
		done: make(chan struct{}),
	}
	store.wg.Add(1)
	go store.writeLoop()
	return store, nil
}

func (s *SQLiteStore) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case job := <-s.jobs:
			job.done <- job.run(s.db)
		case <-s.done:
			// Drain any writes queued before Close was called.
			for {
				select {
				case job := <-s.jobs:
					job.done <- job.run(s.db)
				default:
					return
				}
			}
		}
	}
}

// submit enqueues run on the writer goroutine and blocks until it
// completes, so the caller observes durability synchronously without
// every session goroutine contending directly for the database handle.
func (s *SQLiteStore) submit(ctx context.Context, run func(*sql.DB) error) error {
	job := writeJob{run: run, done: make(chan error, 1)}
	select {
	case s.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return fmt.Errorf("telemetry store is closed")
	}
	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Store = (*SQLiteStore)(nil)

func (s *SQLiteStore) SaveTrace(ctx context.Context, trace Trace) error {
	return s.submit(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO traces (id, session_id, agent_name, provider, model, started_at, latency_ms, input_tokens, output_tokens, request_body, response_content, response_tool_calls, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				latency_ms = excluded.latency_ms,
				input_tokens = excluded.input_tokens,
				output_tokens = excluded.output_tokens,
				response_content = excluded.response_content,
				response_tool_calls = excluded.response_tool_calls,
				error = excluded.error`,
			trace.ID, trace.SessionID, trace.AgentName, trace.Provider, trace.Model,
			trace.StartedAt.UnixMilli(), trace.LatencyMS, trace.InputTokens, trace.OutputTokens,
			trace.RequestBody, trace.ResponseContent, trace.ResponseToolCalls, nullableString(trace.Error))
		return err
	})
}

func (s *SQLiteStore) SaveToolCallRecord(ctx context.Context, record ToolCallRecord) error {
	return s.submit(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO tool_call_records (id, trace_id, tool_name, arguments, result, duration_ms, success)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			record.ID, record.TraceID, record.ToolName, record.Arguments, record.Result, record.DurationMS, record.Success)
		return err
	})
}

func (s *SQLiteStore) GetTrace(ctx context.Context, id string) (Trace, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, agent_name, provider, model, started_at, latency_ms, input_tokens, output_tokens, request_body, response_content, response_tool_calls, error
		FROM traces WHERE id = ?`, id)
	return scanTrace(row)
}

func (s *SQLiteStore) QueryTraces(ctx context.Context, query Query) ([]Trace, error) {
	sqlText := `SELECT id, session_id, agent_name, provider, model, started_at, latency_ms, input_tokens, output_tokens, request_body, response_content, response_tool_calls, error FROM traces WHERE 1=1`
	var args []any

	if query.IDPrefix != "" {
		sqlText += " AND id LIKE ?"
		args = append(args, query.IDPrefix+"%")
	}
	if query.SessionID != "" {
		sqlText += " AND session_id = ?"
		args = append(args, query.SessionID)
	}
	if !query.After.IsZero() {
		sqlText += " AND started_at >= ?"
		args = append(args, query.After.UnixMilli())
	}
	if !query.Before.IsZero() {
		sqlText += " AND started_at <= ?"
		args = append(args, query.Before.UnixMilli())
	}
	sqlText += " ORDER BY started_at ASC"
	if query.Limit > 0 {
		sqlText += fmt.Sprintf(" LIMIT %d", query.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trace
	for rows.Next() {
		trace, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, trace)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ToolCallsForTrace(ctx context.Context, traceID string) ([]ToolCallRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trace_id, tool_name, arguments, result, duration_ms, success
		FROM tool_call_records WHERE trace_id = ? ORDER BY rowid ASC`, traceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ToolCallRecord
	for rows.Next() {
		var r ToolCallRecord
		var success int
		if err := rows.Scan(&r.ID, &r.TraceID, &r.ToolName, &r.Arguments, &r.Result, &r.DurationMS, &success); err != nil {
			return nil, err
		}
		r.Success = success != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	var closeErr error
	s.closer.Do(func() {
		close(s.done)
		s.wg.Wait()
		closeErr = s.db.Close()
	})
	return closeErr
}

// rowScanner abstracts over *sql.Row and *sql.Rows for scanTrace.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrace(row rowScanner) (Trace, error) {
	var t Trace
	var startedAtMillis int64
	var latency, inputTokens, outputTokens sql.NullInt64
	var responseContent, responseToolCalls, errText sql.NullString

	err := row.Scan(&t.ID, &t.SessionID, &t.AgentName, &t.Provider, &t.Model, &startedAtMillis,
		&latency, &inputTokens, &outputTokens, &t.RequestBody, &responseContent, &responseToolCalls, &errText)
	if err != nil {
		return Trace{}, err
	}
	t.StartedAt = millisToTime(startedAtMillis)
	t.LatencyMS = latency.Int64
	t.InputTokens = int(inputTokens.Int64)
	t.OutputTokens = int(outputTokens.Int64)
	t.ResponseContent = responseContent.String
	t.ResponseToolCalls = responseToolCalls.String
	t.Error = errText.String
	return t, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
