package ledger

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/bholliman55/securewatch-n8n/internal/event"
)

// tsFormat is a fixed-width UTC timestamp layout so stored text compares
// lexically in timestamp order.
const tsFormat = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sw_event_log (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	trace_id    TEXT NOT NULL,
	scan_id     TEXT,
	client_id   TEXT,
	source      TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	event_name  TEXT,
	status      TEXT NOT NULL DEFAULT 'info' CHECK (status IN ('info','ok','error')),
	req         TEXT,
	res         TEXT,
	err         TEXT,
	meta        TEXT,
	duration_ms INTEGER CHECK (duration_ms IS NULL OR duration_ms >= 0),
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sw_event_log_trace  ON sw_event_log(trace_id, created_at);
CREATE INDEX IF NOT EXISTS idx_sw_event_log_status ON sw_event_log(status, created_at);

CREATE TABLE IF NOT EXISTS sw_artifacts (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT NOT NULL UNIQUE,
	event_id     TEXT NOT NULL,
	trace_id     TEXT NOT NULL,
	content_type TEXT,
	size_bytes   INTEGER,
	inline       BLOB,
	external_url TEXT,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sw_artifacts_trace ON sw_artifacts(trace_id);
CREATE INDEX IF NOT EXISTS idx_sw_artifacts_event ON sw_artifacts(event_id);

CREATE TRIGGER IF NOT EXISTS sw_event_log_no_update BEFORE UPDATE ON sw_event_log
BEGIN SELECT RAISE(ABORT, 'sw_event_log is append-only'); END;
CREATE TRIGGER IF NOT EXISTS sw_event_log_no_delete BEFORE DELETE ON sw_event_log
BEGIN SELECT RAISE(ABORT, 'sw_event_log is append-only'); END;
CREATE TRIGGER IF NOT EXISTS sw_artifacts_no_update BEFORE UPDATE ON sw_artifacts
BEGIN SELECT RAISE(ABORT, 'sw_artifacts is append-only'); END;
CREATE TRIGGER IF NOT EXISTS sw_artifacts_no_delete BEFORE DELETE ON sw_artifacts
BEGIN SELECT RAISE(ABORT, 'sw_artifacts is append-only'); END;
`

// SQLiteStore is the default single-node ledger backend.
type SQLiteStore struct {
	db *sql.DB

	mu        sync.Mutex
	lastWrite time.Time
	now       func() time.Time
}

// NewSQLiteStore opens (or creates) a ledger at path. ":memory:" gives an
// ephemeral store for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storageErr("open", err)
	}
	// Single writer connection: sqlite serializes writes anyway, and a pool
	// of connections would split an in-memory database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, storageErr("migrate", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// writeTime returns a ledger-assigned timestamp that never moves backwards.
// The caller must hold mu across the insert that stores it: releasing it
// earlier would let a later timestamp land at an earlier seq, and created_at
// read in seq order must be non-decreasing even under concurrent appends.
func (s *SQLiteStore) writeTime() time.Time {
	t := s.now().UTC()
	if t.Before(s.lastWrite) {
		t = s.lastWrite
	}
	s.lastWrite = t
	return t
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, ev *event.Event) (string, error) {
	req, err := marshalMap(ev.Req)
	if err != nil {
		return "", storageErr("encode req", err)
	}
	res, err := marshalMap(ev.Res)
	if err != nil {
		return "", storageErr("encode res", err)
	}
	errDetail, err := marshalErr(ev.Err)
	if err != nil {
		return "", storageErr("encode err", err)
	}
	meta, err := marshalMap(ev.Meta)
	if err != nil {
		return "", storageErr("encode meta", err)
	}

	id := uuid.NewString()

	// Timestamp and insert stay in one critical section so seq order and
	// created_at order cannot cross. The pool is a single connection, so
	// this serializes nothing sqlite would not serialize anyway.
	s.mu.Lock()
	defer s.mu.Unlock()
	createdAt := s.writeTime()

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO sw_event_log
			(id, trace_id, scan_id, client_id, source, event_type, event_name,
			 status, req, res, err, meta, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, ev.TraceID, nullStr(ev.ScanID), nullStr(ev.ClientID), ev.Source,
		ev.EventType, nullStr(ev.EventName), ev.Status, req, res, errDetail,
		meta, nullInt(ev.DurationMS), createdAt.Format(tsFormat))
	if err != nil {
		return "", storageErr("insert event", err)
	}

	ev.ID = id
	ev.CreatedAt = createdAt
	if seq, err := result.LastInsertId(); err == nil {
		ev.Seq = seq
	}
	return id, nil
}

func (s *SQLiteStore) AppendArtifact(ctx context.Context, a *event.Artifact) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	createdAt := s.writeTime()

	var inline any
	if len(a.Inline) > 0 {
		inline = []byte(a.Inline)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sw_artifacts
			(id, event_id, trace_id, content_type, size_bytes, inline, external_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, a.EventID, a.TraceID, nullStr(a.ContentType), a.SizeBytes,
		inline, nullStr(a.ExternalURL), createdAt.Format(tsFormat))
	if err != nil {
		return "", storageErr("insert artifact", err)
	}

	a.ID = id
	a.CreatedAt = createdAt
	return id, nil
}

const sqliteEventCols = `seq, id, trace_id, scan_id, client_id, source, event_type,
	event_name, status, req, res, err, meta, duration_ms, created_at`

func (s *SQLiteStore) Timeline(ctx context.Context, traceID string) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteEventCols+`
		FROM sw_event_log
		WHERE trace_id = ?
		ORDER BY created_at ASC, seq ASC`,
		event.NormalizeTraceID(traceID))
	if err != nil {
		return nil, storageErr("query timeline", err)
	}
	defer rows.Close()
	return scanSQLiteEvents(rows)
}

func (s *SQLiteStore) RecentErrors(ctx context.Context, window time.Duration) ([]event.Event, error) {
	cutoff := s.now().UTC().Add(-ClampWindow(window))
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteEventCols+`
		FROM sw_event_log
		WHERE status = 'error' AND created_at >= ?
		ORDER BY created_at DESC, seq DESC`,
		cutoff.Format(tsFormat))
	if err != nil {
		return nil, storageErr("query errors", err)
	}
	defer rows.Close()
	return scanSQLiteEvents(rows)
}

func (s *SQLiteStore) ArtifactsByTrace(ctx context.Context, traceID string) ([]event.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, trace_id, content_type, size_bytes, inline, external_url, created_at
		FROM sw_artifacts
		WHERE trace_id = ?
		ORDER BY seq ASC`,
		event.NormalizeTraceID(traceID))
	if err != nil {
		return nil, storageErr("query artifacts", err)
	}
	defer rows.Close()

	var out []event.Artifact
	for rows.Next() {
		var a event.Artifact
		var contentType, externalURL, createdAt sql.NullString
		var size sql.NullInt64
		var inline []byte
		if err := rows.Scan(&a.ID, &a.EventID, &a.TraceID, &contentType, &size,
			&inline, &externalURL, &createdAt); err != nil {
			return nil, storageErr("scan artifact", err)
		}
		a.ContentType = contentType.String
		a.SizeBytes = size.Int64
		a.ExternalURL = externalURL.String
		if len(inline) > 0 {
			a.Inline = append([]byte(nil), inline...)
		}
		if t, err := time.Parse(tsFormat, createdAt.String); err == nil {
			a.CreatedAt = t
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("scan artifacts", err)
	}
	return out, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func scanSQLiteEvents(rows *sql.Rows) ([]event.Event, error) {
	var out []event.Event
	for rows.Next() {
		var ev event.Event
		var scanID, clientID, eventName, createdAt sql.NullString
		var req, res, errDetail, meta []byte
		var duration sql.NullInt64

		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.TraceID, &scanID, &clientID,
			&ev.Source, &ev.EventType, &eventName, &ev.Status,
			&req, &res, &errDetail, &meta, &duration, &createdAt); err != nil {
			return nil, storageErr("scan event", err)
		}

		ev.ScanID = scanID.String
		ev.ClientID = clientID.String
		ev.EventName = eventName.String
		if duration.Valid {
			d := duration.Int64
			ev.DurationMS = &d
		}
		if err := unmarshalMap(req, &ev.Req); err != nil {
			return nil, storageErr("decode req", err)
		}
		if err := unmarshalMap(res, &ev.Res); err != nil {
			return nil, storageErr("decode res", err)
		}
		if err := unmarshalErr(errDetail, &ev.Err); err != nil {
			return nil, storageErr("decode err", err)
		}
		if err := unmarshalMap(meta, &ev.Meta); err != nil {
			return nil, storageErr("decode meta", err)
		}
		if t, err := time.Parse(tsFormat, createdAt.String); err == nil {
			ev.CreatedAt = t
		}

		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("scan events", err)
	}
	return out, nil
}
