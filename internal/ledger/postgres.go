package ledger

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/bholliman55/securewatch-n8n/internal/event"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sw_event_log (
	seq         BIGSERIAL PRIMARY KEY,
	id          UUID NOT NULL UNIQUE,
	trace_id    UUID NOT NULL,
	scan_id     TEXT,
	client_id   TEXT,
	source      TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	event_name  TEXT,
	status      TEXT NOT NULL DEFAULT 'info' CHECK (status IN ('info','ok','error')),
	req         JSONB,
	res         JSONB,
	err         JSONB,
	meta        JSONB,
	duration_ms BIGINT CHECK (duration_ms IS NULL OR duration_ms >= 0),
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sw_event_log_trace  ON sw_event_log(trace_id, created_at);
CREATE INDEX IF NOT EXISTS idx_sw_event_log_status ON sw_event_log(status, created_at);

CREATE TABLE IF NOT EXISTS sw_artifacts (
	seq          BIGSERIAL PRIMARY KEY,
	id           UUID NOT NULL UNIQUE,
	event_id     UUID NOT NULL,
	trace_id     UUID NOT NULL,
	content_type TEXT,
	size_bytes   BIGINT,
	inline       JSONB,
	external_url TEXT,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sw_artifacts_trace ON sw_artifacts(trace_id);
CREATE INDEX IF NOT EXISTS idx_sw_artifacts_event ON sw_artifacts(event_id);

CREATE OR REPLACE FUNCTION sw_append_only() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION '% is append-only', TG_TABLE_NAME;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS sw_event_log_immutable ON sw_event_log;
CREATE TRIGGER sw_event_log_immutable
	BEFORE UPDATE OR DELETE ON sw_event_log
	FOR EACH ROW EXECUTE FUNCTION sw_append_only();

DROP TRIGGER IF EXISTS sw_artifacts_immutable ON sw_artifacts;
CREATE TRIGGER sw_artifacts_immutable
	BEFORE UPDATE OR DELETE ON sw_artifacts
	FOR EACH ROW EXECUTE FUNCTION sw_append_only();
`

// PostgresStore is the production ledger backend, selected when a
// DATABASE_URL is configured. The append-only triggers hold even against a
// privileged caller issuing raw UPDATE/DELETE statements.
type PostgresStore struct {
	db *sql.DB

	mu        sync.Mutex
	lastWrite time.Time
}

// NewPostgresStore connects, tunes the pool, and runs migrations.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, storageErr("open", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, storageErr("ping", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, storageErr("migrate", err)
	}

	return &PostgresStore{db: db}, nil
}

// writeTime returns a ledger-assigned timestamp that never moves backwards.
// The caller must hold mu across the insert that stores it, otherwise a
// later timestamp can land at an earlier seq and created_at read in seq
// order would regress.
func (s *PostgresStore) writeTime() time.Time {
	t := time.Now().UTC()
	if t.Before(s.lastWrite) {
		t = s.lastWrite
	}
	s.lastWrite = t
	return t
}

func (s *PostgresStore) AppendEvent(ctx context.Context, ev *event.Event) (string, error) {
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

	// Appends serialize through this lock so seq order and created_at order
	// cannot cross. Reads still use the full pool.
	s.mu.Lock()
	defer s.mu.Unlock()
	createdAt := s.writeTime()

	var seq int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO sw_event_log
			(id, trace_id, scan_id, client_id, source, event_type, event_name,
			 status, req, res, err, meta, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING seq`,
		id, ev.TraceID, nullStr(ev.ScanID), nullStr(ev.ClientID), ev.Source,
		ev.EventType, nullStr(ev.EventName), ev.Status, req, res, errDetail,
		meta, nullInt(ev.DurationMS), createdAt).Scan(&seq)
	if err != nil {
		return "", storageErr("insert event", err)
	}

	ev.ID = id
	ev.Seq = seq
	ev.CreatedAt = createdAt
	return id, nil
}

func (s *PostgresStore) AppendArtifact(ctx context.Context, a *event.Artifact) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	createdAt := s.writeTime()

	var inline any
	if len(a.Inline) > 0 {
		inline = string(a.Inline)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sw_artifacts
			(id, event_id, trace_id, content_type, size_bytes, inline, external_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, a.EventID, a.TraceID, nullStr(a.ContentType), a.SizeBytes,
		inline, nullStr(a.ExternalURL), createdAt)
	if err != nil {
		return "", storageErr("insert artifact", err)
	}

	a.ID = id
	a.CreatedAt = createdAt
	return id, nil
}

const pgEventCols = `seq, id, trace_id, scan_id, client_id, source, event_type,
	event_name, status, req, res, err, meta, duration_ms, created_at`

func (s *PostgresStore) Timeline(ctx context.Context, traceID string) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pgEventCols+`
		FROM sw_event_log
		WHERE trace_id = $1
		ORDER BY created_at ASC, seq ASC`,
		event.NormalizeTraceID(traceID))
	if err != nil {
		return nil, storageErr("query timeline", err)
	}
	defer rows.Close()
	return scanPostgresEvents(rows)
}

func (s *PostgresStore) RecentErrors(ctx context.Context, window time.Duration) ([]event.Event, error) {
	cutoff := time.Now().UTC().Add(-ClampWindow(window))
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pgEventCols+`
		FROM sw_event_log
		WHERE status = 'error' AND created_at >= $1
		ORDER BY created_at DESC, seq DESC`,
		cutoff)
	if err != nil {
		return nil, storageErr("query errors", err)
	}
	defer rows.Close()
	return scanPostgresEvents(rows)
}

func (s *PostgresStore) ArtifactsByTrace(ctx context.Context, traceID string) ([]event.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, trace_id, content_type, size_bytes, inline, external_url, created_at
		FROM sw_artifacts
		WHERE trace_id = $1
		ORDER BY seq ASC`,
		event.NormalizeTraceID(traceID))
	if err != nil {
		return nil, storageErr("query artifacts", err)
	}
	defer rows.Close()

	var out []event.Artifact
	for rows.Next() {
		var a event.Artifact
		var contentType, externalURL sql.NullString
		var size sql.NullInt64
		var inline []byte
		if err := rows.Scan(&a.ID, &a.EventID, &a.TraceID, &contentType, &size,
			&inline, &externalURL, &a.CreatedAt); err != nil {
			return nil, storageErr("scan artifact", err)
		}
		a.ContentType = contentType.String
		a.SizeBytes = size.Int64
		a.ExternalURL = externalURL.String
		if len(inline) > 0 {
			a.Inline = append([]byte(nil), inline...)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("scan artifacts", err)
	}
	return out, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func scanPostgresEvents(rows *sql.Rows) ([]event.Event, error) {
	var out []event.Event
	for rows.Next() {
		var ev event.Event
		var scanID, clientID, eventName sql.NullString
		var req, res, errDetail, meta []byte
		var duration sql.NullInt64

		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.TraceID, &scanID, &clientID,
			&ev.Source, &ev.EventType, &eventName, &ev.Status,
			&req, &res, &errDetail, &meta, &duration, &ev.CreatedAt); err != nil {
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

		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("scan events", err)
	}
	return out, nil
}
