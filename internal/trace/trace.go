// Package trace journals bridge invocations and published events to SQLite.
package trace

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"

	// Pure-Go SQLite driver for database/sql.
	_ "github.com/glebarez/sqlite"

	"github.com/cryguy/rtcbridge/internal/core"
	"github.com/cryguy/rtcbridge/internal/invoker"
	"github.com/cryguy/rtcbridge/internal/promise"
)

var log = logging.Logger("rtcbridge/trace")

const maxPayloadSize = 16 * 1024 * 1024

// writeQueueSize bounds the writes waiting for the journal goroutine.
const writeQueueSize = 1024

const schema = `
CREATE TABLE IF NOT EXISTS invocations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session     TEXT NOT NULL,
	subsystem   TEXT NOT NULL,
	method      TEXT NOT NULL,
	args        BLOB,
	outcome     TEXT NOT NULL,
	code        TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	finished_at INTEGER
);
CREATE INDEX IF NOT EXISTS invocations_session ON invocations(session);
CREATE TABLE IF NOT EXISTS events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session      TEXT NOT NULL,
	subsystem    TEXT NOT NULL,
	name         TEXT NOT NULL,
	payload      BLOB,
	published_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS events_session ON events(session);
`

// Invocation outcomes.
const (
	OutcomePending = "pending"
	OutcomeOK      = "ok"
	OutcomeError   = "error"
)

// Invocation is one journaled native call.
type Invocation struct {
	ID         int64
	Session    string
	Subsystem  string
	Method     string
	Args       json.RawMessage
	Outcome    string
	Code       string
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time // zero while pending
}

// EventEntry is one journaled event delivery.
type EventEntry struct {
	ID          int64
	Session     string
	Subsystem   string
	Name        string
	Payload     json.RawMessage
	PublishedAt time.Time
}

// Journal records invocations and events of one bridge session. It
// satisfies the bridge's Recorder interface. Recording queues the write for
// the journal goroutine and blocks only while the queue is full.
type Journal struct {
	db      *sql.DB
	session string

	mu     sync.Mutex
	closed bool
	writes chan func(*sql.DB)
	done   chan struct{}
}

// Open opens (or creates) the journal database at dsn and starts a new
// session. ":memory:" gives a private in-memory journal.
func Open(dsn string) (*Journal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening trace database %q: %w", dsn, err)
	}
	// In-memory databases are per connection.
	db.SetMaxOpenConns(1)
	_, _ = db.Exec("PRAGMA journal_mode=WAL")
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating trace schema: %w", err)
	}
	j := &Journal{
		db:      db,
		session: uuid.NewString(),
		writes:  make(chan func(*sql.DB), writeQueueSize),
		done:    make(chan struct{}),
	}
	go j.writeLoop()
	log.Debugf("trace: session %s at %s", j.session, dsn)
	return j, nil
}

// Session returns the id of the session this journal writes.
func (j *Journal) Session() string {
	return j.session
}

// Close writes what is still queued and closes the underlying database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.writes)
	}
	j.mu.Unlock()
	<-j.done
	return j.db.Close()
}

// Flush waits until every write queued so far has run.
func (j *Journal) Flush() {
	done := make(chan struct{})
	if j.enqueue(func(*sql.DB) { close(done) }) {
		<-done
	}
}

func (j *Journal) writeLoop() {
	defer close(j.done)
	for w := range j.writes {
		w(j.db)
	}
}

func (j *Journal) enqueue(w func(*sql.DB)) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return false
	}
	j.writes <- w
	return true
}

// Invoked records c as pending and completes the row when f settles.
func (j *Journal) Invoked(c invoker.Call, f *promise.Future[any]) {
	args := compressJSON(c.Args)
	var id int64 // journal goroutine only
	queued := j.enqueue(func(db *sql.DB) {
		res, err := db.Exec(
			`INSERT INTO invocations (session, subsystem, method, args, outcome, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
			j.session, string(c.Subsystem), c.Method, args, OutcomePending, c.Started.UnixNano())
		if err == nil {
			id, err = res.LastInsertId()
		}
		if err != nil {
			log.Warnf("trace: recording %s.%s: %v", c.Subsystem, c.Method, err)
		}
	})
	if !queued {
		return
	}
	f.Then(func(_ any, err error) {
		finished := time.Now().UnixNano()
		outcome, code, message := OutcomeOK, "", ""
		if err != nil {
			outcome = OutcomeError
			var be *core.Error
			if errors.As(err, &be) {
				code, message = be.Code, be.Message
			} else {
				message = err.Error()
			}
		}
		j.enqueue(func(db *sql.DB) {
			if id == 0 {
				return
			}
			_, uerr := db.Exec(
				`UPDATE invocations SET outcome = ?, code = ?, message = ?, finished_at = ? WHERE id = ?`,
				outcome, code, message, finished, id)
			if uerr != nil {
				log.Warnf("trace: completing invocation %d: %v", id, uerr)
			}
		})
	})
}

// Event records one published event.
func (j *Journal) Event(s core.Subsystem, name string, payload any) {
	data := compressJSON(payload)
	published := time.Now().UnixNano()
	j.enqueue(func(db *sql.DB) {
		_, err := db.Exec(
			`INSERT INTO events (session, subsystem, name, payload, published_at) VALUES (?, ?, ?, ?, ?)`,
			j.session, string(s), name, data, published)
		if err != nil {
			log.Warnf("trace: recording event %s: %v", name, err)
		}
	})
}

// Sessions lists the recorded session ids, oldest first.
func (j *Journal) Sessions() ([]string, error) {
	j.Flush()
	rows, err := j.db.Query(`SELECT session FROM (
		SELECT session, MIN(started_at) AS t FROM invocations GROUP BY session
		UNION ALL
		SELECT session, MIN(published_at) AS t FROM events GROUP BY session
	) GROUP BY session ORDER BY MIN(t)`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Invocations returns the invocations of session in call order. An empty
// session returns every session's invocations.
func (j *Journal) Invocations(session string) ([]Invocation, error) {
	j.Flush()
	q := `SELECT id, session, subsystem, method, args, outcome, code, message, started_at, finished_at FROM invocations`
	var args []any
	if session != "" {
		q += ` WHERE session = ?`
		args = append(args, session)
	}
	rows, err := j.db.Query(q+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("reading invocations: %w", err)
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		var (
			inv      Invocation
			blob     []byte
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&inv.ID, &inv.Session, &inv.Subsystem, &inv.Method, &blob,
			&inv.Outcome, &inv.Code, &inv.Message, &started, &finished); err != nil {
			return nil, err
		}
		if inv.Args, err = decompressJSON(blob); err != nil {
			return nil, fmt.Errorf("invocation %d: %w", inv.ID, err)
		}
		inv.StartedAt = time.Unix(0, started)
		if finished.Valid {
			inv.FinishedAt = time.Unix(0, finished.Int64)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// Events returns the events of session in delivery order. An empty session
// returns every session's events.
func (j *Journal) Events(session string) ([]EventEntry, error) {
	j.Flush()
	q := `SELECT id, session, subsystem, name, payload, published_at FROM events`
	var args []any
	if session != "" {
		q += ` WHERE session = ?`
		args = append(args, session)
	}
	rows, err := j.db.Query(q+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	defer rows.Close()

	var out []EventEntry
	for rows.Next() {
		var (
			ev        EventEntry
			blob      []byte
			published int64
		)
		if err := rows.Scan(&ev.ID, &ev.Session, &ev.Subsystem, &ev.Name, &blob, &published); err != nil {
			return nil, err
		}
		if ev.Payload, err = decompressJSON(blob); err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.ID, err)
		}
		ev.PublishedAt = time.Unix(0, published)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// compressJSON encodes v as brotli-compressed JSON. Values that do not
// encode are stored as their printed form.
func compressJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprintf("%v", v))
	}
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, _ = w.Write(data)
	if err := w.Close(); err != nil {
		log.Warnf("trace: compressing payload: %v", err)
		return nil
	}
	return buf.Bytes()
}

func decompressJSON(blob []byte) (json.RawMessage, error) {
	if len(blob) == 0 {
		return json.RawMessage("null"), nil
	}
	r := brotli.NewReader(bytes.NewReader(blob))
	data, err := io.ReadAll(io.LimitReader(r, maxPayloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if len(data) > maxPayloadSize {
		return nil, fmt.Errorf("decompress: payload exceeds maximum allowed size")
	}
	return json.RawMessage(data), nil
}
