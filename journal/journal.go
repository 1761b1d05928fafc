// Package journal records the mutation batches sent to each session in a
// SQLite database so a session can be replayed into any backend later.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/livefir/livetree"
	"github.com/livefir/livetree/wire"
	"github.com/pressly/goose/v3"
	"github.com/tliron/commonlog"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("livetree.journal")

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// Journal is a batch store. It is safe for concurrent use.
type Journal struct {
	db *sql.DB
}

// Session summarizes the batches recorded for one session.
type Session struct {
	ID      string
	Batches int
	Edits   int
	First   time.Time
	Last    time.Time
}

// Open opens or creates the journal at path and migrates it. ":memory:"
// gives a private in-memory journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// one connection: a second one would see a different :memory: database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to ping journal: %w", err), db.Close())
	}
	if err := migrate(db); err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	log.Debugf("journal opened at %s", path)
	return &Journal{db: db}, nil
}

func migrate(db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores one batch. Sequence numbers must be unique per session.
func (j *Journal) Record(ctx context.Context, session string, seq uint64, ms *livetree.Mutations) error {
	body, err := wire.EncodeBatch(ms)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO batches (session, seq, edits, body, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		session, int64(seq), ms.Len(), body, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("record batch %d of %s: %w", seq, session, err)
	}
	return nil
}

// Recorder returns a sink that records every mutation it receives as part
// of batches for session. Call Flush after each pass.
func (j *Journal) Recorder(session string) *Recorder {
	return &Recorder{journal: j, session: session}
}

// Sessions lists the recorded sessions, oldest first.
func (j *Journal) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT session, COUNT(*), SUM(edits), MIN(recorded_at), MAX(recorded_at)
FROM batches GROUP BY session ORDER BY MIN(recorded_at), session`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var first, last string
		if err := rows.Scan(&s.ID, &s.Batches, &s.Edits, &first, &last); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if s.First, err = parseTime(first); err != nil {
			return nil, fmt.Errorf("session %s: %w", s.ID, err)
		}
		if s.Last, err = parseTime(last); err != nil {
			return nil, fmt.Errorf("session %s: %w", s.ID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Replay pushes every batch of session into to, in sequence order, and
// returns how many batches were replayed. A gap in the sequence is an error.
func (j *Journal) Replay(ctx context.Context, session string, to livetree.Sink) (int, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, body FROM batches WHERE session = ? ORDER BY seq`, session)
	if err != nil {
		return 0, fmt.Errorf("replay %s: %w", session, err)
	}
	defer rows.Close()

	n := 0
	var prev int64
	for rows.Next() {
		var seq int64
		var body []byte
		if err := rows.Scan(&seq, &body); err != nil {
			return n, fmt.Errorf("scan batch: %w", err)
		}
		if n > 0 && seq != prev+1 {
			return n, fmt.Errorf("replay %s: batch %d follows %d", session, seq, prev)
		}
		ms, err := wire.DecodeBatch(body)
		if err != nil {
			return n, fmt.Errorf("batch %d: %w", seq, err)
		}
		ms.Apply(to)
		prev = seq
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}
	if n == 0 {
		return 0, fmt.Errorf("replay %s: no batches recorded", session)
	}
	return n, nil
}

// Delete removes every batch of session.
func (j *Journal) Delete(ctx context.Context, session string) error {
	if _, err := j.db.ExecContext(ctx, `DELETE FROM batches WHERE session = ?`, session); err != nil {
		return fmt.Errorf("delete %s: %w", session, err)
	}
	return nil
}

// timeLayout has a fixed width so recorded_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05.999999999 -0700 MST"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// Recorder is a livetree.Sink that buffers mutations and stores them as one
// batch per Flush.
type Recorder struct {
	journal *Journal
	session string
	seq     uint64
	batch   livetree.Mutations
}

// Push buffers a mutation.
func (r *Recorder) Push(m livetree.Mutation) {
	r.batch.Push(m)
}

// Flush stores the buffered mutations as the next batch. An empty buffer
// stores nothing; a failed insert keeps the buffer for the next Flush.
func (r *Recorder) Flush(ctx context.Context) error {
	if r.batch.Len() == 0 {
		return nil
	}
	r.seq++
	if err := r.journal.Record(ctx, r.session, r.seq, &r.batch); err != nil {
		r.seq--
		return err
	}
	r.batch.Reset()
	return nil
}
