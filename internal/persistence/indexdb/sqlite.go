// Package indexdb maintains a secondary sqlite index of perception
// activity and snapshot metadata. It is a read model for tooling: writes
// are enqueued and may be dropped under pressure, the JSONL logs and
// snapshot files remain the source of truth.
package indexdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"mazecraft.ai/internal/persistence/snapshot"
	"mazecraft.ai/internal/protocol"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqObs reqKind = iota + 1
	reqSnapshot
	reqFlush
)

type req struct {
	kind reqKind

	obs      protocol.ObsMsg
	snapshot snapshotRow
	done     chan struct{}
}

type snapshotRow struct {
	Tick       uint64
	Path       string
	Width      int
	Height     int
	Tiles      int
	Agents     int
	RecordedAt string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS perceptions (
			tick INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			agent_name TEXT NOT NULL,
			x INTEGER,
			y INTEGER,
			events INTEGER NOT NULL,
			importance_trigger_curr REAL NOT NULL,
			importance_ele_n INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, agent_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_perceptions_agent_tick ON perceptions(agent_id, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			tiles INTEGER NOT NULL,
			agents INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteObs enqueues one perception row. Never blocks the sim loop.
func (s *SQLiteIndex) WriteObs(obs protocol.ObsMsg) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqObs, obs: obs}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
	}
	return nil
}

// RecordSnapshot enqueues snapshot metadata.
func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:       snap.Header.Tick,
		Path:       path,
		Width:      snap.Width,
		Height:     snap.Height,
		Tiles:      len(snap.Tiles),
		Agents:     len(snap.Agents),
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
	}
}

// Flush blocks until every enqueued row has been committed. Test and
// shutdown aid; the sim never calls it.
func (s *SQLiteIndex) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{kind: reqFlush, done: done}
	<-done
}

func (s *SQLiteIndex) loop() {
	insertObs, _ := s.db.Prepare(`INSERT OR REPLACE INTO perceptions(tick,agent_id,agent_name,x,y,events,importance_trigger_curr,importance_ele_n,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,width,height,tiles,agents,recorded_at) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertObs != nil {
			_ = insertObs.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx          *sql.Tx
		opCount     int
		lastCommit  = time.Now()
		commitEvery = 500
		commitWait  = 2 * time.Second
	)

	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	begin := func() {
		if tx != nil {
			return
		}
		tx, _ = s.db.Begin()
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case r, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			if r.kind == reqFlush {
				commit()
				close(r.done)
				continue
			}
			begin()
			if tx == nil {
				continue
			}
			switch r.kind {
			case reqObs:
				raw, _ := json.Marshal(r.obs)
				var x, y any
				if r.obs.Position != nil {
					x, y = r.obs.Position[0], r.obs.Position[1]
				}
				_, _ = tx.Stmt(insertObs).Exec(
					r.obs.Tick, r.obs.AgentID, r.obs.AgentName, x, y,
					len(r.obs.Events), r.obs.ImportanceTriggerCurr, r.obs.ImportanceEleN,
					string(raw),
				)
			case reqSnapshot:
				_, _ = tx.Stmt(insertSnapshot).Exec(
					r.snapshot.Tick, r.snapshot.Path, r.snapshot.Width, r.snapshot.Height,
					r.snapshot.Tiles, r.snapshot.Agents, r.snapshot.RecordedAt,
				)
			}
			opCount++
			if opCount >= commitEvery {
				commit()
			}
		case <-ticker.C:
			if tx != nil && time.Since(lastCommit) >= commitWait {
				commit()
			}
		}
	}
}

// PerceptionCount reports indexed perception rows for one agent. Used by
// tests and admin tooling; callers must tolerate lag behind the sim.
func (s *SQLiteIndex) PerceptionCount(agentID string) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("index closed")
	}
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM perceptions WHERE agent_id = ?`, agentID).Scan(&n)
	return n, err
}

// LatestSnapshot returns the most recent indexed snapshot path, "" if none.
func (s *SQLiteIndex) LatestSnapshot() (string, uint64, error) {
	if s == nil {
		return "", 0, fmt.Errorf("index closed")
	}
	var path string
	var tick uint64
	err := s.db.QueryRow(`SELECT path, tick FROM snapshots ORDER BY tick DESC LIMIT 1`).Scan(&path, &tick)
	if err == sql.ErrNoRows {
		return "", 0, nil
	}
	return path, tick, err
}
