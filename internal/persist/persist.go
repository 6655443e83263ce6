// Package persist backs the persist_* natives with a globals-table
// snapshot/restore store over database/sql, picking a driver by DSN
// scheme rather than baking one choice into the VM.
package persist

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// session pairs an open connection with the driver it was opened under,
// since sqlite and postgres disagree on bound-parameter placeholder syntax.
type session struct {
	db     *sql.DB
	driver string
}

// Manager owns every open session, keyed by an opaque uint64 handle
// encoded/decoded with encoding/binary — a host resource handle table,
// not a raw pointer or index a script could forge.
type Manager struct {
	mu       sync.Mutex
	sessions map[uint64]*session
	nextID   atomic.Uint64
}

// NewManager creates an empty handle table.
func NewManager() *Manager {
	return &Manager{sessions: make(map[uint64]*session)}
}

// EncodeHandle packs id into 8 little-endian bytes.
func EncodeHandle(id uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, id)
	return buf
}

// DecodeHandle unpacks a handle previously produced by EncodeHandle.
func DecodeHandle(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("persist: invalid handle length %d", len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

// driverAndDSN picks the database/sql driver name by the DSN's scheme:
// "sqlite://path" opens a modernc.org/sqlite file, anything else is
// handed to lib/pq as a postgres connection string.
func driverAndDSN(dsn string) (string, string) {
	if rest, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		return "sqlite", rest
	}
	return "postgres", dsn
}

// Open establishes a session against dsn and creates its globals table if
// missing, returning an opaque handle for subsequent Save/Load/Close
// calls.
func (m *Manager) Open(dsn string) ([]byte, error) {
	driver, conn := driverAndDSN(dsn)
	db, err := sql.Open(driver, conn)
	if err != nil {
		return nil, fmt.Errorf("persist: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: ping: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS vm_globals (name TEXT PRIMARY KEY, data BLOB)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: schema: %w", err)
	}

	id := m.nextID.Add(1)
	m.mu.Lock()
	m.sessions[id] = &session{db: db, driver: driver}
	m.mu.Unlock()
	return EncodeHandle(id), nil
}

func (m *Manager) lookup(handle []byte) (*session, error) {
	id, err := DecodeHandle(handle)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("persist: unknown session handle")
	}
	return s, nil
}

// Save upserts name -> data (typically a CBOR-encoded Value from
// natives.Encode) into the session's globals table.
func (m *Manager) Save(handle []byte, name string, data []byte) error {
	s, err := m.lookup(handle)
	if err != nil {
		return err
	}
	var q string
	if s.driver == "sqlite" {
		q = `INSERT INTO vm_globals(name, data) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET data = excluded.data`
	} else {
		q = `INSERT INTO vm_globals(name, data) VALUES ($1, $2)
			ON CONFLICT(name) DO UPDATE SET data = excluded.data`
	}
	if _, err := s.db.Exec(q, name, data); err != nil {
		return fmt.Errorf("persist: save: %w", err)
	}
	return nil
}

// Load retrieves the bytes previously stored under name.
func (m *Manager) Load(handle []byte, name string) ([]byte, error) {
	s, err := m.lookup(handle)
	if err != nil {
		return nil, err
	}
	q := `SELECT data FROM vm_globals WHERE name = $1`
	if s.driver == "sqlite" {
		q = `SELECT data FROM vm_globals WHERE name = ?`
	}
	var data []byte
	if err := s.db.QueryRow(q, name).Scan(&data); err != nil {
		return nil, fmt.Errorf("persist: load: %w", err)
	}
	return data, nil
}

// Close releases the session's underlying *sql.DB and forgets its handle.
func (m *Manager) Close(handle []byte) error {
	id, err := DecodeHandle(handle)
	if err != nil {
		return err
	}
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("persist: unknown session handle")
	}
	return s.db.Close()
}
