// Package store provides durable, crash-safe per-task persistence
// backed by an embedded SQLite database (§4.6). Every mutation
// commits immediately so an interrupted process resumes with no lost
// or duplicated work.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/lsilvatti/parallelbook/internal/document"
)

// Store is a single-writer, process-local task table.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if necessary) the state database at path and
// ensures the tasks schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			idx INTEGER PRIMARY KEY,
			role TEXT NOT NULL,
			source_text TEXT NOT NULL,
			raw_line TEXT,
			concat INTEGER NOT NULL DEFAULT 0,
			response TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create tasks schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Initialize drops and reinserts all rows atomically; every response
// becomes NULL. This is the only operation that destroys task rows.
func (s *Store) Initialize(tasks []document.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin initialize transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM tasks"); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO tasks (idx, role, source_text, raw_line, concat)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tasks {
		concat := 0
		if t.Attrs.Concat {
			concat = 1
		}
		if _, err := stmt.Exec(t.Index, string(t.Role), t.SourceText, t.Attrs.RawLine, concat); err != nil {
			return fmt.Errorf("insert task %d: %w", t.Index, err)
		}
	}

	return tx.Commit()
}

// Load returns the task at idx, or (nil, nil) if it does not exist.
func (s *Store) Load(idx int) (*document.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(idx)
}

func (s *Store) load(idx int) (*document.Task, error) {
	row := s.db.QueryRow(`SELECT idx, role, source_text, raw_line, concat, response FROM tasks WHERE idx = ?`, idx)
	return scanTask(row)
}

func scanTask(row *sql.Row) (*document.Task, error) {
	var (
		index      int
		role       string
		sourceText string
		rawLine    sql.NullString
		concat     int
		response   sql.NullString
	)
	if err := row.Scan(&index, &role, &sourceText, &rawLine, &concat, &response); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	task := &document.Task{
		Index:      index,
		Role:       document.Role(role),
		SourceText: sourceText,
		Attrs: document.Attrs{
			RawLine: rawLine.String,
			Concat:  concat != 0,
		},
	}
	if response.Valid {
		var r document.Response
		if err := json.Unmarshal([]byte(response.String), &r); err != nil {
			return nil, fmt.Errorf("decode response for task %d: %w", index, err)
		}
		task.Response = &r
	}
	return task, nil
}

// ResetTask clears the response for a single index, leaving role and
// source_text untouched — used for driver `--redo`.
func (s *Store) ResetTask(idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE tasks SET response = NULL WHERE idx = ?`, idx)
	if err != nil {
		return fmt.Errorf("reset task %d: %w", idx, err)
	}
	return nil
}

// SetResponse atomically writes r for idx. No-op on a nonexistent idx.
func (s *Store) SetResponse(idx int, r *document.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode response for task %d: %w", idx, err)
	}
	_, err = s.db.Exec(`UPDATE tasks SET response = ? WHERE idx = ?`, string(raw), idx)
	if err != nil {
		return fmt.Errorf("set response for task %d: %w", idx, err)
	}
	return nil
}

// FindUndone returns the smallest idx with a NULL response, or -1 if
// none remain. Because the result is always the smallest remaining
// index, resuming after an interruption always continues exactly
// where the previous run stopped.
func (s *Store) FindUndone() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var idx int
	err := s.db.QueryRow(`SELECT idx FROM tasks WHERE response IS NULL ORDER BY idx ASC LIMIT 1`).Scan(&idx)
	if err == sql.ErrNoRows {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("find undone task: %w", err)
	}
	return idx, nil
}

// Count returns the number of task rows.
func (s *Store) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

// LoadAll returns every task row in index order.
func (s *Store) LoadAll() ([]document.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT idx, role, source_text, raw_line, concat, response FROM tasks ORDER BY idx ASC`)
	if err != nil {
		return nil, fmt.Errorf("load all tasks: %w", err)
	}
	defer rows.Close()

	var tasks []document.Task
	for rows.Next() {
		var (
			index      int
			role       string
			sourceText string
			rawLine    sql.NullString
			concat     int
			response   sql.NullString
		)
		if err := rows.Scan(&index, &role, &sourceText, &rawLine, &concat, &response); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		task := document.Task{
			Index:      index,
			Role:       document.Role(role),
			SourceText: sourceText,
			Attrs: document.Attrs{
				RawLine: rawLine.String,
				Concat:  concat != 0,
			},
		}
		if response.Valid {
			var r document.Response
			if err := json.Unmarshal([]byte(response.String), &r); err != nil {
				return nil, fmt.Errorf("decode response for task %d: %w", index, err)
			}
			task.Response = &r
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task rows: %w", err)
	}
	return tasks, nil
}
