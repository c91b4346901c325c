package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// AnalysisRow is one unit of syntactic-analysis work: the opaque
// request payload is a JSON-encoded batch of source/target pairs, and
// response (once set) is the JSON-encoded analysis result for that
// same batch. Unlike the translation Store's tasks table, the analysis
// table carries no role/source_text columns of its own — the pairs
// already live inside request.
type AnalysisRow struct {
	Index    int
	Request  string
	Response string
}

// AnalysisStore is the single-writer, process-local table backing the
// analysis pipeline's resumable state, mirroring Store's durability
// model against its own (idx, request, response) schema.
type AnalysisStore struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenAnalysisStore opens (creating if necessary) the analysis state
// database at path and ensures its schema exists.
func OpenAnalysisStore(path string) (*AnalysisStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open analysis database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &AnalysisStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *AnalysisStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS analysis_tasks (
			idx INTEGER PRIMARY KEY,
			request TEXT NOT NULL,
			response TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create analysis_tasks schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *AnalysisStore) Close() error {
	return s.db.Close()
}

// Initialize drops and reinserts all rows atomically; every response
// becomes NULL.
func (s *AnalysisStore) Initialize(rows []AnalysisRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin initialize transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM analysis_tasks"); err != nil {
		return fmt.Errorf("clear analysis_tasks: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO analysis_tasks (idx, request) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r.Index, r.Request); err != nil {
			return fmt.Errorf("insert analysis row %d: %w", r.Index, err)
		}
	}

	return tx.Commit()
}

// Load returns the row at idx, or (nil, nil) if it does not exist.
func (s *AnalysisStore) Load(idx int) (*AnalysisRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT idx, request, response FROM analysis_tasks WHERE idx = ?`, idx)
	var (
		index    int
		request  string
		response sql.NullString
	)
	if err := row.Scan(&index, &request, &response); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan analysis row: %w", err)
	}
	return &AnalysisRow{Index: index, Request: request, Response: response.String}, nil
}

// SetResponse atomically writes the response payload for idx.
func (s *AnalysisStore) SetResponse(idx int, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE analysis_tasks SET response = ? WHERE idx = ?`, response, idx)
	if err != nil {
		return fmt.Errorf("set analysis response for row %d: %w", idx, err)
	}
	return nil
}

// FindUndone returns the smallest idx with a NULL response, or -1 if
// none remain.
func (s *AnalysisStore) FindUndone() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var idx int
	err := s.db.QueryRow(`SELECT idx FROM analysis_tasks WHERE response IS NULL ORDER BY idx ASC LIMIT 1`).Scan(&idx)
	if err == sql.ErrNoRows {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("find undone analysis row: %w", err)
	}
	return idx, nil
}

// LoadAll returns every row in index order.
func (s *AnalysisStore) LoadAll() ([]AnalysisRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT idx, request, response FROM analysis_tasks ORDER BY idx ASC`)
	if err != nil {
		return nil, fmt.Errorf("load all analysis rows: %w", err)
	}
	defer rows.Close()

	var out []AnalysisRow
	for rows.Next() {
		var (
			index    int
			request  string
			response sql.NullString
		)
		if err := rows.Scan(&index, &request, &response); err != nil {
			return nil, fmt.Errorf("scan analysis row: %w", err)
		}
		out = append(out, AnalysisRow{Index: index, Request: request, Response: response.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis rows: %w", err)
	}
	return out, nil
}
