package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kinds of journal entries
const (
	KindDocument    = "document"
	KindAttachment  = "attachment"
	KindPlaceholder = "placeholder"
)

// Export is one journal entry
type Export struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject"`
	Sender    string    `json:"sender"`
	Filename  string    `json:"filename,omitempty"`
	Folder    string    `json:"folder,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

const exportColumns = `id, session_id, kind, subject, sender, filename, folder, success, error, size, created_at`

// InsertExport stores e, assigning an id and timestamp when missing
func (db *DB) InsertExport(e *Export) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(`
		INSERT INTO exports (`+exportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.SessionID, e.Kind, e.Subject, e.Sender, e.Filename, e.Folder,
		e.Success, e.Error, e.Size, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert export: %w", err)
	}
	return nil
}

// GetExport returns the entry with id, or nil
func (db *DB) GetExport(id string) (*Export, error) {
	row := db.QueryRow(`SELECT `+exportColumns+` FROM exports WHERE id = ?`, id)
	e, err := scanExport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export: %w", err)
	}
	return e, nil
}

// ListExports returns the newest entries first
func (db *DB) ListExports(limit, offset int) ([]*Export, error) {
	rows, err := db.Query(`
		SELECT `+exportColumns+`
		FROM exports
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	return collectExports(rows)
}

// ListSessionExports returns the newest entries of one session first
func (db *DB) ListSessionExports(sessionID string, limit int) ([]*Export, error) {
	rows, err := db.Query(`
		SELECT `+exportColumns+`
		FROM exports
		WHERE session_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list session exports: %w", err)
	}
	return collectExports(rows)
}

// CountExports returns the number of entries with the given outcome
func (db *DB) CountExports(success bool) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM exports WHERE success = ?`, success).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count exports: %w", err)
	}
	return n, nil
}

// PruneExports deletes entries created before cutoff and returns how many
// were removed
func (db *DB) PruneExports(cutoff time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM exports WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune exports: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned exports: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanExport(s scanner) (*Export, error) {
	e := &Export{}
	var subject, sender, filename, folder, errText sql.NullString
	err := s.Scan(&e.ID, &e.SessionID, &e.Kind, &subject, &sender, &filename, &folder,
		&e.Success, &errText, &e.Size, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Subject = subject.String
	e.Sender = sender.String
	e.Filename = filename.String
	e.Folder = folder.String
	e.Error = errText.String
	return e, nil
}

func collectExports(rows *sql.Rows) ([]*Export, error) {
	defer rows.Close()

	var out []*Export
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exports: %w", err)
	}
	return out, nil
}
