package backup

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Backup types
const (
	TypeManual    = "manual"
	TypeAutomatic = "automatic"
	TypeScheduled = "scheduled"
)

// Backup statuses
const (
	StatusSuccess    = "success"
	StatusError      = "error"
	StatusInProgress = "in_progress"
)

// Record is one audit entry in the backup history ledger. The ledger is
// independent of the artifacts: losing it never prevents restoring a
// snapshot, and snapshots never reference it.
type Record struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename,omitempty"`
	CreatedAt    time.Time `json:"date"`
	SizeBytes    int64     `json:"size_bytes"`
	Size         string    `json:"size"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	Description  string    `json:"description,omitempty"`
	DataTypes    []string  `json:"data_types,omitempty"`
	Checksum     string    `json:"checksum,omitempty"`
	Version      string    `json:"version,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// ListFilter narrows ledger queries
type ListFilter struct {
	Type string
	From *time.Time
	To   *time.Time
}

// Ledger is the append-only history of backup attempts, stored in sqlite
type Ledger struct {
	db *sql.DB
}

// NewLedger creates a ledger over an open database connection
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Append inserts one record. Called exactly once per backup attempt,
// success or failure, so the ledger reflects true history.
func (l *Ledger) Append(record *Record) error {
	if record.ID == "" {
		record.ID = "backup-" + uuid.New().String()[:8]
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.Size = formatSize(record.SizeBytes)

	dataTypesJSON, err := json.Marshal(record.DataTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal data types: %w", err)
	}

	query := `
		INSERT INTO backup_history
		(id, filename, created_at, size_bytes, type, status, description, data_types, checksum, version, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = l.db.Exec(query,
		record.ID,
		record.Filename,
		record.CreatedAt,
		record.SizeBytes,
		record.Type,
		record.Status,
		record.Description,
		string(dataTypesJSON),
		record.Checksum,
		record.Version,
		record.ErrorMessage,
	)

	if err != nil {
		return fmt.Errorf("failed to append backup record: %w", err)
	}

	return nil
}

// List returns records matching the filter, most recent first
func (l *Ledger) List(filter ListFilter) ([]*Record, error) {
	query := `
		SELECT id, filename, created_at, size_bytes, type, status, description, data_types, checksum, version, error_message
		FROM backup_history
	`

	var conditions []string
	var args []interface{}

	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.From != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, *filter.To)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query backup history: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record := &Record{}
		var (
			filename      sql.NullString
			description   sql.NullString
			dataTypesJSON sql.NullString
			checksum      sql.NullString
			version       sql.NullString
			errorMessage  sql.NullString
		)

		if err := rows.Scan(
			&record.ID,
			&filename,
			&record.CreatedAt,
			&record.SizeBytes,
			&record.Type,
			&record.Status,
			&description,
			&dataTypesJSON,
			&checksum,
			&version,
			&errorMessage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan backup record: %w", err)
		}

		record.Filename = filename.String
		record.Description = description.String
		record.Checksum = checksum.String
		record.Version = version.String
		record.ErrorMessage = errorMessage.String
		record.Size = formatSize(record.SizeBytes)

		if dataTypesJSON.Valid && dataTypesJSON.String != "" {
			if err := json.Unmarshal([]byte(dataTypesJSON.String), &record.DataTypes); err != nil {
				return nil, fmt.Errorf("failed to parse data types: %w", err)
			}
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read backup history: %w", err)
	}

	return records, nil
}

// Get returns a single record by id
func (l *Ledger) Get(id string) (*Record, error) {
	row := l.db.QueryRow(`
		SELECT id, filename, created_at, size_bytes, type, status, description, data_types, checksum, version, error_message
		FROM backup_history
		WHERE id = ?
	`, id)

	record := &Record{}
	var (
		filename      sql.NullString
		description   sql.NullString
		dataTypesJSON sql.NullString
		checksum      sql.NullString
		version       sql.NullString
		errorMessage  sql.NullString
	)

	if err := row.Scan(
		&record.ID,
		&filename,
		&record.CreatedAt,
		&record.SizeBytes,
		&record.Type,
		&record.Status,
		&description,
		&dataTypesJSON,
		&checksum,
		&version,
		&errorMessage,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("backup record not found: %s", id)
		}
		return nil, fmt.Errorf("failed to read backup record: %w", err)
	}

	record.Filename = filename.String
	record.Description = description.String
	record.Checksum = checksum.String
	record.Version = version.String
	record.ErrorMessage = errorMessage.String
	record.Size = formatSize(record.SizeBytes)

	if dataTypesJSON.Valid && dataTypesJSON.String != "" {
		if err := json.Unmarshal([]byte(dataTypesJSON.String), &record.DataTypes); err != nil {
			return nil, fmt.Errorf("failed to parse data types: %w", err)
		}
	}

	return record, nil
}

// Remove deletes the given records, returning how many were removed
func (l *Ledger) Remove(ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	result, err := l.db.Exec("DELETE FROM backup_history WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to remove backup records: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count removed records: %w", err)
	}

	return removed, nil
}

// Clear deletes the entire history
func (l *Ledger) Clear() error {
	if _, err := l.db.Exec("DELETE FROM backup_history"); err != nil {
		return fmt.Errorf("failed to clear backup history: %w", err)
	}
	return nil
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
