package sqlite

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"checkin/internal/models"
)

// AttemptRepository implements repository.AttemptRepository for SQLite.
type AttemptRepository struct {
	db *DB
}

// NewAttemptRepository creates a new SQLite attempt repository.
func NewAttemptRepository(db *DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Insert adds a new attempt record to the database.
func (r *AttemptRepository) Insert(a *models.Attempt) (int64, error) {
	similarities := a.Similarities
	if similarities == nil {
		similarities = []float64{}
	}
	encoded, err := json.Marshal(similarities)
	if err != nil {
		return 0, fmt.Errorf("failed to encode similarities: %w", err)
	}

	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO attempts (run_id, number, stage, error, solved, boxes, similarities, duration_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.RunID, a.Number, a.Stage, a.Error, a.Solved, a.Boxes, string(encoded), a.DurationMS, a.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to insert attempt: %w", err)
	}

	return result.LastInsertId()
}

func whereClause(filter *models.AttemptFilter) (string, []interface{}) {
	var conds []string
	args := []interface{}{}

	if filter == nil {
		return "", args
	}
	if filter.RunID != "" {
		conds = append(conds, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.Stage != "" {
		conds = append(conds, "stage = ?")
		args = append(args, filter.Stage)
	}
	if filter.Solved != nil {
		conds = append(conds, "solved = ?")
		args = append(args, *filter.Solved)
	}
	if !filter.StartDate.IsZero() {
		conds = append(conds, "DATE(timestamp) >= DATE(?)")
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		conds = append(conds, "DATE(timestamp) <= DATE(?)")
		args = append(args, filter.EndDate)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// GetAll retrieves attempts based on filter criteria, newest first.
func (r *AttemptRepository) GetAll(filter *models.AttemptFilter) ([]models.Attempt, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `
		SELECT id, run_id, number, stage, error, solved, boxes, similarities, duration_ms, timestamp
		FROM attempts` + where + " ORDER BY timestamp DESC, id DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.Attempt
	for rows.Next() {
		var a models.Attempt
		var similarities string
		if err := rows.Scan(&a.ID, &a.RunID, &a.Number, &a.Stage, &a.Error, &a.Solved, &a.Boxes, &similarities, &a.DurationMS, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		if err := json.Unmarshal([]byte(similarities), &a.Similarities); err != nil {
			return nil, fmt.Errorf("failed to decode similarities of attempt %d: %w", a.ID, err)
		}
		attempts = append(attempts, a)
	}

	return attempts, rows.Err()
}

// GetTotalCount returns the total count of attempts matching the filter.
func (r *AttemptRepository) GetTotalCount(filter *models.AttemptFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM attempts`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count, nil
}

// GetStats returns statistics about recorded attempts.
func (r *AttemptRepository) GetStats() (*models.AttemptStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &models.AttemptStats{PerStage: make(map[string]int)}

	err := r.db.Conn().QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(solved), 0), COUNT(DISTINCT run_id) FROM attempts
	`).Scan(&stats.TotalAttempts, &stats.SolvedAttempts, &stats.TotalRuns)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}

	err = r.db.Conn().QueryRow(`
		SELECT COUNT(DISTINCT run_id) FROM attempts WHERE solved = 1
	`).Scan(&stats.SolvedRuns)
	if err != nil {
		return nil, fmt.Errorf("failed to count solved runs: %w", err)
	}

	// Attempts per terminal stage
	rows, err := r.db.Conn().Query(`SELECT stage, COUNT(*) FROM attempts GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("failed to group attempts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, err
		}
		stats.PerStage[stage] = count
	}

	return stats, rows.Err()
}

// DeleteBefore removes attempts older than t and reports how many.
func (r *AttemptRepository) DeleteBefore(t time.Time) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`DELETE FROM attempts WHERE timestamp < ?`, t)
	if err != nil {
		return 0, fmt.Errorf("failed to delete attempts: %w", err)
	}
	return result.RowsAffected()
}
