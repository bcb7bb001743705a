package sqlite

import (
	"fmt"
	"time"

	"checkin/internal/models"
)

// RenewalRepository implements repository.RenewalRepository for SQLite.
type RenewalRepository struct {
	db *DB
}

// NewRenewalRepository creates a new SQLite renewal repository.
func NewRenewalRepository(db *DB) *RenewalRepository {
	return &RenewalRepository{db: db}
}

// Insert adds a new renewal record to the database.
func (r *RenewalRepository) Insert(rn *models.Renewal) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO renewals (server_id, server_name, days, cost, expires_at, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rn.ServerID, rn.ServerName, rn.Days, rn.Cost, rn.ExpiresAt, rn.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to insert renewal: %w", err)
	}

	return result.LastInsertId()
}

// GetRecent returns the latest renewals, newest first.
func (r *RenewalRepository) GetRecent(limit int) ([]models.Renewal, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Conn().Query(`
		SELECT id, server_id, server_name, days, cost, expires_at, timestamp
		FROM renewals ORDER BY timestamp DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query renewals: %w", err)
	}
	defer rows.Close()

	var renewals []models.Renewal
	for rows.Next() {
		var rn models.Renewal
		if err := rows.Scan(&rn.ID, &rn.ServerID, &rn.ServerName, &rn.Days, &rn.Cost, &rn.ExpiresAt, &rn.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan renewal: %w", err)
		}
		renewals = append(renewals, rn)
	}
	return renewals, rows.Err()
}

// SpentSince sums the points spent on renewals since t.
func (r *RenewalRepository) SpentSince(t time.Time) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var spent int
	err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(cost), 0) FROM renewals WHERE timestamp >= ?`, t).Scan(&spent)
	if err != nil {
		return 0, fmt.Errorf("failed to sum renewals: %w", err)
	}
	return spent, nil
}
