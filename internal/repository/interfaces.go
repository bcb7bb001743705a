package repository

import (
	"time"

	"checkin/internal/models"
)

// AttemptRepository defines the interface for solve-attempt history.
type AttemptRepository interface {
	// Create operations
	Insert(a *models.Attempt) (int64, error)

	// Read operations
	GetAll(filter *models.AttemptFilter) ([]models.Attempt, error)
	GetTotalCount(filter *models.AttemptFilter) (int, error)
	GetStats() (*models.AttemptStats, error)

	// Delete operations
	DeleteBefore(t time.Time) (int64, error)
}

// RenewalRepository defines the interface for server renewal history.
type RenewalRepository interface {
	Insert(r *models.Renewal) (int64, error)
	GetRecent(limit int) ([]models.Renewal, error)
	SpentSince(t time.Time) (int, error)
}
