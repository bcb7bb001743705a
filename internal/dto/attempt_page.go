package dto

import "checkin/internal/models"

// AttemptPage is one page of attempt history.
type AttemptPage struct {
	Attempts    []models.Attempt `json:"attempts"`
	Length      int              `json:"length"`
	TotalPages  int              `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
	Limit       int              `json:"pageSize"`
}
