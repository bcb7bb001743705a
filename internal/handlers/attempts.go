package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"checkin/internal/dto"
	"checkin/internal/logger"
	"checkin/internal/models"
	"checkin/internal/services"
)

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseBool parses "true"/"false"; anything else means no filter.
func parseBool(v string) *bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

func writeJSON(w http.ResponseWriter, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// GetAttemptsHandler returns a filtered page of the attempt history.
func GetAttemptsHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		repo := manager.GetAttemptRepository()
		if repo == nil {
			http.Error(w, "Database not available", http.StatusInternalServerError)
			return
		}

		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &models.AttemptFilter{
			RunID:     q.Get("run"),
			Stage:     q.Get("stage"),
			Solved:    parseBool(q.Get("solved")),
			StartDate: parseDate(q.Get("dateAfter")),
			EndDate:   parseDate(q.Get("dateBefore")),
			Limit:     limit,
			Offset:    (page - 1) * limit,
		}

		attempts, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying attempts from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting attempts: %v", err)
			totalCount = len(attempts)
		}

		if attempts == nil {
			attempts = []models.Attempt{}
		}
		writeJSON(w, dto.AttemptPage{
			Attempts:    attempts,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}, logger)
	}
}

// GetStatsHandler returns attempt statistics.
func GetStatsHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		repo := manager.GetAttemptRepository()
		if repo == nil {
			http.Error(w, "Database not available", http.StatusInternalServerError)
			return
		}

		stats, err := repo.GetStats()
		if err != nil {
			logger.Error("Failed to get stats: %v", err)
			http.Error(w, "Failed to retrieve stats", http.StatusInternalServerError)
			return
		}
		writeJSON(w, stats, logger)
	}
}

// GetRenewalsHandler returns the most recent server renewals.
func GetRenewalsHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		repo := manager.GetRenewalRepository()
		if repo == nil {
			http.Error(w, "Database not available", http.StatusInternalServerError)
			return
		}

		renewals, err := repo.GetRecent(atoiDefault(r.URL.Query().Get("limit"), 50))
		if err != nil {
			logger.Error("Failed to get renewals: %v", err)
			http.Error(w, "Failed to retrieve renewals", http.StatusInternalServerError)
			return
		}
		if renewals == nil {
			renewals = []models.Renewal{}
		}
		writeJSON(w, renewals, logger)
	}
}
