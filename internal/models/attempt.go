package models

import "time"

// Attempt is one recorded solve attempt.
type Attempt struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"run_id"`
	Number       int       `json:"number"`
	Stage        string    `json:"stage"`
	Error        string    `json:"error,omitempty"`
	Solved       bool      `json:"solved"`
	Boxes        int       `json:"boxes"`
	Similarities []float64 `json:"similarities"`
	DurationMS   int64     `json:"duration_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// AttemptFilter contains filtering options for querying attempts.
type AttemptFilter struct {
	RunID     string
	Stage     string
	Solved    *bool
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Offset    int
}

// AttemptStats summarizes the attempt history.
type AttemptStats struct {
	TotalAttempts  int            `json:"total_attempts"`
	SolvedAttempts int            `json:"solved_attempts"`
	TotalRuns      int            `json:"total_runs"`
	SolvedRuns     int            `json:"solved_runs"`
	PerStage       map[string]int `json:"per_stage"`
}
