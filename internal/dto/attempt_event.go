package dto

import (
	"encoding/json"
	"time"
)

// AttemptEvent is pushed to live viewers after every solve attempt.
type AttemptEvent struct {
	Type         string    `json:"type"`
	RunID        string    `json:"run_id"`
	Attempt      int       `json:"attempt"`
	Stage        string    `json:"stage"`
	Error        string    `json:"error,omitempty"`
	Solved       bool      `json:"solved"`
	Boxes        int       `json:"boxes"`
	Similarities []float64 `json:"similarities"`
	Time         time.Time `json:"time"`
}

// MarshalJSON formats the event time for display.
func (e AttemptEvent) MarshalJSON() ([]byte, error) {
	type Alias AttemptEvent
	return json.Marshal(&struct {
		Time string `json:"time"`
		Alias
	}{
		Time:  e.Time.Format("02-01-2006 15:04:05"),
		Alias: (Alias)(e),
	})
}
