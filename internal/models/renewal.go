package models

import "time"

// Renewal is one paid server renewal.
type Renewal struct {
	ID         int64     `json:"id"`
	ServerID   int64     `json:"server_id"`
	ServerName string    `json:"server_name"`
	Days       int       `json:"days"`
	Cost       int       `json:"cost"`
	ExpiresAt  time.Time `json:"expires_at"`
	Timestamp  time.Time `json:"timestamp"`
}
