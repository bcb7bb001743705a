package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"checkin/internal/captcha"
	"checkin/internal/dto"
	"checkin/internal/logger"
	"checkin/internal/models"
	"checkin/internal/repository"
	"checkin/internal/services/lease"
	"checkin/internal/services/websocket"
)

// Manager collects what happens during a run: it stores every solve
// attempt and renewal and forwards attempts to live viewers. Any of the
// sinks may be nil.
type Manager struct {
	attempts         repository.AttemptRepository
	renewals         repository.RenewalRepository
	websocketService *websocket.HubService
	logger           *logger.Logger

	mu    sync.Mutex
	runID string
	now   func() time.Time
}

func NewManager(attempts repository.AttemptRepository, renewals repository.RenewalRepository, websocketService *websocket.HubService, logger *logger.Logger) *Manager {
	return &Manager{
		attempts:         attempts,
		renewals:         renewals,
		websocketService: websocketService,
		logger:           logger,
		now:              time.Now,
	}
}

// StartRun begins a new run and returns its id.
func (m *Manager) StartRun() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runID = m.now().Format("20060102-150405")
	return m.runID
}

// RunID returns the id of the current run.
func (m *Manager) RunID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runID
}

// AttemptFinished stores the attempt and pushes it to viewers. Storage
// failures are logged; they never interrupt solving.
func (m *Manager) AttemptFinished(ctx context.Context, report captcha.AttemptReport) {
	record := attemptRecord(m.RunID(), report, m.now())

	if m.attempts != nil {
		if _, err := m.attempts.Insert(&record); err != nil {
			m.logger.Error("Failed to store attempt %d: %v", report.Attempt, err)
		}
	}

	if m.websocketService != nil {
		m.SendToViewers(dto.AttemptEvent{
			Type:         "attempt",
			RunID:        record.RunID,
			Attempt:      record.Number,
			Stage:        record.Stage,
			Error:        record.Error,
			Solved:       record.Solved,
			Boxes:        record.Boxes,
			Similarities: record.Similarities,
			Time:         record.Timestamp,
		})
	}
}

// SendToViewers broadcasts an event to connected viewers.
func (m *Manager) SendToViewers(event dto.AttemptEvent) {
	if m.websocketService == nil {
		return
	}
	message, err := json.Marshal(event)
	if err != nil {
		m.logger.Error("Failed to encode event: %v", err)
		return
	}
	m.websocketService.Broadcast(message)
}

// RecordRenewals stores every server renewed in result.
func (m *Manager) RecordRenewals(result lease.Result, policy lease.Policy) {
	if m.renewals == nil {
		return
	}
	for _, s := range result.Renewed {
		_, err := m.renewals.Insert(&models.Renewal{
			ServerID:   s.ID,
			ServerName: s.Name,
			Days:       policy.Days,
			Cost:       policy.Cost,
			ExpiresAt:  s.ExpiresAt,
			Timestamp:  m.now(),
		})
		if err != nil {
			m.logger.Error("Failed to store renewal of %s: %v", s.Name, err)
		}
	}
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}

func (m *Manager) GetAttemptRepository() repository.AttemptRepository {
	return m.attempts
}

func (m *Manager) GetRenewalRepository() repository.RenewalRepository {
	return m.renewals
}

func attemptRecord(runID string, report captcha.AttemptReport, now time.Time) models.Attempt {
	record := models.Attempt{
		RunID:        runID,
		Number:       report.Attempt,
		Stage:        string(report.Stage),
		Solved:       report.Solved,
		Boxes:        report.Boxes,
		Similarities: make([]float64, 0, len(report.Matches)),
		DurationMS:   report.Duration.Milliseconds(),
		Timestamp:    now,
	}
	if report.Err != nil {
		var se *captcha.StageError
		if errors.As(report.Err, &se) {
			record.Error = se.Err.Error()
		} else {
			record.Error = report.Err.Error()
		}
	}
	for _, match := range report.Matches {
		record.Similarities = append(record.Similarities, match.Score.Similarity)
	}
	return record
}
