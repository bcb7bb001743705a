package lease

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"checkin/internal/logger"

	"golang.org/x/sync/errgroup"
)

// API is the provider surface the manager needs.
type API interface {
	Balance(ctx context.Context) (int, error)
	ListLeases(ctx context.Context) ([]int64, error)
	LeaseDetail(ctx context.Context, id int64) (Detail, error)
	Renew(ctx context.Context, id int64, days int) error
}

// Policy decides when and how servers are renewed.
type Policy struct {
	AutoRenew     bool
	ThresholdDays int
	Days          int
	Cost          int
}

// Server is one lease with a valid expiry.
type Server struct {
	ID        int64
	Name      string
	ExpiresAt time.Time
}

// DaysRemaining counts whole days until expiry, never negative.
func (s Server) DaysRemaining(now time.Time) int {
	d := s.ExpiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// Status is the per-server line of a Result.
type Status struct {
	ID            int64
	Name          string
	ExpiresAt     time.Time
	DaysRemaining int
	Renewed       bool
}

// Result summarizes one CheckAndRenew pass.
type Result struct {
	Points   int
	Servers  []Status
	Renewed  []Status
	Warnings []string
}

// Manager checks server expiry and renews servers close to it.
type Manager struct {
	api         API
	policy      Policy
	logger      *logger.Logger
	now         func() time.Time
	concurrency int
}

func NewManager(api API, policy Policy, logger *logger.Logger) *Manager {
	return &Manager{api: api, policy: policy, logger: logger, now: time.Now, concurrency: 4}
}

// Servers lists every server with a valid expiry. Servers whose detail
// cannot be fetched or has no expiry are logged and skipped.
func (m *Manager) Servers(ctx context.Context) ([]Server, error) {
	ids, err := m.api.ListLeases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	m.logger.Info("Found %d servers", len(ids))

	var (
		mu      sync.Mutex
		servers []Server
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			detail, err := m.api.LeaseDetail(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				m.logger.Error("Failed to get detail of server %d: %v", id, err)
				return nil
			}
			if detail.ExpDate <= 0 {
				m.logger.Warning("Server %d has invalid expiry (%d), skipping", id, detail.ExpDate)
				return nil
			}

			name := detail.Title
			if name == "" {
				name = fmt.Sprintf("game-server-%d", id)
			}
			mu.Lock()
			servers = append(servers, Server{ID: id, Name: name, ExpiresAt: time.Unix(detail.ExpDate, 0)})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(servers, func(i, j int) bool { return servers[i].ID < servers[j].ID })
	return servers, nil
}

// CheckAndRenew renews every server at or below the threshold while the
// balance covers the cost. Failures become warnings; the pass never errors.
func (m *Manager) CheckAndRenew(ctx context.Context) Result {
	var result Result

	points, err := m.api.Balance(ctx)
	if err != nil {
		m.logger.Error("Server check failed: %v", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("API call failed: %v", err))
		return result
	}
	result.Points = points
	m.logger.Info("Current points: %d", points)

	servers, err := m.Servers(ctx)
	if err != nil {
		m.logger.Error("Server check failed: %v", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("API call failed: %v", err))
		return result
	}

	now := m.now()
	for _, s := range servers {
		status := Status{ID: s.ID, Name: s.Name, ExpiresAt: s.ExpiresAt, DaysRemaining: s.DaysRemaining(now)}
		m.logger.Info("%s expires %s, %d days left", s.Name, s.ExpiresAt.Format(time.DateTime), status.DaysRemaining)

		if status.DaysRemaining <= m.policy.ThresholdDays {
			m.logger.Warning("%s expires soon, %d days left", s.Name, status.DaysRemaining)
			m.renew(ctx, &result, &status)
		}
		result.Servers = append(result.Servers, status)
	}
	return result
}

func (m *Manager) renew(ctx context.Context, result *Result, status *Status) {
	if !m.policy.AutoRenew {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s expires soon but auto-renew is off", status.Name))
		return
	}
	if result.Points < m.policy.Cost {
		warning := fmt.Sprintf("not enough points: need %d, have %d", m.policy.Cost, result.Points)
		m.logger.Warning("%s", warning)
		result.Warnings = append(result.Warnings, warning)
		return
	}

	if err := m.api.Renew(ctx, status.ID, m.policy.Days); err != nil {
		m.logger.Error("Failed to renew %s: %v", status.Name, err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s renewal failed: %v", status.Name, err))
		return
	}

	m.logger.Info("Renewed %s for %d days, spent %d points", status.Name, m.policy.Days, m.policy.Cost)
	result.Points -= m.policy.Cost
	status.Renewed = true
	result.Renewed = append(result.Renewed, *status)
}
