package core

import (
	"context"
	"fmt"
	"time"

	"mescore/pkg/domain"
)

// StatsKind selects an aggregation rollup.
type StatsKind string

// Supported aggregation kinds.
const (
	StatsOrders      StatsKind = "orders"
	StatsNCRs        StatsKind = "ncrs"
	StatsKanban      StatsKind = "kanban"
	StatsMaintenance StatsKind = "maintenance"
	StatsQuality     StatsKind = "quality"
	StatsBreakdowns  StatsKind = "breakdowns"
	StatsSchedule    StatsKind = "schedule"
)

// OrderStats counts orders by state.
type OrderStats struct {
	Total   int                       `json:"total"`
	ByState map[domain.OrderState]int `json:"by_state"`
}

// NCRStats counts non-conformance reports by status.
type NCRStats struct {
	Total    int                      `json:"total"`
	ByStatus map[domain.NCRStatus]int `json:"by_status"`
}

// KanbanStats counts active kanban cards by status.
type KanbanStats struct {
	Total    int                         `json:"total"`
	ByStatus map[domain.KanbanStatus]int `json:"by_status"`
}

// MaintenanceStats sums maintenance activity by type.
type MaintenanceStats struct {
	Total         int                                `json:"total"`
	Open          int                                `json:"open"`
	ByType        map[domain.MaintenanceType]int     `json:"by_type"`
	DowntimeHours map[domain.MaintenanceType]float64 `json:"downtime_hours"`
}

// QualityStats reports the pass rate over a trailing window.
type QualityStats struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	PassRate float64 `json:"pass_rate"`
}

// BreakdownStats counts breakdown maintenance per workstation over a
// trailing window.
type BreakdownStats struct {
	ByWorkstation map[string]int `json:"by_workstation"`
}

// ScheduleStats counts schedule items by status.
type ScheduleStats struct {
	Total    int                               `json:"total"`
	Locked   int                               `json:"locked"`
	Overdue  int                               `json:"overdue"`
	ByStatus map[domain.ScheduleItemStatus]int `json:"by_status"`
}

// AggregateStats dispatches to the typed rollup for the given kind. Window
// bounds the trailing period for time-scoped kinds; zero means unbounded.
func (s *Service) AggregateStats(ctx context.Context, kind StatsKind, window time.Duration) (any, error) {
	switch kind {
	case StatsOrders:
		return s.OrderStats(ctx)
	case StatsNCRs:
		return s.NCRStats(ctx)
	case StatsKanban:
		return s.KanbanStats(ctx)
	case StatsMaintenance:
		return s.MaintenanceStats(ctx)
	case StatsQuality:
		return s.QualityStats(ctx, window)
	case StatsBreakdowns:
		return s.BreakdownStats(ctx, window)
	case StatsSchedule:
		return s.ScheduleStats(ctx)
	default:
		return nil, domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown stats kind %q", kind)}
	}
}

// OrderStats computes order counts by state.
func (s *Service) OrderStats(ctx context.Context) (OrderStats, error) {
	stats := OrderStats{ByState: make(map[domain.OrderState]int)}
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		for _, order := range view.ListOrders() {
			stats.Total++
			stats.ByState[order.State]++
		}
		return nil
	})
	return stats, err
}

// NCRStats computes NCR counts by status.
func (s *Service) NCRStats(ctx context.Context) (NCRStats, error) {
	stats := NCRStats{ByStatus: make(map[domain.NCRStatus]int)}
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		for _, ncr := range view.ListNCRs() {
			stats.Total++
			stats.ByStatus[ncr.Status]++
		}
		return nil
	})
	return stats, err
}

// KanbanStats computes kanban card counts by status. Deactivated cards are
// excluded.
func (s *Service) KanbanStats(ctx context.Context) (KanbanStats, error) {
	stats := KanbanStats{ByStatus: make(map[domain.KanbanStatus]int)}
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		for _, card := range view.ListKanbanCards() {
			if !card.Active {
				continue
			}
			stats.Total++
			stats.ByStatus[card.Status]++
		}
		return nil
	})
	return stats, err
}

// MaintenanceStats computes maintenance totals and downtime by type.
func (s *Service) MaintenanceStats(ctx context.Context) (MaintenanceStats, error) {
	stats := MaintenanceStats{
		ByType:        make(map[domain.MaintenanceType]int),
		DowntimeHours: make(map[domain.MaintenanceType]float64),
	}
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		for _, log := range view.ListMaintenanceLogs() {
			stats.Total++
			stats.ByType[log.Type]++
			if log.Open() {
				stats.Open++
				continue
			}
			stats.DowntimeHours[log.Type] += log.DurationHours()
		}
		return nil
	})
	return stats, err
}

// QualityStats computes the pass rate over the trailing window. A zero
// window includes all checks.
func (s *Service) QualityStats(ctx context.Context, window time.Duration) (QualityStats, error) {
	var stats QualityStats
	cutoff := time.Time{}
	if window > 0 {
		cutoff = s.nowFn().Add(-window)
	}
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		for _, check := range view.ListQualityChecks() {
			if !cutoff.IsZero() && check.CreatedAt.Before(cutoff) {
				continue
			}
			stats.Total++
			if check.Passed {
				stats.Passed++
			}
		}
		return nil
	})
	if err != nil {
		return QualityStats{}, err
	}
	if stats.Total > 0 {
		stats.PassRate = float64(stats.Passed) / float64(stats.Total)
	}
	return stats, nil
}

// BreakdownStats counts breakdown maintenance per workstation over the
// trailing window. A zero window includes all logs.
func (s *Service) BreakdownStats(ctx context.Context, window time.Duration) (BreakdownStats, error) {
	stats := BreakdownStats{ByWorkstation: make(map[string]int)}
	cutoff := time.Time{}
	if window > 0 {
		cutoff = s.nowFn().Add(-window)
	}
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		for _, log := range view.ListMaintenanceLogs() {
			if log.Type != domain.MaintenanceBreakdown {
				continue
			}
			if !cutoff.IsZero() && log.StartTime.Before(cutoff) {
				continue
			}
			stats.ByWorkstation[log.WorkstationID]++
		}
		return nil
	})
	return stats, err
}

// ScheduleStats computes schedule item counts by status. Overdue counts
// planned items whose planned end has already passed.
func (s *Service) ScheduleStats(ctx context.Context) (ScheduleStats, error) {
	now := s.nowFn()
	stats := ScheduleStats{ByStatus: make(map[domain.ScheduleItemStatus]int)}
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		for _, item := range view.ListScheduleItems() {
			stats.Total++
			stats.ByStatus[item.Status]++
			if item.Locked {
				stats.Locked++
			}
			if item.Status == domain.ScheduleItemPlanned && item.PlannedEnd.Before(now) {
				stats.Overdue++
			}
		}
		return nil
	})
	return stats, err
}
