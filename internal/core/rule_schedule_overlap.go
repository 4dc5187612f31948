package core

import (
	"context"
	"fmt"

	"mescore/pkg/domain"
)

// NewScheduleOverlapRule returns the in-transaction rule enforcing that
// non-cancelled schedule items on a workstation never exceed its concurrent
// capacity and never overlap an open maintenance window.
func NewScheduleOverlapRule() domain.Rule {
	return scheduleOverlapRule{}
}

type scheduleOverlapRule struct{}

func (scheduleOverlapRule) Name() string { return "schedule_no_overlap" }

func (scheduleOverlapRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	capacity := make(map[string]int)
	for _, ws := range view.ListWorkstations() {
		capacity[ws.ID] = ws.EffectiveCapacity()
	}

	byStation := make(map[string][]domain.ScheduleItem)
	for _, item := range view.ListScheduleItems() {
		if item.Status == domain.ScheduleItemCancelled {
			continue
		}
		byStation[item.WorkstationID] = append(byStation[item.WorkstationID], item)
	}

	openMaintenance := make(map[string][]domain.MaintenanceLog)
	for _, log := range view.ListMaintenanceLogs() {
		if log.Open() {
			openMaintenance[log.WorkstationID] = append(openMaintenance[log.WorkstationID], log)
		}
	}

	res := domain.Result{}
	for station, items := range byStation {
		limit := capacity[station]
		if limit == 0 {
			limit = 1
		}
		// Peak concurrency on a workstation is reached at some item start,
		// so checking each start instant is sufficient.
		for _, item := range items {
			concurrent := 0
			for _, other := range items {
				if !other.PlannedStart.After(item.PlannedStart) && other.PlannedEnd.After(item.PlannedStart) {
					concurrent++
				}
			}
			if concurrent > limit {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "schedule_no_overlap",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("workstation %s over capacity at %s: %d concurrent items, limit %d", station, item.PlannedStart.Format("2006-01-02T15:04:05Z07:00"), concurrent, limit),
					Entity:   domain.EntityScheduleItem,
					EntityID: item.ID,
				})
			}
			for _, log := range openMaintenance[station] {
				if item.PlannedEnd.After(log.StartTime) {
					res.Violations = append(res.Violations, domain.Violation{
						Rule:     "schedule_no_overlap",
						Severity: domain.SeverityBlock,
						Message:  fmt.Sprintf("schedule item %s overlaps open maintenance %s on workstation %s", item.ID, log.ID, station),
						Entity:   domain.EntityScheduleItem,
						EntityID: item.ID,
					})
				}
			}
		}
	}
	return res, nil
}
