package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"mescore/pkg/domain"
)

// ScheduleUpdate is one (item, new interval) pair of a bulk update.
type ScheduleUpdate struct {
	ItemID   string    `json:"item_id"`
	NewStart time.Time `json:"new_start"`
	NewEnd   time.Time `json:"new_end"`
}

func secondsDur(n int64) time.Duration { return time.Duration(n) * time.Second }

// GenerateSchedule places the operations of the order's routing onto
// workstations starting no earlier than startTime. Existing unlocked planned
// items of the order are cleared and regenerated; locked and finished items
// stay where they are and count as occupied time.
func (s *Service) GenerateSchedule(ctx context.Context, orderID string, startTime time.Time, actor domain.Actor) ([]domain.ScheduleItem, domain.Result, error) {
	classes, err := s.routingClasses(ctx, []string{orderID})
	if err != nil {
		return nil, domain.Result{}, err
	}
	ids, err := s.workstationIDsForClasses(ctx, classes)
	if err != nil {
		return nil, domain.Result{}, err
	}
	release := s.latch.acquire(ids)
	defer release()

	var items []domain.ScheduleItem
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		items, err = s.generateOrder(tx, orderID, startTime)
		return err
	})
	if err != nil {
		s.metrics.RecordScheduleOperation("generate", "error")
		return nil, res, err
	}
	s.metrics.RecordScheduleOperation("generate", "ok")
	s.metrics.SetScheduleItemsPlanned(len(items))
	s.log.WithOrderID(orderID).WithField("items", len(items)).Info("schedule generated")
	return items, res, nil
}

// GenerateMultiSchedule schedules several orders in the given sequence
// within one transaction. Later orders see the occupancy created by earlier
// ones and never displace them.
func (s *Service) GenerateMultiSchedule(ctx context.Context, orderIDs []string, startTime time.Time, actor domain.Actor) ([]domain.ScheduleItem, domain.Result, error) {
	classes, err := s.routingClasses(ctx, orderIDs)
	if err != nil {
		return nil, domain.Result{}, err
	}
	ids, err := s.workstationIDsForClasses(ctx, classes)
	if err != nil {
		return nil, domain.Result{}, err
	}
	release := s.latch.acquire(ids)
	defer release()

	var items []domain.ScheduleItem
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, orderID := range orderIDs {
			generated, err := s.generateOrder(tx, orderID, startTime)
			if err != nil {
				return err
			}
			items = append(items, generated...)
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordScheduleOperation("generate_multi", "error")
		return nil, res, err
	}
	s.metrics.RecordScheduleOperation("generate_multi", "ok")
	s.metrics.SetScheduleItemsPlanned(len(items))
	return items, res, nil
}

// routingClasses collects the workstation classes needed by the orders'
// routings, for latch scoping.
func (s *Service) routingClasses(ctx context.Context, orderIDs []string) (map[string]struct{}, error) {
	classes := make(map[string]struct{})
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		for _, orderID := range orderIDs {
			order, ok := view.FindOrder(orderID)
			if !ok || order.RoutingID == nil {
				continue
			}
			routing, ok := view.FindRouting(*order.RoutingID)
			if !ok {
				continue
			}
			for _, op := range routing.Operations {
				classes[op.WorkstationClass] = struct{}{}
			}
		}
		return nil
	})
	return classes, err
}

// generateOrder runs the placement walk for one order inside an open
// transaction. Newly created items are immediately visible to subsequent
// placement decisions through the transaction snapshot.
func (s *Service) generateOrder(tx domain.Transaction, orderID string, startTime time.Time) ([]domain.ScheduleItem, error) {
	view := tx.Snapshot()
	order, ok := view.FindOrder(orderID)
	if !ok {
		return nil, domain.NotFoundError{Entity: domain.EntityOrder, ID: orderID}
	}
	if order.RoutingID == nil {
		return nil, domain.ValidationError{Field: "routing_id", Reason: fmt.Sprintf("order %s has no routing", orderID)}
	}
	routing, ok := view.FindRouting(*order.RoutingID)
	if !ok {
		return nil, domain.NotFoundError{Entity: domain.EntityRouting, ID: *order.RoutingID}
	}

	// Regeneration clears the order's unlocked planned items. Locked and
	// finished items keep their slot and still satisfy their operation.
	kept := make(map[string]domain.ScheduleItem)
	for _, item := range view.ListScheduleItems() {
		if item.OrderID != orderID {
			continue
		}
		if !item.Locked && item.Status == domain.ScheduleItemPlanned {
			if err := tx.DeleteScheduleItem(item.ID); err != nil {
				return nil, err
			}
			continue
		}
		if item.Status != domain.ScheduleItemCancelled {
			kept[item.OperationID] = item
		}
	}

	var created []domain.ScheduleItem
	earliest := startTime
	for i, op := range routing.Operations {
		if op.DurationSeconds <= 0 {
			return nil, domain.ValidationError{Field: "duration_seconds", Reason: fmt.Sprintf("operation %s has non-positive duration", op.ID)}
		}
		if existing, ok := kept[op.ID]; ok {
			next := existing.PlannedEnd.Add(secondsDur(op.BufferSeconds))
			if next.After(earliest) {
				earliest = next
			}
			continue
		}
		stations := s.activeStationsOfClass(tx.Snapshot(), op.WorkstationClass)
		if len(stations) == 0 {
			return nil, domain.NoCapacityError{WorkstationClass: op.WorkstationClass}
		}

		dur := secondsDur(op.DurationSeconds)
		var best domain.Workstation
		var bestStart time.Time
		found := false
		for _, ws := range stations {
			start, ok := earliestFeasibleStart(tx.Snapshot(), ws, earliest, dur)
			if !ok {
				continue
			}
			if !found || start.Before(bestStart) {
				best, bestStart, found = ws, start, true
			}
		}
		if !found {
			return nil, domain.ConflictError{Reason: fmt.Sprintf("all workstations of class %q are blocked by open maintenance", op.WorkstationClass)}
		}

		item, err := tx.CreateScheduleItem(domain.ScheduleItem{
			OrderID:       orderID,
			RoutingID:     routing.ID,
			OperationID:   op.ID,
			SequenceIndex: i,
			WorkstationID: best.ID,
			PlannedStart:  bestStart,
			PlannedEnd:    bestStart.Add(dur),
			BufferSeconds: op.BufferSeconds,
			Status:        domain.ScheduleItemPlanned,
		})
		if err != nil {
			return nil, err
		}
		created = append(created, item)
		earliest = item.PlannedEnd.Add(secondsDur(op.BufferSeconds))
	}
	return created, nil
}

// activeStationsOfClass returns the active workstations of a class sorted by
// id, which doubles as the tie-break order.
func (s *Service) activeStationsOfClass(view domain.TransactionView, class string) []domain.Workstation {
	var stations []domain.Workstation
	for _, ws := range view.ListWorkstations() {
		if ws.Class == class && ws.Active {
			stations = append(stations, ws)
		}
	}
	sort.Slice(stations, func(i, j int) bool { return stations[i].ID < stations[j].ID })
	return stations
}

// earliestFeasibleStart finds the first instant at or after earliest where
// the workstation can take a dur-long item without exceeding capacity or
// touching an open maintenance window. It returns false only when open
// maintenance makes placement impossible.
func earliestFeasibleStart(view domain.TransactionView, ws domain.Workstation, earliest time.Time, dur time.Duration) (time.Time, bool) {
	var busy []domain.ScheduleItem
	for _, item := range view.ListScheduleItems() {
		if item.WorkstationID == ws.ID && item.Status != domain.ScheduleItemCancelled {
			busy = append(busy, item)
		}
	}
	var maintenanceFrom *time.Time
	for _, log := range view.ListMaintenanceLogs() {
		if log.WorkstationID != ws.ID || !log.Open() {
			continue
		}
		start := log.StartTime
		if maintenanceFrom == nil || start.Before(*maintenanceFrom) {
			maintenanceFrom = &start
		}
	}

	candidates := []time.Time{earliest}
	for _, item := range busy {
		if item.PlannedEnd.After(earliest) {
			candidates = append(candidates, item.PlannedEnd)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Before(candidates[j]) })

	capacity := ws.EffectiveCapacity()
	for _, start := range candidates {
		end := start.Add(dur)
		if maintenanceFrom != nil && end.After(*maintenanceFrom) {
			// An open window blocks everything from its start onward, so
			// no later candidate can succeed either.
			return time.Time{}, false
		}
		if fitsCapacity(busy, start, end, capacity) {
			return start, true
		}
	}
	return time.Time{}, false
}

// fitsCapacity reports whether adding an item over [start, end) keeps the
// concurrent item count within the capacity. Concurrency peaks at interval
// starts, so those instants are the only ones checked.
func fitsCapacity(busy []domain.ScheduleItem, start, end time.Time, capacity int) bool {
	instants := []time.Time{start}
	for _, item := range busy {
		if item.PlannedStart.After(start) && item.PlannedStart.Before(end) {
			instants = append(instants, item.PlannedStart)
		}
	}
	for _, at := range instants {
		concurrent := 1 // the candidate itself
		for _, item := range busy {
			if !item.PlannedStart.After(at) && item.PlannedEnd.After(at) {
				concurrent++
			}
		}
		if concurrent > capacity {
			return false
		}
	}
	return true
}

// CheckConflicts inspects a candidate item set, which may include items not
// yet persisted, against itself and the persisted schedule. It mutates
// nothing.
func (s *Service) CheckConflicts(ctx context.Context, candidates []domain.ScheduleItem) ([]domain.ScheduleConflict, error) {
	for i, item := range candidates {
		if !item.PlannedEnd.After(item.PlannedStart) {
			return nil, domain.ValidationError{Field: "planned_end", Reason: fmt.Sprintf("candidate %d ends at or before its start", i)}
		}
	}

	var conflicts []domain.ScheduleConflict
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		labeled := make([]domain.ScheduleItem, len(candidates))
		candidateIDs := make(map[string]struct{})
		for i, item := range candidates {
			if item.ID == "" {
				item.ID = fmt.Sprintf("candidate[%d]", i)
			}
			candidateIDs[item.ID] = struct{}{}
			labeled[i] = item
		}

		combined := append([]domain.ScheduleItem(nil), labeled...)
		for _, item := range view.ListScheduleItems() {
			if item.Status == domain.ScheduleItemCancelled {
				continue
			}
			if _, ok := candidateIDs[item.ID]; ok {
				continue
			}
			combined = append(combined, item)
		}

		for i := 0; i < len(combined); i++ {
			for j := i + 1; j < len(combined); j++ {
				a, b := combined[i], combined[j]
				if a.WorkstationID != b.WorkstationID || !a.Overlaps(b) {
					continue
				}
				_, aCand := candidateIDs[a.ID]
				_, bCand := candidateIDs[b.ID]
				if !aCand && !bCand {
					continue
				}
				conflicts = append(conflicts, domain.ScheduleConflict{
					WorkstationID: a.WorkstationID,
					ItemA:         a.ID,
					ItemB:         b.ID,
				})
			}
		}

		for _, log := range view.ListMaintenanceLogs() {
			if !log.Open() {
				continue
			}
			for _, item := range labeled {
				if item.WorkstationID == log.WorkstationID && item.PlannedEnd.After(log.StartTime) {
					conflicts = append(conflicts, domain.ScheduleConflict{
						WorkstationID: item.WorkstationID,
						ItemA:         item.ID,
						MaintenanceID: log.ID,
					})
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordScheduleConflicts(len(conflicts))
	return conflicts, nil
}

// LockScheduleItem pins an item so shift and regeneration leave it alone.
func (s *Service) LockScheduleItem(ctx context.Context, id string, actor domain.Actor) (domain.ScheduleItem, domain.Result, error) {
	return s.setLocked(ctx, id, true)
}

// UnlockScheduleItem releases a pinned item.
func (s *Service) UnlockScheduleItem(ctx context.Context, id string, actor domain.Actor) (domain.ScheduleItem, domain.Result, error) {
	return s.setLocked(ctx, id, false)
}

func (s *Service) setLocked(ctx context.Context, id string, locked bool) (domain.ScheduleItem, domain.Result, error) {
	var updated domain.ScheduleItem
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.Snapshot().FindScheduleItem(id); !ok {
			return domain.NotFoundError{Entity: domain.EntityScheduleItem, ID: id}
		}
		var err error
		updated, err = tx.UpdateScheduleItem(id, func(i *domain.ScheduleItem) error {
			i.Locked = locked
			return nil
		})
		return err
	})
	return updated, res, err
}

// ShiftSchedule moves every unlocked item of the order by delta, preserving
// relative offsets. The shift is all-or-nothing: any resulting overlap
// rejects the whole operation.
func (s *Service) ShiftSchedule(ctx context.Context, orderID string, delta time.Duration, actor domain.Actor) ([]domain.ScheduleItem, domain.Result, error) {
	ids, err := s.orderWorkstationIDs(ctx, orderID)
	if err != nil {
		return nil, domain.Result{}, err
	}
	release := s.latch.acquire(ids)
	defer release()

	var shifted []domain.ScheduleItem
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.Snapshot().FindOrder(orderID); !ok {
			return domain.NotFoundError{Entity: domain.EntityOrder, ID: orderID}
		}
		for _, item := range tx.Snapshot().ListScheduleItems() {
			if item.OrderID != orderID || item.Locked || item.Status == domain.ScheduleItemCancelled {
				continue
			}
			updated, err := tx.UpdateScheduleItem(item.ID, func(i *domain.ScheduleItem) error {
				i.PlannedStart = i.PlannedStart.Add(delta)
				i.PlannedEnd = i.PlannedEnd.Add(delta)
				return nil
			})
			if err != nil {
				return err
			}
			shifted = append(shifted, updated)
		}
		if violations := detectViolations(tx.Snapshot()); len(violations) > 0 {
			return domain.ConflictError{
				Reason:     fmt.Sprintf("shifting order %s by %s causes schedule conflicts", orderID, delta),
				Violations: violations,
			}
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordScheduleOperation("shift", "error")
		return nil, res, err
	}
	s.metrics.RecordScheduleOperation("shift", "ok")
	return shifted, res, nil
}

// BulkUpdateSchedule applies a set of interval changes atomically. If the
// post-update state violates the no-overlap invariant anywhere, the whole
// batch is rejected with the full violation list.
func (s *Service) BulkUpdateSchedule(ctx context.Context, updates []ScheduleUpdate, actor domain.Actor) ([]domain.ScheduleItem, domain.Result, error) {
	for _, u := range updates {
		if !u.NewEnd.After(u.NewStart) {
			return nil, domain.Result{}, domain.ValidationError{Field: "new_end", Reason: fmt.Sprintf("item %s: interval ends at or before its start", u.ItemID)}
		}
	}
	ids, err := s.updateWorkstationIDs(ctx, updates)
	if err != nil {
		return nil, domain.Result{}, err
	}
	release := s.latch.acquire(ids)
	defer release()

	var applied []domain.ScheduleItem
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, u := range updates {
			if _, ok := tx.Snapshot().FindScheduleItem(u.ItemID); !ok {
				return domain.NotFoundError{Entity: domain.EntityScheduleItem, ID: u.ItemID}
			}
			update := u
			updated, err := tx.UpdateScheduleItem(u.ItemID, func(i *domain.ScheduleItem) error {
				i.PlannedStart = update.NewStart
				i.PlannedEnd = update.NewEnd
				return nil
			})
			if err != nil {
				return err
			}
			applied = append(applied, updated)
		}
		if violations := detectViolations(tx.Snapshot()); len(violations) > 0 {
			return domain.ConflictError{
				Reason:     "bulk update violates the schedule no-overlap invariant",
				Violations: violations,
			}
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordScheduleOperation("bulk_update", "error")
		return nil, res, err
	}
	s.metrics.RecordScheduleOperation("bulk_update", "ok")
	return applied, res, nil
}

// CompleteScheduleItem marks a planned item as executed.
func (s *Service) CompleteScheduleItem(ctx context.Context, id string, actor domain.Actor) (domain.ScheduleItem, domain.Result, error) {
	var updated domain.ScheduleItem
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		current, ok := tx.Snapshot().FindScheduleItem(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityScheduleItem, ID: id}
		}
		if current.Status == domain.ScheduleItemCancelled {
			return domain.ConflictError{Reason: fmt.Sprintf("schedule item %s is cancelled", id)}
		}
		var err error
		updated, err = tx.UpdateScheduleItem(id, func(i *domain.ScheduleItem) error {
			i.Status = domain.ScheduleItemCompleted
			return nil
		})
		return err
	})
	return updated, res, err
}

// CancelScheduleItem removes an item from scheduling consideration without
// deleting the record.
func (s *Service) CancelScheduleItem(ctx context.Context, id string, actor domain.Actor) (domain.ScheduleItem, domain.Result, error) {
	var updated domain.ScheduleItem
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		current, ok := tx.Snapshot().FindScheduleItem(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityScheduleItem, ID: id}
		}
		if current.Status == domain.ScheduleItemCompleted {
			return domain.ConflictError{Reason: fmt.Sprintf("schedule item %s is already completed", id)}
		}
		var err error
		updated, err = tx.UpdateScheduleItem(id, func(i *domain.ScheduleItem) error {
			i.Status = domain.ScheduleItemCancelled
			return nil
		})
		return err
	})
	return updated, res, err
}

// OrderScheduleSummary aggregates the scheduled window for one order.
type OrderScheduleSummary struct {
	OrderID       string     `json:"order_id"`
	Items         int        `json:"items"`
	Locked        int        `json:"locked"`
	Completed     int        `json:"completed"`
	EarliestStart *time.Time `json:"earliest_start,omitempty"`
	LatestEnd     *time.Time `json:"latest_end,omitempty"`
}

// ScheduleSummary reports the planned window and item counts for an order.
// Cancelled items are excluded.
func (s *Service) ScheduleSummary(ctx context.Context, orderID string) (OrderScheduleSummary, error) {
	summary := OrderScheduleSummary{OrderID: orderID}
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		if _, ok := view.FindOrder(orderID); !ok {
			return domain.NotFoundError{Entity: domain.EntityOrder, ID: orderID}
		}
		for _, item := range view.ListScheduleItems() {
			if item.OrderID != orderID || item.Status == domain.ScheduleItemCancelled {
				continue
			}
			summary.Items++
			if item.Locked {
				summary.Locked++
			}
			if item.Status == domain.ScheduleItemCompleted {
				summary.Completed++
			}
			if summary.EarliestStart == nil || item.PlannedStart.Before(*summary.EarliestStart) {
				start := item.PlannedStart
				summary.EarliestStart = &start
			}
			if summary.LatestEnd == nil || item.PlannedEnd.After(*summary.LatestEnd) {
				end := item.PlannedEnd
				summary.LatestEnd = &end
			}
		}
		return nil
	})
	return summary, err
}

// orderWorkstationIDs resolves the workstations currently referenced by an
// order's schedule items.
func (s *Service) orderWorkstationIDs(ctx context.Context, orderID string) ([]string, error) {
	var ids []string
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		for _, item := range view.ListScheduleItems() {
			if item.OrderID == orderID {
				ids = append(ids, item.WorkstationID)
			}
		}
		return nil
	})
	return ids, err
}

// updateWorkstationIDs resolves the workstations touched by a bulk update.
func (s *Service) updateWorkstationIDs(ctx context.Context, updates []ScheduleUpdate) ([]string, error) {
	wanted := make(map[string]struct{}, len(updates))
	for _, u := range updates {
		wanted[u.ItemID] = struct{}{}
	}
	var ids []string
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		for _, item := range view.ListScheduleItems() {
			if _, ok := wanted[item.ID]; ok {
				ids = append(ids, item.WorkstationID)
			}
		}
		return nil
	})
	return ids, err
}

// detectViolations scans the full schedule state for capacity breaches and
// open-maintenance overlaps, returning one conflict per offending pair.
func detectViolations(view domain.TransactionView) []domain.ScheduleConflict {
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

	var conflicts []domain.ScheduleConflict
	seen := make(map[string]struct{})
	for station, items := range byStation {
		limit := capacity[station]
		if limit == 0 {
			limit = 1
		}
		sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
		for i := 0; i < len(items); i++ {
			for j := i + 1; j < len(items); j++ {
				a, b := items[i], items[j]
				if !a.Overlaps(b) {
					continue
				}
				if concurrencyOver(items, a, b) <= limit {
					continue
				}
				key := a.ID + "|" + b.ID
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				conflicts = append(conflicts, domain.ScheduleConflict{
					WorkstationID: station,
					ItemA:         a.ID,
					ItemB:         b.ID,
				})
			}
		}
	}

	for _, log := range view.ListMaintenanceLogs() {
		if !log.Open() {
			continue
		}
		for _, item := range byStation[log.WorkstationID] {
			if item.PlannedEnd.After(log.StartTime) {
				conflicts = append(conflicts, domain.ScheduleConflict{
					WorkstationID: item.WorkstationID,
					ItemA:         item.ID,
					MaintenanceID: log.ID,
				})
			}
		}
	}
	return conflicts
}

// concurrencyOver returns the peak concurrent item count over the
// intersection of a and b on their shared workstation.
func concurrencyOver(items []domain.ScheduleItem, a, b domain.ScheduleItem) int {
	start := a.PlannedStart
	if b.PlannedStart.After(start) {
		start = b.PlannedStart
	}
	end := a.PlannedEnd
	if b.PlannedEnd.Before(end) {
		end = b.PlannedEnd
	}

	instants := []time.Time{start}
	for _, item := range items {
		if item.PlannedStart.After(start) && item.PlannedStart.Before(end) {
			instants = append(instants, item.PlannedStart)
		}
	}
	peak := 0
	for _, at := range instants {
		concurrent := 0
		for _, item := range items {
			if !item.PlannedStart.After(at) && item.PlannedEnd.After(at) {
				concurrent++
			}
		}
		if concurrent > peak {
			peak = concurrent
		}
	}
	return peak
}
