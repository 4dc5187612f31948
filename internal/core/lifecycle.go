package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mescore/pkg/domain"
)

func actorLabel(actor domain.Actor) string {
	if actor.Name != "" {
		return actor.Name
	}
	return actor.ID
}

// TransitionOrder applies one lifecycle edge to a production order and
// records the transition in the order's audit trail.
func (s *Service) TransitionOrder(ctx context.Context, id string, target domain.OrderState, actor domain.Actor) (domain.Order, domain.Result, error) {
	if !domain.ValidOrderState(target) {
		return domain.Order{}, domain.Result{}, domain.ValidationError{Field: "state", Reason: fmt.Sprintf("unknown order state %q", target)}
	}
	var updated domain.Order
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		current, ok := tx.Snapshot().FindOrder(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityOrder, ID: id}
		}
		if !domain.CanTransitionOrder(current.State, target) {
			s.metrics.RecordTransitionRejected(string(domain.EntityOrder))
			return domain.IllegalTransitionError{
				Entity:  domain.EntityOrder,
				ID:      id,
				From:    string(current.State),
				To:      string(target),
				Allowed: domain.AllowedOrderTargets(current.State),
			}
		}
		if target == domain.OrderCompleted {
			for _, item := range tx.Snapshot().ListScheduleItems() {
				if item.OrderID != id {
					continue
				}
				if item.Status != domain.ScheduleItemCompleted && item.Status != domain.ScheduleItemCancelled {
					return domain.ConflictError{Reason: fmt.Sprintf("order %s has unfinished schedule item %s", id, item.ID)}
				}
			}
		}
		now := s.nowFn()
		var err error
		updated, err = tx.UpdateOrder(id, func(o *domain.Order) error {
			o.State = target
			switch target {
			case domain.OrderInProgress:
				if o.StartDate == nil {
					start := now
					o.StartDate = &start
				}
			case domain.OrderCompleted:
				finish := now
				o.FinishDate = &finish
			}
			return nil
		})
		if err != nil {
			return err
		}
		_, err = tx.AppendOrderStateChange(domain.OrderStateChange{
			OrderID:     id,
			SourceState: current.State,
			TargetState: target,
			Actor:       actorLabel(actor),
			OccurredAt:  now,
		})
		return err
	})
	if err != nil {
		return domain.Order{}, res, err
	}
	s.metrics.RecordTransition(string(domain.EntityOrder), string(target))
	s.log.WithOrderID(id).WithField("target", target).Info("order transitioned")
	return updated, res, nil
}

// OrderHistory returns the state-change audit trail for one order, oldest
// first.
func (s *Service) OrderHistory(ctx context.Context, orderID string) ([]domain.OrderStateChange, error) {
	var history []domain.OrderStateChange
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		if _, ok := view.FindOrder(orderID); !ok {
			return domain.NotFoundError{Entity: domain.EntityOrder, ID: orderID}
		}
		for _, change := range view.ListOrderStateChanges() {
			if change.OrderID == orderID {
				history = append(history, change)
			}
		}
		return nil
	})
	return history, err
}

// TransitionRouting applies one lifecycle edge to a routing.
func (s *Service) TransitionRouting(ctx context.Context, id string, target domain.RoutingState, actor domain.Actor) (domain.Routing, domain.Result, error) {
	if !domain.ValidRoutingState(target) {
		return domain.Routing{}, domain.Result{}, domain.ValidationError{Field: "state", Reason: fmt.Sprintf("unknown routing state %q", target)}
	}
	var updated domain.Routing
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		current, ok := tx.Snapshot().FindRouting(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityRouting, ID: id}
		}
		if !domain.CanTransitionRouting(current.State, target) {
			s.metrics.RecordTransitionRejected(string(domain.EntityRouting))
			return domain.IllegalTransitionError{
				Entity:  domain.EntityRouting,
				ID:      id,
				From:    string(current.State),
				To:      string(target),
				Allowed: domain.AllowedRoutingTargets(current.State),
			}
		}
		var err error
		updated, err = tx.UpdateRouting(id, func(r *domain.Routing) error {
			r.State = target
			if target == domain.RoutingDeclined || target == domain.RoutingOutdated {
				r.Master = false
			}
			return nil
		})
		return err
	})
	if err != nil {
		return domain.Routing{}, res, err
	}
	s.metrics.RecordTransition(string(domain.EntityRouting), string(target))
	return updated, res, nil
}

// TransitionNCR applies one lifecycle edge to a non-conformance report.
// Closing requires a disposition to have been set.
func (s *Service) TransitionNCR(ctx context.Context, id string, target domain.NCRStatus, actor domain.Actor) (domain.NCR, domain.Result, error) {
	if !domain.ValidNCRStatus(target) {
		return domain.NCR{}, domain.Result{}, domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown ncr status %q", target)}
	}
	var updated domain.NCR
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		current, ok := tx.Snapshot().FindNCR(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityNCR, ID: id}
		}
		if !domain.CanTransitionNCR(current.Status, target) {
			s.metrics.RecordTransitionRejected(string(domain.EntityNCR))
			return domain.IllegalTransitionError{
				Entity:  domain.EntityNCR,
				ID:      id,
				From:    string(current.Status),
				To:      string(target),
				Allowed: domain.AllowedNCRTargets(current.Status),
			}
		}
		if target == domain.NCRClosed && current.Disposition == nil {
			return domain.ValidationError{Field: "disposition", Reason: "ncr cannot close without a disposition"}
		}
		var err error
		updated, err = tx.UpdateNCR(id, func(n *domain.NCR) error {
			n.Status = target
			return nil
		})
		return err
	})
	if err != nil {
		return domain.NCR{}, res, err
	}
	s.metrics.RecordTransition(string(domain.EntityNCR), string(target))
	return updated, res, nil
}

// SetNCRDisposition records the resolution classification on an open NCR.
func (s *Service) SetNCRDisposition(ctx context.Context, id string, disposition domain.Disposition, actor domain.Actor) (domain.NCR, domain.Result, error) {
	if !domain.ValidDisposition(disposition) {
		return domain.NCR{}, domain.Result{}, domain.ValidationError{Field: "disposition", Reason: fmt.Sprintf("unknown disposition %q", disposition)}
	}
	var updated domain.NCR
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		current, ok := tx.Snapshot().FindNCR(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityNCR, ID: id}
		}
		if current.Status == domain.NCRClosed {
			return domain.ValidationError{Field: "status", Reason: "disposition is immutable once the ncr is closed"}
		}
		var err error
		updated, err = tx.UpdateNCR(id, func(n *domain.NCR) error {
			d := disposition
			n.Disposition = &d
			return nil
		})
		return err
	})
	return updated, res, err
}

// TransitionKanban applies one replenishment-cycle edge to a kanban card.
func (s *Service) TransitionKanban(ctx context.Context, id string, target domain.KanbanStatus, actor domain.Actor) (domain.KanbanCard, domain.Result, error) {
	if !domain.ValidKanbanStatus(target) {
		return domain.KanbanCard{}, domain.Result{}, domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown kanban status %q", target)}
	}
	var updated domain.KanbanCard
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		current, ok := tx.Snapshot().FindKanbanCard(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityKanbanCard, ID: id}
		}
		if !current.Active {
			return domain.ValidationError{Field: "active", Reason: "kanban card is deactivated"}
		}
		if !domain.CanTransitionKanban(current.Status, target) {
			s.metrics.RecordTransitionRejected(string(domain.EntityKanbanCard))
			return domain.IllegalTransitionError{
				Entity:  domain.EntityKanbanCard,
				ID:      id,
				From:    string(current.Status),
				To:      string(target),
				Allowed: domain.AllowedKanbanTargets(current.Status),
			}
		}
		var err error
		updated, err = tx.UpdateKanbanCard(id, func(k *domain.KanbanCard) error {
			k.Status = target
			if target == domain.KanbanFull {
				replenished := s.nowFn()
				k.LastReplenished = &replenished
			}
			return nil
		})
		return err
	})
	if err != nil {
		return domain.KanbanCard{}, res, err
	}
	s.metrics.RecordTransition(string(domain.EntityKanbanCard), string(target))
	return updated, res, nil
}

// MarkKanbanEmpty signals a consumed card. With autoTrigger the card moves
// straight to replenishing, otherwise it parks in empty until triggered.
func (s *Service) MarkKanbanEmpty(ctx context.Context, id string, autoTrigger bool, actor domain.Actor) (domain.KanbanCard, domain.Result, error) {
	target := domain.KanbanEmpty
	if autoTrigger {
		target = domain.KanbanReplenishing
	}
	return s.TransitionKanban(ctx, id, target, actor)
}

// TriggerKanbanReplenishment starts the replenishment leg of the cycle.
func (s *Service) TriggerKanbanReplenishment(ctx context.Context, id string, actor domain.Actor) (domain.KanbanCard, domain.Result, error) {
	return s.TransitionKanban(ctx, id, domain.KanbanReplenishing, actor)
}

// CompleteKanbanReplenishment returns a replenishing card to full and stamps
// the replenishment time.
func (s *Service) CompleteKanbanReplenishment(ctx context.Context, id string, actor domain.Actor) (domain.KanbanCard, domain.Result, error) {
	return s.TransitionKanban(ctx, id, domain.KanbanFull, actor)
}

// DeactivateKanbanCard retires a card from the replenishment cycle without
// deleting its history.
func (s *Service) DeactivateKanbanCard(ctx context.Context, id string, actor domain.Actor) (domain.KanbanCard, domain.Result, error) {
	var updated domain.KanbanCard
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.Snapshot().FindKanbanCard(id); !ok {
			return domain.NotFoundError{Entity: domain.EntityKanbanCard, ID: id}
		}
		var err error
		updated, err = tx.UpdateKanbanCard(id, func(k *domain.KanbanCard) error {
			k.Active = false
			return nil
		})
		return err
	})
	return updated, res, err
}

// StartMaintenance opens a maintenance log on a workstation. The open log
// blocks scheduling on that workstation until completed.
func (s *Service) StartMaintenance(ctx context.Context, workstationID string, mtype domain.MaintenanceType, description string, actor domain.Actor) (domain.MaintenanceLog, domain.Result, error) {
	if !domain.ValidMaintenanceType(mtype) {
		return domain.MaintenanceLog{}, domain.Result{}, domain.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown maintenance type %q", mtype)}
	}
	var created domain.MaintenanceLog
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.Snapshot().FindWorkstation(workstationID); !ok {
			return domain.NotFoundError{Entity: domain.EntityWorkstation, ID: workstationID}
		}
		var err error
		created, err = tx.CreateMaintenanceLog(domain.MaintenanceLog{
			WorkstationID: workstationID,
			Type:          mtype,
			Description:   description,
			StartTime:     s.nowFn(),
			Technician:    actorLabel(actor),
		})
		return err
	})
	if err != nil {
		return domain.MaintenanceLog{}, res, err
	}
	s.log.WithWorkstationID(workstationID).WithField("type", mtype).Info("maintenance started")
	return created, res, nil
}

// CompleteMaintenance closes an open maintenance log. A zero endTime means
// now. Closed logs cannot be re-opened or re-closed.
func (s *Service) CompleteMaintenance(ctx context.Context, logID string, endTime time.Time, actor domain.Actor) (domain.MaintenanceLog, domain.Result, error) {
	var updated domain.MaintenanceLog
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		current, ok := tx.Snapshot().FindMaintenanceLog(logID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityMaintenanceLog, ID: logID}
		}
		if !current.Open() {
			return domain.ConflictError{Reason: fmt.Sprintf("maintenance log %s is already closed", logID)}
		}
		end := endTime
		if end.IsZero() {
			end = s.nowFn()
		}
		if !end.After(current.StartTime) {
			return domain.ValidationError{Field: "end_time", Reason: "end time must be after start time"}
		}
		var err error
		updated, err = tx.UpdateMaintenanceLog(logID, func(m *domain.MaintenanceLog) error {
			m.EndTime = &end
			return nil
		})
		return err
	})
	return updated, res, err
}

// SetMasterRouting atomically designates the routing as the master process
// plan for its product, clearing the flag from any other routing of the same
// product in the same transaction.
func (s *Service) SetMasterRouting(ctx context.Context, routingID string, actor domain.Actor) (domain.Routing, domain.Result, error) {
	var updated domain.Routing
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		target, ok := tx.Snapshot().FindRouting(routingID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityRouting, ID: routingID}
		}
		for _, other := range tx.Snapshot().ListRoutings() {
			if other.ID == routingID || other.ProductID != target.ProductID || !other.Master {
				continue
			}
			if _, err := tx.UpdateRouting(other.ID, func(r *domain.Routing) error {
				r.Master = false
				return nil
			}); err != nil {
				return err
			}
		}
		var err error
		updated, err = tx.UpdateRouting(routingID, func(r *domain.Routing) error {
			r.Master = true
			return nil
		})
		return err
	})
	return updated, res, err
}

// RecordQualityCheck stores an inspection result for an order. Variable
// checks are evaluated against their nominal tolerance band; a failed
// mandatory check opens an NCR in quarantine within the same transaction
// and links it to the check.
func (s *Service) RecordQualityCheck(ctx context.Context, check domain.QualityCheck, actor domain.Actor) (domain.QualityCheck, domain.Result, error) {
	if check.Parameter == "" {
		return domain.QualityCheck{}, domain.Result{}, domain.ValidationError{Field: "parameter", Reason: "parameter is required"}
	}
	if check.CheckType == domain.QualityCheckVariable {
		if check.MeasuredValue == nil || check.Nominal == nil || check.Tolerance == nil {
			return domain.QualityCheck{}, domain.Result{}, domain.ValidationError{
				Field:  "measured_value",
				Reason: "variable checks need measured value, nominal and tolerance",
			}
		}
		check.Passed = check.WithinTolerance()
		if check.ResultValue == "" {
			check.ResultValue = strconv.FormatFloat(*check.MeasuredValue, 'g', -1, 64)
		}
	}
	var created domain.QualityCheck
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.Snapshot().FindOrder(check.OrderID); !ok {
			return domain.NotFoundError{Entity: domain.EntityOrder, ID: check.OrderID}
		}
		if check.Inspector == "" {
			check.Inspector = actorLabel(actor)
		}
		if !check.Passed && check.Mandatory {
			orderID := check.OrderID
			ncr, err := tx.CreateNCR(domain.NCR{
				Number:      nextNCRNumber(tx.Snapshot(), s.nowFn()),
				OrderID:     &orderID,
				Description: fmt.Sprintf("failed mandatory check %q: %s", check.Parameter, check.ResultValue),
				Status:      domain.NCRQuarantine,
			})
			if err != nil {
				return err
			}
			check.NCRID = &ncr.ID
		}
		var err error
		created, err = tx.CreateQualityCheck(check)
		return err
	})
	return created, res, err
}

// nextNCRNumber builds the next NCR-YYYYMMDD-NNNN number for the given day.
func nextNCRNumber(view domain.TransactionView, now time.Time) string {
	prefix := "NCR-" + now.Format("20060102") + "-"
	highest := 0
	for _, ncr := range view.ListNCRs() {
		rest, ok := strings.CutPrefix(ncr.Number, prefix)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%04d", prefix, highest+1)
}
