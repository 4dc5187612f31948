package core

import (
	"context"

	"mescore/pkg/domain"
)

// CreateOrder registers a new production order in pending state.
func (s *Service) CreateOrder(ctx context.Context, order domain.Order, actor domain.Actor) (domain.Order, domain.Result, error) {
	if order.Number == "" {
		return domain.Order{}, domain.Result{}, domain.ValidationError{Field: "number", Reason: "order number is required"}
	}
	if order.PlannedQuantity.IsNegative() {
		return domain.Order{}, domain.Result{}, domain.ValidationError{Field: "planned_quantity", Reason: "planned quantity must not be negative"}
	}
	if order.State == "" {
		order.State = domain.OrderPending
	}
	if order.State != domain.OrderPending {
		return domain.Order{}, domain.Result{}, domain.ValidationError{Field: "state", Reason: "orders start in pending"}
	}
	var created domain.Order
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateOrder(order)
		return err
	})
	return created, res, err
}

// CreateRouting registers a new routing in draft state.
func (s *Service) CreateRouting(ctx context.Context, routing domain.Routing, actor domain.Actor) (domain.Routing, domain.Result, error) {
	if routing.ProductID == "" {
		return domain.Routing{}, domain.Result{}, domain.ValidationError{Field: "product_id", Reason: "product reference is required"}
	}
	for _, op := range routing.Operations {
		if op.DurationSeconds <= 0 {
			return domain.Routing{}, domain.Result{}, domain.ValidationError{Field: "duration_seconds", Reason: "operation duration must be positive"}
		}
		if op.WorkstationClass == "" {
			return domain.Routing{}, domain.Result{}, domain.ValidationError{Field: "workstation_class", Reason: "operation workstation class is required"}
		}
	}
	if routing.State == "" {
		routing.State = domain.RoutingDraft
	}
	var created domain.Routing
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateRouting(routing)
		return err
	})
	return created, res, err
}

// CreateWorkstation registers a schedulable resource.
func (s *Service) CreateWorkstation(ctx context.Context, ws domain.Workstation, actor domain.Actor) (domain.Workstation, domain.Result, error) {
	if ws.Class == "" {
		return domain.Workstation{}, domain.Result{}, domain.ValidationError{Field: "class", Reason: "workstation class is required"}
	}
	var created domain.Workstation
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateWorkstation(ws)
		return err
	})
	return created, res, err
}

// CreateKanbanCard registers an active replenishment card in full state.
func (s *Service) CreateKanbanCard(ctx context.Context, card domain.KanbanCard, actor domain.Actor) (domain.KanbanCard, domain.Result, error) {
	if card.MaterialID == "" {
		return domain.KanbanCard{}, domain.Result{}, domain.ValidationError{Field: "material_id", Reason: "material reference is required"}
	}
	if card.Status == "" {
		card.Status = domain.KanbanFull
	}
	card.Active = true
	var created domain.KanbanCard
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateKanbanCard(card)
		return err
	})
	return created, res, err
}

// CreateNCR opens a non-conformance report in quarantine with a generated
// number.
func (s *Service) CreateNCR(ctx context.Context, ncr domain.NCR, actor domain.Actor) (domain.NCR, domain.Result, error) {
	if ncr.Description == "" {
		return domain.NCR{}, domain.Result{}, domain.ValidationError{Field: "description", Reason: "description is required"}
	}
	var created domain.NCR
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if ncr.OrderID != nil {
			if _, ok := tx.Snapshot().FindOrder(*ncr.OrderID); !ok {
				return domain.NotFoundError{Entity: domain.EntityOrder, ID: *ncr.OrderID}
			}
		}
		if ncr.Number == "" {
			ncr.Number = nextNCRNumber(tx.Snapshot(), s.nowFn())
		}
		ncr.Status = domain.NCRQuarantine
		var err error
		created, err = tx.CreateNCR(ncr)
		return err
	})
	return created, res, err
}

// CreateMaterialStock registers a stock record.
func (s *Service) CreateMaterialStock(ctx context.Context, stock domain.MaterialStock, actor domain.Actor) (domain.MaterialStock, domain.Result, error) {
	if stock.MaterialID == "" {
		return domain.MaterialStock{}, domain.Result{}, domain.ValidationError{Field: "material_id", Reason: "material reference is required"}
	}
	var created domain.MaterialStock
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateMaterialStock(stock)
		return err
	})
	return created, res, err
}

// CreateContainer registers a physical carrier.
func (s *Service) CreateContainer(ctx context.Context, container domain.Container, actor domain.Actor) (domain.Container, domain.Result, error) {
	if container.Code == "" {
		return domain.Container{}, domain.Result{}, domain.ValidationError{Field: "code", Reason: "container code is required"}
	}
	var created domain.Container
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateContainer(container)
		return err
	})
	return created, res, err
}

// AssignRouting attaches a routing to an order. Only pending and accepted
// orders may change their routing.
func (s *Service) AssignRouting(ctx context.Context, orderID, routingID string, actor domain.Actor) (domain.Order, domain.Result, error) {
	var updated domain.Order
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		current, ok := tx.Snapshot().FindOrder(orderID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityOrder, ID: orderID}
		}
		if current.State != domain.OrderPending && current.State != domain.OrderAccepted {
			return domain.ConflictError{Reason: "routing can only change while the order is pending or accepted"}
		}
		if _, ok := tx.Snapshot().FindRouting(routingID); !ok {
			return domain.NotFoundError{Entity: domain.EntityRouting, ID: routingID}
		}
		var err error
		updated, err = tx.UpdateOrder(orderID, func(o *domain.Order) error {
			id := routingID
			o.RoutingID = &id
			return nil
		})
		return err
	})
	return updated, res, err
}

// DeleteOrder removes an order and cascades its schedule items. The store
// refuses deletion while quality checks or audit records reference it.
func (s *Service) DeleteOrder(ctx context.Context, id string, actor domain.Actor) (domain.Result, error) {
	return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.Snapshot().FindOrder(id); !ok {
			return domain.NotFoundError{Entity: domain.EntityOrder, ID: id}
		}
		return tx.DeleteOrder(id)
	})
}

// DeleteRouting removes a routing. The commit-time reference rule rejects
// the deletion while any non-terminal order still uses it.
func (s *Service) DeleteRouting(ctx context.Context, id string, actor domain.Actor) (domain.Result, error) {
	return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.Snapshot().FindRouting(id); !ok {
			return domain.NotFoundError{Entity: domain.EntityRouting, ID: id}
		}
		return tx.DeleteRouting(id)
	})
}
