package core

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"mescore/pkg/domain"
)

// AdjustStock adds delta (positive or negative) to a stock record's
// quantity. A resulting negative quantity is rejected as a data error rather
// than stored.
func (s *Service) AdjustStock(ctx context.Context, stockID string, delta decimal.Decimal, actor domain.Actor) (domain.MaterialStock, domain.Result, error) {
	var updated domain.MaterialStock
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		current, ok := tx.Snapshot().FindMaterialStock(stockID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityMaterialStock, ID: stockID}
		}
		next := current.Quantity.Add(delta)
		if next.IsNegative() {
			return domain.ValidationError{Field: "quantity", Reason: fmt.Sprintf("adjustment would drive stock %s negative (%s)", stockID, next)}
		}
		var err error
		updated, err = tx.UpdateMaterialStock(stockID, func(st *domain.MaterialStock) error {
			st.Quantity = next
			return nil
		})
		return err
	})
	return updated, res, err
}

// TransferStock moves a quantity from one stock record to a location,
// creating the destination record when it does not exist yet. Both legs
// happen in one transaction.
func (s *Service) TransferStock(ctx context.Context, stockID, locationType, locationName string, quantity decimal.Decimal, actor domain.Actor) (domain.MaterialStock, domain.Result, error) {
	if !quantity.IsPositive() {
		return domain.MaterialStock{}, domain.Result{}, domain.ValidationError{Field: "quantity", Reason: "transfer quantity must be positive"}
	}
	var destination domain.MaterialStock
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		source, ok := tx.Snapshot().FindMaterialStock(stockID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityMaterialStock, ID: stockID}
		}
		if source.Quantity.LessThan(quantity) {
			return domain.ValidationError{Field: "quantity", Reason: fmt.Sprintf("stock %s holds %s, cannot transfer %s", stockID, source.Quantity, quantity)}
		}
		if _, err := tx.UpdateMaterialStock(stockID, func(st *domain.MaterialStock) error {
			st.Quantity = st.Quantity.Sub(quantity)
			return nil
		}); err != nil {
			return err
		}

		for _, candidate := range tx.Snapshot().ListMaterialStocks() {
			if candidate.MaterialID == source.MaterialID &&
				candidate.LocationType == locationType &&
				candidate.LocationName == locationName &&
				candidate.BatchNumber == source.BatchNumber {
				var err error
				destination, err = tx.UpdateMaterialStock(candidate.ID, func(st *domain.MaterialStock) error {
					st.Quantity = st.Quantity.Add(quantity)
					return nil
				})
				return err
			}
		}
		var err error
		destination, err = tx.CreateMaterialStock(domain.MaterialStock{
			MaterialID:   source.MaterialID,
			LocationType: locationType,
			LocationName: locationName,
			Quantity:     quantity,
			BatchNumber:  source.BatchNumber,
		})
		return err
	})
	return destination, res, err
}

// FillContainer loads material into a container. Mixing materials in one
// container is rejected.
func (s *Service) FillContainer(ctx context.Context, containerID, materialID string, quantity decimal.Decimal, actor domain.Actor) (domain.Container, domain.Result, error) {
	if !quantity.IsPositive() {
		return domain.Container{}, domain.Result{}, domain.ValidationError{Field: "quantity", Reason: "fill quantity must be positive"}
	}
	var updated domain.Container
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		current, ok := tx.Snapshot().FindContainer(containerID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityContainer, ID: containerID}
		}
		if current.MaterialID != nil && *current.MaterialID != materialID && !current.Empty() {
			return domain.ValidationError{Field: "material_id", Reason: fmt.Sprintf("container %s already holds material %s", containerID, *current.MaterialID)}
		}
		var err error
		updated, err = tx.UpdateContainer(containerID, func(c *domain.Container) error {
			material := materialID
			c.MaterialID = &material
			c.Quantity = c.Quantity.Add(quantity)
			return nil
		})
		return err
	})
	return updated, res, err
}

// EmptyContainer removes all material from a container.
func (s *Service) EmptyContainer(ctx context.Context, containerID string, actor domain.Actor) (domain.Container, domain.Result, error) {
	var updated domain.Container
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.Snapshot().FindContainer(containerID); !ok {
			return domain.NotFoundError{Entity: domain.EntityContainer, ID: containerID}
		}
		var err error
		updated, err = tx.UpdateContainer(containerID, func(c *domain.Container) error {
			c.MaterialID = nil
			c.Quantity = decimal.Zero
			return nil
		})
		return err
	})
	return updated, res, err
}

// MoveContainer relocates a container.
func (s *Service) MoveContainer(ctx context.Context, containerID, location string, actor domain.Actor) (domain.Container, domain.Result, error) {
	if location == "" {
		return domain.Container{}, domain.Result{}, domain.ValidationError{Field: "location", Reason: "location is required"}
	}
	var updated domain.Container
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.Snapshot().FindContainer(containerID); !ok {
			return domain.NotFoundError{Entity: domain.EntityContainer, ID: containerID}
		}
		var err error
		updated, err = tx.UpdateContainer(containerID, func(c *domain.Container) error {
			c.Location = location
			return nil
		})
		return err
	})
	return updated, res, err
}
