package catalog

import (
	"context"
	"strings"

	"catalog-service/models"
	"catalog-service/state"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	createKey     = "create"
	bulkDeleteKey = "bulk-delete"
)

func productKey(id string) string { return "product:" + id }

// submit runs fn under the exhaust key and the submit operation class.
func (e *Engine) submit(ctx context.Context, key string, action state.Action, fn func(context.Context) error) error {
	release, ok := e.submits.TryAcquire(key)
	if !ok {
		e.log.Debug("Dropped duplicate submission", zap.String("operation", string(action)), zap.String("key", key))
		return ErrDuplicateSubmission
	}
	defer release()

	e.machine.Start(action)
	if err := fn(ctx); err != nil {
		opErr := e.operationError(action, err)
		e.logFailure(opErr, zap.String("key", key))
		e.machine.Fail(action, opErr)
		return opErr
	}
	e.machine.Succeed(action)
	return nil
}

// CreateProduct creates a product and stores the confirmed record.
func (e *Engine) CreateProduct(ctx context.Context, in models.ProductInput) (models.Product, error) {
	if strings.TrimSpace(in.Name) == "" {
		return models.Product{}, ErrEmptySubmission
	}
	var created models.Product
	err := e.submit(ctx, createKey, state.ActionCreate, func(ctx context.Context) error {
		raw, err := e.api.Create(ctx, in)
		if err != nil {
			return err
		}
		created = e.mapper.MapDetail(&raw)
		e.store.UpsertOne(created)
		return nil
	})
	if err != nil {
		return models.Product{}, err
	}
	e.query.Invalidate()
	e.publish(ctx, models.ChangeUpserted, []string{created.ID})
	return created, nil
}

// UpdateProduct replaces a product and stores the confirmed record.
func (e *Engine) UpdateProduct(ctx context.Context, id string, in models.ProductInput) (models.Product, error) {
	if id == "" || strings.TrimSpace(in.Name) == "" {
		return models.Product{}, ErrEmptySubmission
	}
	var updated models.Product
	err := e.submit(ctx, productKey(id), state.ActionUpdate, func(ctx context.Context) error {
		raw, err := e.api.Update(ctx, id, in)
		if err != nil {
			return err
		}
		updated = e.mapper.MapDetail(&raw)
		if updated.ID == "" {
			updated.ID = id
		}
		e.store.UpsertOne(updated)
		return nil
	})
	if err != nil {
		return models.Product{}, err
	}
	e.publish(ctx, models.ChangeUpserted, []string{id})
	return updated, nil
}

// DeleteProduct deletes a product and removes it from every list.
func (e *Engine) DeleteProduct(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptySubmission
	}
	err := e.submit(ctx, productKey(id), state.ActionDelete, func(ctx context.Context) error {
		return e.api.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	e.forget([]string{id})
	e.publish(ctx, models.ChangeDeleted, []string{id})
	return nil
}

// BulkDeleteProducts deletes several products and returns the ids the
// catalog confirmed.
func (e *Engine) BulkDeleteProducts(ctx context.Context, ids []string) ([]string, error) {
	ids = compactIDs(ids)
	if len(ids) == 0 {
		return nil, ErrEmptySubmission
	}
	var deleted []string
	err := e.submit(ctx, bulkDeleteKey, state.ActionBulkDelete, func(ctx context.Context) error {
		var err error
		deleted, err = e.api.BulkDelete(ctx, ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.forget(deleted)
	e.publish(ctx, models.ChangeDeleted, deleted)
	return deleted, nil
}

// forget drops deleted products from the store and the selection.
func (e *Engine) forget(ids []string) {
	e.store.RemoveMany(ids)
	e.mu.Lock()
	for _, id := range ids {
		if e.selectedID == id {
			e.selectedID, e.selectedCombinationID = "", ""
		}
	}
	e.mu.Unlock()
}

func (e *Engine) publish(ctx context.Context, kind models.ChangeKind, ids []string) {
	if e.publisher == nil || len(ids) == 0 {
		return
	}
	ev := models.ChangeEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		ProductIDs: ids,
		Origin:     e.cfg.Origin,
		OccurredAt: e.now().UTC(),
	}
	e.rememberEvent(ev.ID)
	if err := e.publisher.PublishChange(ctx, ev); err != nil {
		e.log.Warn("Failed to publish catalog change", zap.Error(err), zap.String("kind", string(kind)), zap.Strings("product_ids", ids))
	}
}

func compactIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
