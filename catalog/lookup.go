package catalog

import (
	"context"
	"strings"

	"catalog-service/models"
	"catalog-service/state"

	"go.uber.org/zap"
)

// LoadProductsByIDs makes sure every id has a usable entity and returns the
// known ones in request order. Only ids missing from the store are fetched,
// and concurrent lookups run side by side without cancelling each other.
func (e *Engine) LoadProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	missing := e.store.MissingIDs(ids)
	if len(missing) > 0 {
		done := make(chan error, 1)
		e.lookups.Go(func() { done <- e.fetchByIDs(ctx, missing) })
		if err := <-done; err != nil {
			return e.store.ResolveIDs(ids), err
		}
	}
	return e.store.ResolveIDs(ids), nil
}

func (e *Engine) fetchByIDs(ctx context.Context, ids []string) error {
	e.machine.Start(state.ActionLoadByIDs)
	items, err := e.api.ByIDs(ctx, ids)
	if err != nil {
		opErr := e.operationError(state.ActionLoadByIDs, err)
		opErr.WithContext("ids", strings.Join(ids, ","))
		e.logFailure(opErr, zap.Strings("product_ids", ids))
		e.machine.Fail(state.ActionLoadByIDs, opErr)
		if e.reporter != nil {
			e.reporter.Report(ctx, opErr)
		}
		return opErr
	}
	e.upsert(e.mapper.MapMany(items))
	e.machine.Succeed(state.ActionLoadByIDs)
	return nil
}

// SelectProduct makes id the selected product. A detailed entity already in
// the store is used as is; otherwise the detail is fetched with
// switch-to-latest semantics.
func (e *Engine) SelectProduct(ctx context.Context, id string) (models.Product, error) {
	e.mu.Lock()
	e.selectedID = id
	e.selectedCombinationID = ""
	e.mu.Unlock()

	if p, ok := e.store.GetByID(id); ok && p.Detailed && !p.Degraded {
		e.detailSwitch.Cancel()
		e.selectDefaultCombination(p)
		return p, nil
	}

	ctx, tk := e.detailSwitch.Begin(ctx)
	defer e.detailSwitch.Done(tk)
	e.machine.Start(state.ActionLoadDetail)

	raw, err := e.api.Detail(ctx, id)
	if !e.detailSwitch.Current(tk) {
		e.machine.Abandon(state.ActionLoadDetail)
		return models.Product{}, ErrSuperseded
	}
	if err != nil {
		opErr := e.operationError(state.ActionLoadDetail, err)
		opErr.WithContext("product_id", id)
		e.logFailure(opErr, zap.String("product_id", id))
		e.machine.Fail(state.ActionLoadDetail, opErr)
		return models.Product{}, opErr
	}

	p := e.mapper.MapDetail(&raw)
	if p.ID == "" {
		p.ID = id
	}
	e.store.UpsertOne(p)
	e.machine.Succeed(state.ActionLoadDetail)
	e.selectDefaultCombination(p)
	return p, nil
}

// ClearSelection forgets the selected product and combination.
func (e *Engine) ClearSelection() {
	e.detailSwitch.Cancel()
	e.mu.Lock()
	e.selectedID, e.selectedCombinationID = "", ""
	e.mu.Unlock()
}

func (e *Engine) selectDefaultCombination(p models.Product) {
	c, ok := p.DefaultCombination()
	if !ok {
		return
	}
	e.mu.Lock()
	if e.selectedID == p.ID && e.selectedCombinationID == "" {
		e.selectedCombinationID = c.ID
	}
	e.mu.Unlock()
}

// SelectVariantCombination picks one combination of the selected product.
func (e *Engine) SelectVariantCombination(combinationID string) (models.VariantCombination, error) {
	e.mu.RLock()
	selected := e.selectedID
	e.mu.RUnlock()
	if selected == "" {
		return models.VariantCombination{}, ErrNoSelection
	}
	p, ok := e.store.GetByID(selected)
	if !ok {
		return models.VariantCombination{}, ErrNoSelection
	}
	c, ok := p.Combination(combinationID)
	if !ok {
		return models.VariantCombination{}, ErrUnknownCombination
	}
	e.mu.Lock()
	if e.selectedID == selected {
		e.selectedCombinationID = c.ID
	}
	e.mu.Unlock()
	return c, nil
}
