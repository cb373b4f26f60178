package catalog

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"catalog-service/dispatch"
	"catalog-service/models"
	"catalog-service/query"
	"catalog-service/state"
	"catalog-service/store"

	"go.uber.org/zap"
)

// OpenPage resets the filters to their defaults plus overrides and loads page 1.
func (e *Engine) OpenPage(ctx context.Context, overrides query.Patch) error {
	return e.runList(ctx, e.query.PageOpened(overrides))
}

// UpdateFilters merges patch into the current filters and reloads page 1.
func (e *Engine) UpdateFilters(ctx context.Context, patch query.Patch) error {
	return e.runList(ctx, e.query.FiltersUpdated(patch))
}

// Refresh reloads page 1 with the current filters.
func (e *Engine) Refresh(ctx context.Context) error {
	return e.runList(ctx, e.query.DataRefreshed())
}

// LoadNextPage appends the next page. It does nothing while the list is
// loading or when every page is shown.
func (e *Engine) LoadNextPage(ctx context.Context) error {
	req, ok := e.query.NextPageLoaded()
	if !ok {
		return nil
	}
	return e.runList(ctx, req)
}

// EnsureFresh refreshes the list only when it is stale.
func (e *Engine) EnsureFresh(ctx context.Context) error {
	if !e.query.Stale(e.cfg.CacheTimeout) || e.query.Snapshot().Pending {
		return nil
	}
	return e.Refresh(ctx)
}

// runList fetches req with switch-to-latest semantics: a newer list request
// cancels this one and its result is dropped. The query controller's sequence
// is the only authority on which request is newest.
func (e *Engine) runList(ctx context.Context, req query.Request) error {
	ctx, cancel := e.query.Bind(ctx, req)
	defer cancel()

	page, err := e.api.List(ctx, req.Filters.Params())
	if !e.query.Current(req) {
		e.query.Abandon(req)
		e.log.Debug("Dropped superseded list response", zap.Uint64("seq", req.Seq))
		return ErrSuperseded
	}
	if err != nil {
		opErr := e.operationError(state.ActionLoadProducts, err)
		e.logFailure(opErr, zap.Int("page", req.Filters.Page))
		e.query.ApplyFailure(req, opErr)
		return opErr
	}

	products, meta := e.mapper.MapListPage(page)
	ids := e.upsert(products)
	if !e.query.ApplySuccess(req, ids, meta.Total, meta.TotalPages) {
		return ErrSuperseded
	}
	return nil
}

// LoadFeatured replaces the featured list.
func (e *Engine) LoadFeatured(ctx context.Context, limit int) error {
	params := url.Values{"isFeatured": {"true"}}
	return e.runSideList(ctx, &e.featuredSwitch, state.ActionLoadFeatured, store.ViewFeatured, params, limit)
}

// LoadRecommended replaces the recommended list, optionally relative to one
// product.
func (e *Engine) LoadRecommended(ctx context.Context, productID string, limit int) error {
	params := url.Values{"recommended": {"true"}}
	if productID != "" {
		params.Set("relatedTo", productID)
	}
	return e.runSideList(ctx, &e.recommendedSwitch, state.ActionLoadRecommended, store.ViewRecommended, params, limit)
}

func (e *Engine) runSideList(ctx context.Context, sw *dispatch.Switcher, action state.Action, view store.View, params url.Values, limit int) error {
	if limit <= 0 {
		limit = DefaultFeaturedSize
	}
	params.Set("page", "1")
	params.Set("perPage", strconv.Itoa(limit))

	ctx, tk := sw.Begin(ctx)
	defer sw.Done(tk)
	e.machine.Start(action)

	page, err := e.api.List(ctx, params)
	if !sw.Current(tk) {
		e.machine.Abandon(action)
		return ErrSuperseded
	}
	if err != nil {
		opErr := e.operationError(action, err)
		e.logFailure(opErr)
		e.machine.Fail(action, opErr)
		return opErr
	}
	products, _ := e.mapper.MapListPage(page)
	e.store.SetList(view, e.upsert(products))
	e.machine.Succeed(action)
	return nil
}

// Search runs a free-text query and replaces the search results. An empty
// query clears them without a call.
func (e *Engine) Search(ctx context.Context, term string, filters map[string]string) error {
	term = strings.TrimSpace(term)
	if term == "" {
		e.searchSwitch.Cancel()
		e.mu.Lock()
		e.searchQuery, e.searchTotal = "", 0
		e.mu.Unlock()
		e.store.ClearList(store.ViewSearch)
		return nil
	}

	ctx, tk := e.searchSwitch.Begin(ctx)
	defer e.searchSwitch.Done(tk)
	e.machine.Start(state.ActionSearch)
	e.mu.Lock()
	e.searchQuery = term
	e.mu.Unlock()

	params := url.Values{query.ParamPage: {"1"}, query.ParamPerPage: {strconv.Itoa(e.cfg.PageSize)}}
	for k, v := range filters {
		if v != "" && !query.IsReserved(k) {
			params.Set(k, v)
		}
	}
	page, err := e.api.Search(ctx, term, params)
	if !e.searchSwitch.Current(tk) {
		e.machine.Abandon(state.ActionSearch)
		return ErrSuperseded
	}
	if err != nil {
		opErr := e.operationError(state.ActionSearch, err)
		e.logFailure(opErr, zap.String("query", term))
		e.machine.Fail(state.ActionSearch, opErr)
		return opErr
	}
	products, meta := e.mapper.MapListPage(page)
	e.store.SetList(store.ViewSearch, e.upsert(products))
	e.mu.Lock()
	e.searchTotal = meta.Total
	e.mu.Unlock()
	e.machine.Succeed(state.ActionSearch)
	return nil
}

// LoadFilterDefinitions fetches the filters the catalog accepts. A second
// call while one is in flight is dropped.
func (e *Engine) LoadFilterDefinitions(ctx context.Context) error {
	release, ok := e.filterLoads.TryAcquire("filters")
	if !ok {
		return nil
	}
	defer release()
	e.machine.Start(state.ActionLoadFilters)

	defs, err := e.api.AvailableFilters(ctx)
	if err != nil {
		opErr := e.operationError(state.ActionLoadFilters, err)
		e.logFailure(opErr)
		e.machine.Fail(state.ActionLoadFilters, opErr)
		return opErr
	}
	if defs == nil {
		defs = []models.FilterDefinition{}
	}
	e.mu.Lock()
	e.filterDefinitions = defs
	e.mu.Unlock()
	e.machine.Succeed(state.ActionLoadFilters)
	return nil
}
