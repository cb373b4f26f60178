// Package query owns the filters, pagination and list-loading transitions of
// the primary product list.
package query

import (
	"context"
	"sync"
	"time"

	"catalog-service/errors"
	"catalog-service/state"
	"catalog-service/store"
)

// ListSink receives the ids of the current page.
type ListSink interface {
	SetList(view store.View, ids []string)
	AppendList(view store.View, ids []string)
	ClearList(view store.View)
}

// Tracker records loading transitions. *state.Machine satisfies it.
type Tracker interface {
	Start(a state.Action) state.OpClass
	Succeed(a state.Action)
	Fail(a state.Action, err *errors.OperationError)
	Abandon(a state.Action)
}

// Request is one fetch of the primary list. Only the most recent request may
// change the list.
type Request struct {
	Seq     uint64
	Filters Filters
}

// Append reports whether the result extends the list rather than replacing it.
func (r Request) Append() bool {
	return r.Filters.Page > 1
}

// Snapshot is a read-only view of the controller.
type Snapshot struct {
	Filters     Filters
	Total       int64
	TotalPages  int
	LastFetched time.Time
	Pending     bool
}

// HasMore reports whether another page exists after the current one.
func (s Snapshot) HasMore() bool {
	return s.Filters.Page < s.TotalPages
}

type Controller struct {
	mu          sync.Mutex
	defaults    Filters
	filters     Filters
	total       int64
	totalPages  int
	lastFetched time.Time
	seq         uint64
	pending     *Request
	prevPage    int
	// cancel aborts the fetch bound to the latest request.
	cancel context.CancelFunc

	sink    ListSink
	tracker Tracker
	now     func() time.Time
}

func NewController(pageSize int, sink ListSink, tracker Tracker) *Controller {
	defaults := DefaultFilters(pageSize)
	return &Controller{
		defaults: defaults,
		filters:  defaults.clone(),
		sink:     sink,
		tracker:  tracker,
		now:      time.Now,
	}
}

// UseClock replaces the time source used for fetch timestamps.
func (c *Controller) UseClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// PageOpened resets the filters to their defaults plus overrides and starts
// loading page 1.
func (c *Controller) PageOpened(overrides Patch) Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = c.defaults.apply(overrides)
	return c.restartLocked()
}

// FiltersUpdated merges patch into the current filters and starts loading
// page 1.
func (c *Controller) FiltersUpdated(patch Patch) Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = c.filters.apply(patch)
	return c.restartLocked()
}

// DataRefreshed reloads page 1 with unchanged filters.
func (c *Controller) DataRefreshed() Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restartLocked()
}

func (c *Controller) restartLocked() Request {
	c.filters.Page = 1
	c.sink.ClearList(store.ViewCurrentPage)
	return c.beginLocked()
}

// NextPageLoaded advances one page. It is a no-op while a list request is
// pending or when the last page is already shown.
func (c *Controller) NextPageLoaded() (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil || c.filters.Page >= c.totalPages {
		return Request{}, false
	}
	c.prevPage = c.filters.Page
	c.filters.Page++
	return c.beginLocked(), true
}

func (c *Controller) beginLocked() Request {
	c.cancelLocked()
	c.seq++
	req := Request{Seq: c.seq, Filters: c.filters.clone()}
	c.pending = &req
	c.tracker.Start(state.ActionLoadProducts)
	return req
}

// Bind derives the context req's fetch runs under. Starting a newer request
// cancels it, and a request that is already superseded gets a cancelled
// context, so sequence order alone decides which fetch survives.
func (c *Controller) Bind(parent context.Context, req Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	c.mu.Lock()
	defer c.mu.Unlock()
	if req.Seq != c.seq {
		cancel()
		return ctx, cancel
	}
	c.cancelLocked()
	c.cancel = cancel
	return ctx, cancel
}

// Cancel aborts the fetch bound to the latest request, if any.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.cancelLocked()
	c.mu.Unlock()
}

func (c *Controller) cancelLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Current reports whether req is still the latest request.
func (c *Controller) Current(req Request) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return req.Seq == c.seq
}

// ApplySuccess stores the ids of a finished request: page 1 replaces the
// current-page list, later pages append. Results of a superseded request are
// dropped and false is returned.
func (c *Controller) ApplySuccess(req Request, ids []string, total int64, totalPages int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if req.Seq != c.seq {
		c.tracker.Abandon(state.ActionLoadProducts)
		return false
	}
	if req.Append() {
		c.sink.AppendList(store.ViewCurrentPage, ids)
	} else {
		c.sink.SetList(store.ViewCurrentPage, ids)
	}
	c.total = total
	c.totalPages = totalPages
	if c.totalPages <= 0 && total > 0 {
		size := int64(req.Filters.PageSize)
		c.totalPages = int((total + size - 1) / size)
	}
	c.lastFetched = c.now()
	c.pending = nil
	c.tracker.Succeed(state.ActionLoadProducts)
	return true
}

// ApplyFailure records err for the latest request. A failed next page rolls
// the page number back so it can be retried.
func (c *Controller) ApplyFailure(req Request, err *errors.OperationError) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if req.Seq != c.seq {
		c.tracker.Abandon(state.ActionLoadProducts)
		return false
	}
	if req.Append() {
		c.filters.Page = c.prevPage
	}
	c.pending = nil
	c.tracker.Fail(state.ActionLoadProducts, err)
	return true
}

// Abandon ends a request whose result will never be applied.
func (c *Controller) Abandon(req Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil && c.pending.Seq == req.Seq {
		if req.Append() {
			c.filters.Page = c.prevPage
		}
		c.pending = nil
	}
	c.tracker.Abandon(state.ActionLoadProducts)
}

// Invalidate forgets the last fetch time so the next staleness check refreshes.
func (c *Controller) Invalidate() {
	c.mu.Lock()
	c.lastFetched = time.Time{}
	c.mu.Unlock()
}

// Stale reports whether the list was never fetched or is older than maxAge.
func (c *Controller) Stale(maxAge time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFetched.IsZero() || c.now().Sub(c.lastFetched) > maxAge
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Filters:     c.filters.clone(),
		Total:       c.total,
		TotalPages:  c.totalPages,
		LastFetched: c.lastFetched,
		Pending:     c.pending != nil,
	}
}
