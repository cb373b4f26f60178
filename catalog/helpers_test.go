package catalog

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	apperrors "catalog-service/errors"
	"catalog-service/mapper"
	"catalog-service/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeAPI answers with the configured functions and records what it was asked.
type fakeAPI struct {
	mu        sync.Mutex
	calls     map[string]int
	byIDsArgs [][]string
	listArgs  []url.Values

	list       func(ctx context.Context, params url.Values) (models.ListPage, error)
	detail     func(ctx context.Context, id string) (models.RawDetail, error)
	byIDs      func(ctx context.Context, ids []string) ([]models.RawListItem, error)
	search     func(ctx context.Context, q string, params url.Values) (models.ListPage, error)
	filters    func(ctx context.Context) ([]models.FilterDefinition, error)
	create     func(ctx context.Context, in models.ProductInput) (models.RawDetail, error)
	update     func(ctx context.Context, id string, in models.ProductInput) (models.RawDetail, error)
	remove     func(ctx context.Context, id string) error
	bulkDelete func(ctx context.Context, ids []string) ([]string, error)
}

func (f *fakeAPI) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) List(ctx context.Context, params url.Values) (models.ListPage, error) {
	f.record("list")
	f.mu.Lock()
	f.listArgs = append(f.listArgs, params)
	f.mu.Unlock()
	if f.list != nil {
		return f.list(ctx, params)
	}
	return models.ListPage{}, nil
}

func (f *fakeAPI) Detail(ctx context.Context, id string) (models.RawDetail, error) {
	f.record("detail")
	if f.detail != nil {
		return f.detail(ctx, id)
	}
	return models.RawDetail{RawListItem: item(id)}, nil
}

func (f *fakeAPI) ByIDs(ctx context.Context, ids []string) ([]models.RawListItem, error) {
	f.record("by-ids")
	f.mu.Lock()
	f.byIDsArgs = append(f.byIDsArgs, append([]string(nil), ids...))
	f.mu.Unlock()
	if f.byIDs != nil {
		return f.byIDs(ctx, ids)
	}
	out := make([]models.RawListItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, item(id))
	}
	return out, nil
}

func (f *fakeAPI) Search(ctx context.Context, q string, params url.Values) (models.ListPage, error) {
	f.record("search")
	if f.search != nil {
		return f.search(ctx, q, params)
	}
	return models.ListPage{}, nil
}

func (f *fakeAPI) AvailableFilters(ctx context.Context) ([]models.FilterDefinition, error) {
	f.record("filters")
	if f.filters != nil {
		return f.filters(ctx)
	}
	return nil, nil
}

func (f *fakeAPI) Create(ctx context.Context, in models.ProductInput) (models.RawDetail, error) {
	f.record("create")
	if f.create != nil {
		return f.create(ctx, in)
	}
	return models.RawDetail{RawListItem: models.RawListItem{ID: "new", Name: in.Name}}, nil
}

func (f *fakeAPI) Update(ctx context.Context, id string, in models.ProductInput) (models.RawDetail, error) {
	f.record("update")
	if f.update != nil {
		return f.update(ctx, id, in)
	}
	return models.RawDetail{RawListItem: models.RawListItem{ID: id, Name: in.Name}}, nil
}

func (f *fakeAPI) Delete(ctx context.Context, id string) error {
	f.record("delete")
	if f.remove != nil {
		return f.remove(ctx, id)
	}
	return nil
}

func (f *fakeAPI) BulkDelete(ctx context.Context, ids []string) ([]string, error) {
	f.record("bulk-delete")
	if f.bulkDelete != nil {
		return f.bulkDelete(ctx, ids)
	}
	return ids, nil
}

type recordingReporter struct {
	mu   sync.Mutex
	errs []*apperrors.OperationError
}

func (r *recordingReporter) Report(_ context.Context, err *apperrors.OperationError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recordingReporter) reported() []*apperrors.OperationError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*apperrors.OperationError(nil), r.errs...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ChangeEvent
	err    error
}

func (p *recordingPublisher) PublishChange(_ context.Context, ev models.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) published() []models.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ChangeEvent(nil), p.events...)
}

var testNow = time.Date(2025, time.November, 1, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, api *fakeAPI, opts ...Option) (*Engine, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	m, err := mapper.New(mapper.Options{MediaOrigin: "https://cdn.example.com", Logger: log})
	require.NoError(t, err)
	opts = append([]Option{WithLogger(log), WithClock(func() time.Time { return testNow })}, opts...)
	e := New(api, m, Config{PageSize: 12, Origin: "instance-a"}, opts...)
	t.Cleanup(e.Close)
	return e, logs
}

func item(id string) models.RawListItem {
	return models.RawListItem{
		ID:          id,
		Name:        "Product " + id,
		StockStatus: "in-stock",
		Status:      "published",
		Price:       models.Amount("19.99"),
	}
}

func page(total int64, totalPages int, ids ...string) models.ListPage {
	items := make([]models.RawListItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, item(id))
	}
	return models.ListPage{Products: items, Meta: models.PageMeta{Total: total, TotalPages: totalPages}}
}

func idRange(prefix string, from, to int) []string {
	ids := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		ids = append(ids, fmt.Sprintf("%s%d", prefix, i))
	}
	return ids
}

func productIDs(products []models.Product) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}

// waitFor fails the test if ch is not closed within a second.
func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the call to start")
	}
}
