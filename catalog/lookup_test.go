package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"catalog-service/clients"
	apperrors "catalog-service/errors"
	"catalog-service/models"
	"catalog-service/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadByIDsFetchesOnlyMissing(t *testing.T) {
	api := &fakeAPI{}
	e, _ := newTestEngine(t, api)
	ctx := context.Background()

	_, err := e.LoadProductsByIDs(ctx, []string{"p1"})
	require.NoError(t, err)

	products, err := e.LoadProductsByIDs(ctx, []string{"p1", "p2"})
	require.NoError(t, err)

	assert.Equal(t, []string{"p1", "p2"}, productIDs(products))
	require.Len(t, api.byIDsArgs, 2)
	assert.Equal(t, []string{"p2"}, api.byIDsArgs[1])
}

func TestLoadByIDsSkipsCallWhenEverythingIsCached(t *testing.T) {
	api := &fakeAPI{}
	e, _ := newTestEngine(t, api)
	ctx := context.Background()

	_, err := e.LoadProductsByIDs(ctx, []string{"p1", "p2"})
	require.NoError(t, err)
	products, err := e.LoadProductsByIDs(ctx, []string{"p2", "p1", "p2"})
	require.NoError(t, err)

	assert.Equal(t, 1, api.count("by-ids"))
	assert.Equal(t, []string{"p2", "p1", "p2"}, productIDs(products))
}

func TestConcurrentByIDsLookupsDoNotCancelEachOther(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)
	release := make(chan struct{})
	api := &fakeAPI{}
	api.byIDs = func(ctx context.Context, ids []string) ([]models.RawListItem, error) {
		started.Done()
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		out := make([]models.RawListItem, 0, len(ids))
		for _, id := range ids {
			out = append(out, item(id))
		}
		return out, nil
	}
	e, _ := newTestEngine(t, api)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([][]models.Product, 2)
	for i, ids := range [][]string{{"a1"}, {"b1"}} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := e.LoadProductsByIDs(ctx, ids)
			assert.NoError(t, err)
			results[i] = p
		}()
	}
	started.Wait()
	assert.True(t, e.View().IsLoadingByIDs)
	assert.False(t, e.View().Busy)
	close(release)
	wg.Wait()

	assert.Equal(t, []string{"a1"}, productIDs(results[0]))
	assert.Equal(t, []string{"b1"}, productIDs(results[1]))
	assert.False(t, e.View().IsLoadingByIDs)
}

func TestByIDsFailureIsReportedAndScoped(t *testing.T) {
	reporter := &recordingReporter{}
	api := &fakeAPI{byIDs: func(context.Context, []string) ([]models.RawListItem, error) {
		return nil, &clients.TransportError{Operation: clients.OpByIDs, StatusCode: 502, Message: "bad gateway"}
	}}
	e, _ := newTestEngine(t, api, WithReporter(reporter))

	_, err := e.LoadProductsByIDs(context.Background(), []string{"p1", "p2"})

	var opErr *apperrors.OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, apperrors.SeverityWarning, opErr.Severity)
	assert.Equal(t, "p1,p2", opErr.Context["ids"])
	assert.Equal(t, "502", opErr.Context["status"])

	reported := reporter.reported()
	require.Len(t, reported, 1)
	assert.Same(t, opErr, reported[0])

	errs := e.View().Errors
	assert.NotNil(t, errs[state.ClassByIDs])
	assert.Nil(t, errs[state.ClassList])
}

func TestSelectProductUsesCachedDetail(t *testing.T) {
	api := &fakeAPI{detail: func(_ context.Context, id string) (models.RawDetail, error) {
		return models.RawDetail{
			RawListItem: item(id),
			VariantCombinations: []models.RawVariantCombination{
				{ID: "c1", SKU: "SKU-1", Price: models.Amount(10), StockStatus: "in-stock"},
				{ID: "c2", SKU: "SKU-2", Price: models.Amount(12), StockStatus: "backorder", IsDefault: true},
			},
		}, nil
	}}
	e, _ := newTestEngine(t, api)
	ctx := context.Background()

	p, err := e.SelectProduct(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, p.Detailed)

	_, err = e.SelectProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, api.count("detail"))

	vm := e.View()
	require.NotNil(t, vm.SelectedProduct)
	assert.Equal(t, "p1", vm.SelectedProduct.ID)
	require.NotNil(t, vm.SelectedCombination)
	assert.Equal(t, "c2", vm.SelectedCombination.ID)
	require.NotNil(t, vm.SelectedStock)
	assert.Equal(t, models.StockBackorder, vm.SelectedStock.Status)
}

func TestSelectProductFetchesDetailForListEntity(t *testing.T) {
	api := &fakeAPI{}
	e, _ := newTestEngine(t, api)
	ctx := context.Background()

	_, err := e.LoadProductsByIDs(ctx, []string{"p1"})
	require.NoError(t, err)
	_, err = e.SelectProduct(ctx, "p1")
	require.NoError(t, err)

	assert.Equal(t, 1, api.count("detail"))
}

func TestSelectVariantCombination(t *testing.T) {
	api := &fakeAPI{detail: func(_ context.Context, id string) (models.RawDetail, error) {
		return models.RawDetail{
			RawListItem: item(id),
			VariantCombinations: []models.RawVariantCombination{
				{ID: "c1", Price: models.Amount(10), StockStatus: "in-stock"},
				{ID: "c2", Price: models.Amount(12), StockStatus: "out-of-stock"},
			},
		}, nil
	}}
	e, _ := newTestEngine(t, api)

	_, err := e.SelectVariantCombination("c1")
	assert.ErrorIs(t, err, ErrNoSelection)

	_, err = e.SelectProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "c1", e.View().SelectedCombination.ID)

	c, err := e.SelectVariantCombination("c2")
	require.NoError(t, err)
	assert.Equal(t, "c2", c.ID)
	assert.Equal(t, "Out of stock", e.View().SelectedStock.Text)

	_, err = e.SelectVariantCombination("nope")
	assert.ErrorIs(t, err, ErrUnknownCombination)

	e.ClearSelection()
	assert.Nil(t, e.View().SelectedProduct)
}

func TestDetailFailureIsWarning(t *testing.T) {
	api := &fakeAPI{detail: func(context.Context, string) (models.RawDetail, error) {
		return models.RawDetail{}, &clients.TransportError{Operation: clients.OpDetail, StatusCode: 404, Message: "product not found"}
	}}
	e, _ := newTestEngine(t, api)

	_, err := e.SelectProduct(context.Background(), "missing")

	var opErr *apperrors.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, apperrors.SeverityWarning, opErr.Severity)
	assert.Equal(t, "product not found", opErr.Message)
	assert.Equal(t, "missing", opErr.Context["product_id"])
	assert.False(t, e.View().IsLoadingDetail)
}
