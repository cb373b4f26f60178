package mapper

import (
	"encoding/json"
	"testing"

	"catalog-service/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestMapper(t *testing.T) (*Mapper, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	m, err := New(Options{
		MediaOrigin:     "https://cdn.example.com",
		DefaultCurrency: "eur",
		Logger:          zap.New(core),
	})
	require.NoError(t, err)
	return m, logs
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMapListItemWithoutOptionalStructures(t *testing.T) {
	m, logs := newTestMapper(t)

	p := m.MapListItem(&models.RawListItem{ID: "p1", Name: "Bare"})

	assert.Equal(t, "p1", p.ID)
	assert.False(t, p.Degraded)
	assert.True(t, p.Price.IsZero())
	assert.False(t, p.IsPriced())
	assert.Nil(t, p.OriginalPrice)
	assert.Nil(t, p.StockQuantity)
	assert.Equal(t, models.StockOutOfStock, p.StockStatus)
	assert.Equal(t, models.StatusDraft, p.Status)
	assert.Equal(t, models.TypeOther, p.Type)
	assert.Equal(t, "EUR", p.Currency)
	assert.NotNil(t, p.Media)
	assert.Empty(t, p.Media)
	assert.NotNil(t, p.VariantCombinations)
	assert.NotNil(t, p.CategoryIDs)
	assert.Zero(t, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestMapDetailWithoutOptionalStructures(t *testing.T) {
	m, _ := newTestMapper(t)

	p := m.MapDetail(&models.RawDetail{RawListItem: models.RawListItem{ID: "p2", Name: "Bare detail"}})

	assert.Equal(t, "p2", p.ID)
	assert.False(t, p.Degraded)
	assert.True(t, p.Detailed)
	assert.Empty(t, p.VariantAttributes)
	assert.Empty(t, p.DefaultCombinationID)
}

func TestMapNilPayloadsNeverPanic(t *testing.T) {
	m, logs := newTestMapper(t)

	assert.True(t, m.MapListItem(nil).Degraded)
	assert.True(t, m.MapDetail(nil).Degraded)
	assert.Equal(t, 2, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestMalformedAmountYieldsFallbackEntity(t *testing.T) {
	m, logs := newTestMapper(t)
	raw := &models.RawListItem{
		ID:             "p9",
		Name:           "Broken",
		Status:         "published",
		StockStatus:    "in_stock",
		Price:          models.RawAmount(`"twelve"`),
		FeaturedImages: []models.RawMedia{{ID: "m1", URL: "/img/a.jpg"}},
	}

	p := m.MapListItem(raw)

	assert.True(t, p.Degraded)
	assert.Equal(t, "p9", p.ID)
	assert.Equal(t, "Broken", p.Name)
	assert.Empty(t, p.Media)
	assert.Empty(t, p.VariantCombinations)
	assert.Equal(t, models.StockOutOfStock, p.StockStatus)
	assert.Equal(t, models.StatusDraft, p.Status)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "p9", warnings[0].ContextMap()["product_id"])
}

func TestMissingIDDegrades(t *testing.T) {
	m, _ := newTestMapper(t)
	p := m.MapListItem(&models.RawListItem{Name: "no id", Price: models.Amount(5)})
	assert.True(t, p.Degraded)
}

func TestInvalidDateDegrades(t *testing.T) {
	m, _ := newTestMapper(t)
	p := m.MapListItem(&models.RawListItem{ID: "p3", AvailableFromDate: "next tuesday"})
	assert.True(t, p.Degraded)
}

func TestPriceCascadeOrder(t *testing.T) {
	m, _ := newTestMapper(t)
	detail := &models.RawDetail{
		RawListItem: models.RawListItem{
			ID:         "p1",
			PriceRange: &models.RawPriceRange{Min: models.Amount(5), Max: models.Amount(9), OriginalMax: models.Amount(12)},
		},
		PhysicalProductConfig: &models.RawPhysicalConfig{
			Pricing:       &models.RawPricing{Price: models.Amount("19.99"), OriginalPrice: models.Amount(24)},
			StockQuantity: models.Amount(7),
		},
		VariantCombinations: []models.RawVariantCombination{
			{ID: "c1", Price: models.Amount(30), StockQuantity: models.Amount(1)},
			{ID: "c2", Price: models.Amount(31), IsDefault: true, StockQuantity: models.Amount(2)},
		},
	}

	p := m.MapDetail(detail)
	assert.True(t, p.Price.Equal(dec("19.99")))
	assert.Equal(t, SourcePhysicalConfig, p.PriceSource)
	require.NotNil(t, p.OriginalPrice)
	assert.True(t, p.OriginalPrice.Equal(dec("24")))
	require.NotNil(t, p.StockQuantity)
	assert.Equal(t, 7, *p.StockQuantity)
	assert.Equal(t, "c2", p.DefaultCombinationID)

	detail.SelectedVariant = &models.RawSelectedVariant{ID: "c1", Price: models.Amount(29.5), StockQuantity: models.Amount(3)}
	p = m.MapDetail(detail)
	assert.True(t, p.Price.Equal(dec("29.5")))
	assert.Equal(t, SourceSelectedVariant, p.PriceSource)
	assert.Equal(t, 3, *p.StockQuantity)

	detail.SelectedVariant = nil
	detail.PhysicalProductConfig = nil
	p = m.MapDetail(detail)
	assert.True(t, p.Price.Equal(dec("31")))
	assert.Equal(t, SourceDefaultCombination, p.PriceSource)
	assert.Equal(t, 2, *p.StockQuantity)

	detail.VariantCombinations = nil
	p = m.MapDetail(detail)
	assert.True(t, p.Price.Equal(dec("5")))
	assert.Equal(t, SourcePriceRange, p.PriceSource)
	assert.True(t, p.OriginalPrice.Equal(dec("12")))
	assert.Nil(t, p.StockQuantity)
}

func TestResolveAmountInIsolation(t *testing.T) {
	sources := []AmountSource{
		{Name: "a", Extract: func(Payload) models.RawAmount { return nil }},
		{Name: "b", Extract: func(Payload) models.RawAmount { return models.RawAmount("null") }},
		{Name: "c", Extract: func(Payload) models.RawAmount { return models.Amount(0) }},
		{Name: "d", Extract: func(Payload) models.RawAmount { return models.Amount(4) }},
	}

	got, source, err := ResolveAmount(sources, Payload{})
	require.NoError(t, err)
	assert.Equal(t, "c", source)
	assert.True(t, got.IsZero())

	got, source, err = ResolveAmount(sources[:2], Payload{})
	require.NoError(t, err)
	assert.Empty(t, source)
	assert.True(t, got.IsZero())
}

func TestMediaClosureAndDeduplication(t *testing.T) {
	m, _ := newTestMapper(t)
	detail := &models.RawDetail{
		RawListItem: models.RawListItem{
			ID: "p1",
			FeaturedImages: []models.RawMedia{
				{ID: "m1", URL: "/img/front.jpg", ThumbnailURL: "/img/front_t.jpg", SortOrder: 1},
			},
			SelectedVariant: &models.RawSelectedVariant{
				ID:    "c1",
				Media: []models.RawMedia{{ID: "m1", URL: "/img/other.jpg"}, {ID: "m2", URL: "https://img.example.org/back.jpg", SortOrder: 2}},
			},
			ColorVariants: []models.RawColorVariant{
				{AttributeValueID: "red", Name: "Red", Media: []models.RawMedia{{ID: "m3", URL: "//static.example.com/red.jpg", SortOrder: 3}}},
			},
		},
		VariantAttributes: []models.RawVariantAttribute{
			{ID: "color", Name: "Color", Values: []models.RawAttributeValue{
				{ID: "red", Value: "red", MediaIDs: []string{"m3", "ghost"}},
			}},
		},
		VariantCombinations: []models.RawVariantCombination{
			{ID: "c1", AttributeValueIDs: []string{"red"}, MediaIDs: []string{"m1", "m2", "missing"}},
		},
	}

	p := m.MapDetail(detail)
	require.False(t, p.Degraded)
	require.Len(t, p.Media, 3)
	assert.Empty(t, p.MissingMediaRefs())

	front, ok := p.MediaByID("m1")
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/img/front.jpg", front.URL(models.PurposeOriginal))
	assert.Equal(t, "https://cdn.example.com/img/front_t.jpg", front.URL(models.PurposeThumbnail))
	assert.Equal(t, "https://cdn.example.com/img/front.jpg", front.URL(models.PurposeFallback))

	back, _ := p.MediaByID("m2")
	assert.Equal(t, "https://img.example.org/back.jpg", back.URL(models.PurposeOriginal))
	red, _ := p.MediaByID("m3")
	assert.Equal(t, "https://static.example.com/red.jpg", red.URL(models.PurposeOriginal))

	assert.Equal(t, []string{"m3"}, p.VariantAttributes[0].Values[0].MediaIDs)
	assert.Equal(t, []string{"m1", "m2"}, p.VariantCombinations[0].MediaIDs)
	assert.Equal(t, []string{"m3"}, p.ColorVariants[0].MediaIDs)
}

func TestStockAndStatusCodes(t *testing.T) {
	cases := []struct {
		code models.RawCode
		want models.StockStatus
	}{
		{"0", models.StockInStock},
		{"InStock", models.StockInStock},
		{"on_backorder", models.StockBackorder},
		{"2", models.StockBackorder},
		{"pre-order", models.StockPreOrder},
		{"COMING_SOON", models.StockComingSoon},
		{"5", models.StockDiscontinued},
		{"42", models.StockOutOfStock},
		{"teleporting", models.StockOutOfStock},
	}
	for _, tc := range cases {
		got, _ := StockStatusOf(tc.code)
		assert.Equal(t, tc.want, got, "code %q", tc.code)
	}

	status, known := ProductStatusOf("9")
	assert.Equal(t, models.StatusDraft, status)
	assert.False(t, known)
	typ, _ := ProductTypeOf("gift_card")
	assert.Equal(t, models.TypeGiftCard, typ)
}

func TestNumericCodesDecodeFromJSON(t *testing.T) {
	m, _ := newTestMapper(t)
	var raw models.RawListItem
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "p5", "name": "Motor", "type": 0, "status": 1, "stockStatus": 2,
		"price": "149.90", "stockQuantity": 4, "currency": "usd",
		"availableFromDate": "2025-12-01"
	}`), &raw))

	p := m.MapListItem(&raw)
	require.False(t, p.Degraded)
	assert.Equal(t, models.TypePhysical, p.Type)
	assert.Equal(t, models.StatusPublished, p.Status)
	assert.Equal(t, models.StockBackorder, p.StockStatus)
	assert.True(t, p.Price.Equal(dec("149.9")))
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, 4, *p.StockQuantity)
	require.NotNil(t, p.AvailableFrom)
	assert.Equal(t, "2025-12-01", p.AvailableFrom.Format("2006-01-02"))
}

func TestUnknownCurrencyFallsBackToDefault(t *testing.T) {
	m, _ := newTestMapper(t)
	p := m.MapListItem(&models.RawListItem{ID: "p1", Currency: "XYZQ"})
	assert.Equal(t, "EUR", p.Currency)
}

func TestFractionalQuantityDegrades(t *testing.T) {
	m, _ := newTestMapper(t)
	p := m.MapListItem(&models.RawListItem{ID: "p1", StockQuantity: models.Amount(1.5)})
	assert.True(t, p.Degraded)
}

func TestResolveURL(t *testing.T) {
	m, _ := newTestMapper(t)
	assert.Equal(t, "https://cdn.example.com/a/b.png", m.ResolveURL("a/b.png"))
	assert.Equal(t, "https://cdn.example.com/a/b.png", m.ResolveURL("/a/b.png"))
	assert.Equal(t, "http://other.example/x.png", m.ResolveURL("http://other.example/x.png"))
	assert.Equal(t, "", m.ResolveURL("  "))

	bare, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, "/a/b.png", bare.ResolveURL("/a/b.png"))
}

func TestNewRejectsBadCurrency(t *testing.T) {
	_, err := New(Options{DefaultCurrency: "EURO"})
	assert.Error(t, err)
}

func TestMapListPageKeepsOrderAndMeta(t *testing.T) {
	m, _ := newTestMapper(t)
	page := models.ListPage{
		Products: []models.RawListItem{
			{ID: "a", Price: models.Amount(1)},
			{ID: "b", Price: models.RawAmount(`"bad"`)},
			{ID: "c", Price: models.Amount(3)},
		},
		Meta: models.PageMeta{Page: 2, PerPage: 3, Total: 9, TotalPages: 3},
	}

	products, meta := m.MapListPage(page)

	require.Len(t, products, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{products[0].ID, products[1].ID, products[2].ID})
	assert.True(t, products[1].Degraded)
	assert.Equal(t, int64(9), meta.Total)
}
