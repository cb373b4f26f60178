// Package mapper converts the heterogeneous product payloads of the catalog
// API into the canonical models.Product. Every exported Map function is total:
// a payload that cannot be mapped becomes a fallback entity instead of an error.
package mapper

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"catalog-service/models"

	"go.uber.org/zap"
	"golang.org/x/text/currency"
)

// DefaultCurrency is used when neither the payload nor Options name one.
const DefaultCurrency = "EUR"

var errNilPayload = errors.New("nil payload")

// Options configures a Mapper.
type Options struct {
	// MediaOrigin is the base URL relative media paths are resolved against.
	MediaOrigin     string
	DefaultCurrency string
	Logger          *zap.Logger
}

// Mapper holds the configuration shared by all mapping calls. It is safe for
// concurrent use.
type Mapper struct {
	urls     urlResolver
	currency string
	log      *zap.Logger
}

func New(opts Options) (*Mapper, error) {
	urls, err := newURLResolver(opts.MediaOrigin)
	if err != nil {
		return nil, fmt.Errorf("invalid media origin %q: %w", opts.MediaOrigin, err)
	}
	cur := DefaultCurrency
	if opts.DefaultCurrency != "" {
		unit, err := currency.ParseISO(strings.ToUpper(opts.DefaultCurrency))
		if err != nil {
			return nil, fmt.Errorf("invalid default currency %q: %w", opts.DefaultCurrency, err)
		}
		cur = unit.String()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Mapper{urls: urls, currency: cur, log: log}, nil
}

// ResolveURL resolves a media path against the configured origin.
func (m *Mapper) ResolveURL(raw string) string {
	return m.urls.Resolve(raw)
}

// MapListItem maps a list, search or by-ids item.
func (m *Mapper) MapListItem(raw *models.RawListItem) models.Product {
	if raw == nil {
		return m.degrade("", "", errNilPayload)
	}
	return m.safeMap(ListPayload(raw))
}

// MapDetail maps a detail record.
func (m *Mapper) MapDetail(raw *models.RawDetail) models.Product {
	if raw == nil {
		return m.degrade("", "", errNilPayload)
	}
	p := m.safeMap(DetailPayload(raw))
	if !p.Degraded {
		p.Detailed = true
	}
	return p
}

// MapMany maps list items in order.
func (m *Mapper) MapMany(items []models.RawListItem) []models.Product {
	out := make([]models.Product, 0, len(items))
	for i := range items {
		out = append(out, m.MapListItem(&items[i]))
	}
	return out
}

// MapListPage maps a paginated collection, keeping its meta.
func (m *Mapper) MapListPage(page models.ListPage) ([]models.Product, models.PageMeta) {
	return m.MapMany(page.Products), page.Meta
}

func (m *Mapper) safeMap(src Payload) (p models.Product) {
	id, name := src.Item.ID, src.Item.Name
	defer func() {
		if r := recover(); r != nil {
			p = m.degrade(id, name, fmt.Errorf("panic while mapping: %v", r))
		}
	}()

	p, err := m.mapPayload(src)
	if err != nil {
		return m.degrade(id, name, err)
	}
	return p
}

// Fallback builds the minimal entity used when a payload cannot be mapped.
func Fallback(id, name string) models.Product {
	return models.Product{
		ID:                  id,
		Name:                name,
		Type:                models.TypeOther,
		Status:              models.StatusDraft,
		StockStatus:         models.StockOutOfStock,
		CategoryIDs:         []string{},
		Tags:                []string{},
		Media:               []models.Media{},
		VariantAttributes:   []models.VariantAttribute{},
		VariantCombinations: []models.VariantCombination{},
		ColorVariants:       []models.ColorVariantTeaser{},
		Degraded:            true,
	}
}

func (m *Mapper) degrade(id, name string, err error) models.Product {
	m.log.Warn("Product mapping degraded to fallback entity",
		zap.String("product_id", id),
		zap.Error(err),
	)
	p := Fallback(id, name)
	p.Currency = m.currency
	return p
}

func (m *Mapper) mapPayload(src Payload) (models.Product, error) {
	item := src.Item

	media := newMediaSet(m.urls)
	media.addAll(item.FeaturedImages)
	if src.Detail != nil {
		media.addAll(src.Detail.Media)
	}
	if sv := item.SelectedVariant; sv != nil {
		media.addAll(sv.Media)
	}
	teaserMedia := make([][]string, len(item.ColorVariants))
	for i, cv := range item.ColorVariants {
		teaserMedia[i] = media.addAll(cv.Media)
	}

	price, priceSource, err := ResolveAmount(PriceSources, src)
	if err != nil {
		return models.Product{}, fmt.Errorf("price: %w", err)
	}
	p := models.Product{
		ID:               strings.TrimSpace(item.ID),
		Name:             item.Name,
		Description:      item.Description,
		ShortDescription: item.ShortDescription,
		Price:            price,
		PriceSource:      priceSource,
		Currency:         m.resolveCurrency(src),
		CategoryIDs:      nonNil(item.CategoryIDs),
		Tags:             nonNil(item.Tags),
		IsFeatured:       item.IsFeatured,
	}
	if p.ID == "" {
		return models.Product{}, errors.New("missing product id")
	}

	p.Type, _ = ProductTypeOf(item.Type)
	p.Status, _ = ProductStatusOf(item.Status)
	code, _ := ResolveCode(StockStatusSources, src)
	p.StockStatus, _ = StockStatusOf(code)

	if orig, source, err := ResolveAmount(OriginalPriceSources, src); err != nil {
		return models.Product{}, fmt.Errorf("original price: %w", err)
	} else if source != "" {
		p.OriginalPrice = &orig
	}
	if p.StockQuantity, err = ResolveQuantity(StockQuantitySources, src); err != nil {
		return models.Product{}, fmt.Errorf("stock quantity: %w", err)
	}

	availableFrom := item.AvailableFromDate
	if cfg := src.physical(); cfg != nil && cfg.AvailableFrom != "" {
		availableFrom = cfg.AvailableFrom
	}
	if p.AvailableFrom, err = parseDate(availableFrom); err != nil {
		return models.Product{}, fmt.Errorf("available from: %w", err)
	}
	if p.CreatedAt, err = parseDate(item.CreatedAt); err != nil {
		return models.Product{}, fmt.Errorf("created at: %w", err)
	}
	if p.UpdatedAt, err = parseDate(item.UpdatedAt); err != nil {
		return models.Product{}, fmt.Errorf("updated at: %w", err)
	}

	p.ColorVariants, err = m.mapTeasers(item.ColorVariants, teaserMedia)
	if err != nil {
		return models.Product{}, err
	}
	p.VariantAttributes = []models.VariantAttribute{}
	p.VariantCombinations = []models.VariantCombination{}
	if src.Detail != nil {
		p.VariantAttributes = mapAttributes(src.Detail.VariantAttributes, media)
		if p.VariantCombinations, err = mapCombinations(src.Detail.VariantCombinations, p, media); err != nil {
			return models.Product{}, err
		}
		if c := src.defaultCombination(); c != nil {
			p.DefaultCombinationID = c.ID
		}
	}

	p.Media = media.list()
	return p, nil
}

func (m *Mapper) resolveCurrency(src Payload) string {
	candidates := []string{}
	if sv := src.selected(); sv != nil {
		candidates = append(candidates, sv.Currency)
	}
	if pr := src.pricing(); pr != nil {
		candidates = append(candidates, pr.Currency)
	}
	candidates = append(candidates, src.Item.Currency)
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(c))); err == nil {
			return unit.String()
		}
		m.log.Debug("Ignoring unknown currency code", zap.String("product_id", src.Item.ID), zap.String("currency", c))
	}
	return m.currency
}

func (m *Mapper) mapTeasers(raws []models.RawColorVariant, mediaIDs [][]string) ([]models.ColorVariantTeaser, error) {
	out := make([]models.ColorVariantTeaser, 0, len(raws))
	for i, cv := range raws {
		t := models.ColorVariantTeaser{
			AttributeValueID: cv.AttributeValueID,
			Name:             cv.Name,
			ColorHex:         cv.ColorHex,
			MediaIDs:         mediaIDs[i],
			IsDefault:        cv.IsDefault,
		}
		price, ok, err := cv.Price.Decimal()
		if err != nil {
			return nil, fmt.Errorf("color variant %s price: %w", cv.AttributeValueID, err)
		}
		if ok {
			t.Price = &price
		}
		out = append(out, t)
	}
	return out, nil
}

func mapAttributes(raws []models.RawVariantAttribute, media *mediaSet) []models.VariantAttribute {
	out := make([]models.VariantAttribute, 0, len(raws))
	for _, a := range raws {
		values := make([]models.AttributeValue, 0, len(a.Values))
		for _, v := range a.Values {
			display := v.DisplayName
			if display == "" {
				display = v.Value
			}
			values = append(values, models.AttributeValue{
				ID:          v.ID,
				Value:       v.Value,
				DisplayName: display,
				ColorHex:    v.ColorHex,
				MediaIDs:    media.keep(v.MediaIDs),
			})
		}
		out = append(out, models.VariantAttribute{ID: a.ID, Name: a.Name, Type: a.Type, Values: values})
	}
	return out
}

// mapCombinations inherits price and stock status from the product when a
// combination does not carry its own.
func mapCombinations(raws []models.RawVariantCombination, product models.Product, media *mediaSet) ([]models.VariantCombination, error) {
	out := make([]models.VariantCombination, 0, len(raws))
	for _, rc := range raws {
		c := models.VariantCombination{
			ID:                rc.ID,
			SKU:               rc.SKU,
			AttributeValueIDs: nonNil(rc.AttributeValueIDs),
			Price:             product.Price,
			StockStatus:       product.StockStatus,
			IsDefault:         rc.IsDefault,
			MediaIDs:          media.keep(rc.MediaIDs),
		}
		if price, ok, err := rc.Price.Decimal(); err != nil {
			return nil, fmt.Errorf("combination %s price: %w", rc.ID, err)
		} else if ok {
			c.Price = price
		}
		if orig, ok, err := rc.OriginalPrice.Decimal(); err != nil {
			return nil, fmt.Errorf("combination %s original price: %w", rc.ID, err)
		} else if ok {
			c.OriginalPrice = &orig
		}
		if qty, ok, err := rc.StockQuantity.Int(); err != nil {
			return nil, fmt.Errorf("combination %s stock quantity: %w", rc.ID, err)
		} else if ok {
			c.StockQuantity = &qty
		}
		if rc.StockStatus.Normalized() != "" {
			c.StockStatus, _ = StockStatusOf(rc.StockStatus)
		}
		out = append(out, c)
	}
	return out, nil
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised date %q", raw)
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
