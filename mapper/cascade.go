package mapper

import (
	"catalog-service/models"

	"github.com/shopspring/decimal"
)

// Payload is the union of the raw shapes a product can arrive in. Detail is
// nil for list, search and by-ids items.
type Payload struct {
	Item   *models.RawListItem
	Detail *models.RawDetail
}

// ListPayload wraps a list item.
func ListPayload(raw *models.RawListItem) Payload {
	return Payload{Item: raw}
}

// DetailPayload wraps a detail record.
func DetailPayload(raw *models.RawDetail) Payload {
	if raw == nil {
		return Payload{}
	}
	return Payload{Item: &raw.RawListItem, Detail: raw}
}

func (p Payload) selected() *models.RawSelectedVariant {
	if p.Item == nil {
		return nil
	}
	return p.Item.SelectedVariant
}

func (p Payload) physical() *models.RawPhysicalConfig {
	if p.Detail == nil {
		return nil
	}
	return p.Detail.PhysicalProductConfig
}

func (p Payload) pricing() *models.RawPricing {
	if cfg := p.physical(); cfg != nil {
		return cfg.Pricing
	}
	return nil
}

func (p Payload) priceRange() *models.RawPriceRange {
	if p.Item == nil {
		return nil
	}
	return p.Item.PriceRange
}

// defaultCombination picks the combination flagged default, then the one
// named by defaultVariantId, then the first.
func (p Payload) defaultCombination() *models.RawVariantCombination {
	if p.Detail == nil || len(p.Detail.VariantCombinations) == 0 {
		return nil
	}
	combos := p.Detail.VariantCombinations
	for i := range combos {
		if combos[i].IsDefault {
			return &combos[i]
		}
	}
	for i := range combos {
		if combos[i].ID == p.Detail.DefaultVariantID {
			return &combos[i]
		}
	}
	return &combos[0]
}

// AmountSource is one step of a priority cascade.
type AmountSource struct {
	Name    string
	Extract func(Payload) models.RawAmount
}

// CodeSource is one step of a code cascade.
type CodeSource struct {
	Name    string
	Extract func(Payload) models.RawCode
}

// Cascade source names, also recorded in Product.PriceSource.
const (
	SourceSelectedVariant    = "selected-variant"
	SourceItem               = "item"
	SourcePhysicalConfig     = "physical-config"
	SourceDefaultCombination = "default-combination"
	SourcePriceRange         = "price-range"
)

// PriceSources resolves Product.Price.
var PriceSources = []AmountSource{
	{SourceSelectedVariant, func(p Payload) models.RawAmount {
		if v := p.selected(); v != nil {
			return v.Price
		}
		return nil
	}},
	{SourceItem, func(p Payload) models.RawAmount {
		if p.Item != nil {
			return p.Item.Price
		}
		return nil
	}},
	{SourcePhysicalConfig, func(p Payload) models.RawAmount {
		if pr := p.pricing(); pr != nil {
			return pr.Price
		}
		return nil
	}},
	{SourceDefaultCombination, func(p Payload) models.RawAmount {
		if c := p.defaultCombination(); c != nil {
			return c.Price
		}
		return nil
	}},
	{SourcePriceRange, func(p Payload) models.RawAmount {
		if r := p.priceRange(); r != nil {
			return r.Min
		}
		return nil
	}},
}

// OriginalPriceSources resolves Product.OriginalPrice.
var OriginalPriceSources = []AmountSource{
	{SourceSelectedVariant, func(p Payload) models.RawAmount {
		if v := p.selected(); v != nil {
			return v.OriginalPrice
		}
		return nil
	}},
	{SourceItem, func(p Payload) models.RawAmount {
		if p.Item != nil {
			return p.Item.OriginalPrice
		}
		return nil
	}},
	{SourcePhysicalConfig, func(p Payload) models.RawAmount {
		if pr := p.pricing(); pr != nil {
			return pr.OriginalPrice
		}
		return nil
	}},
	{SourceDefaultCombination, func(p Payload) models.RawAmount {
		if c := p.defaultCombination(); c != nil {
			return c.OriginalPrice
		}
		return nil
	}},
	{SourcePriceRange, func(p Payload) models.RawAmount {
		if r := p.priceRange(); r != nil {
			return r.OriginalMax
		}
		return nil
	}},
}

// StockQuantitySources resolves Product.StockQuantity.
var StockQuantitySources = []AmountSource{
	{SourceSelectedVariant, func(p Payload) models.RawAmount {
		if v := p.selected(); v != nil {
			return v.StockQuantity
		}
		return nil
	}},
	{SourceItem, func(p Payload) models.RawAmount {
		if p.Item != nil {
			return p.Item.StockQuantity
		}
		return nil
	}},
	{SourcePhysicalConfig, func(p Payload) models.RawAmount {
		if cfg := p.physical(); cfg != nil {
			return cfg.StockQuantity
		}
		return nil
	}},
	{SourceDefaultCombination, func(p Payload) models.RawAmount {
		if c := p.defaultCombination(); c != nil {
			return c.StockQuantity
		}
		return nil
	}},
}

// StockStatusSources resolves Product.StockStatus.
var StockStatusSources = []CodeSource{
	{SourceSelectedVariant, func(p Payload) models.RawCode {
		if v := p.selected(); v != nil {
			return v.StockStatus
		}
		return ""
	}},
	{SourceItem, func(p Payload) models.RawCode {
		if p.Item != nil {
			return p.Item.StockStatus
		}
		return ""
	}},
	{SourcePhysicalConfig, func(p Payload) models.RawCode {
		if cfg := p.physical(); cfg != nil {
			return cfg.StockStatus
		}
		return ""
	}},
	{SourceDefaultCombination, func(p Payload) models.RawCode {
		if c := p.defaultCombination(); c != nil {
			return c.StockStatus
		}
		return ""
	}},
}

// ResolveAmount walks sources in order and returns the first supplied value
// with the name of the source that supplied it. A supplied but unparsable
// value is an error rather than a reason to fall through.
func ResolveAmount(sources []AmountSource, p Payload) (decimal.Decimal, string, error) {
	for _, s := range sources {
		raw := s.Extract(p)
		if !raw.Present() {
			continue
		}
		d, _, err := raw.Decimal()
		if err != nil {
			return decimal.Zero, s.Name, err
		}
		return d, s.Name, nil
	}
	return decimal.Zero, "", nil
}

// ResolveQuantity is ResolveAmount for whole-number counts.
func ResolveQuantity(sources []AmountSource, p Payload) (*int, error) {
	for _, s := range sources {
		raw := s.Extract(p)
		if !raw.Present() {
			continue
		}
		n, _, err := raw.Int()
		if err != nil {
			return nil, err
		}
		return &n, nil
	}
	return nil, nil
}

// ResolveCode returns the first non-empty code.
func ResolveCode(sources []CodeSource, p Payload) (models.RawCode, string) {
	for _, s := range sources {
		if c := s.Extract(p); c.Normalized() != "" {
			return c, s.Name
		}
	}
	return "", ""
}
