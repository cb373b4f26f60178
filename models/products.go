package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// StockStatus is the availability state shown to shoppers.
type StockStatus string

const (
	StockInStock      StockStatus = "in-stock"
	StockOutOfStock   StockStatus = "out-of-stock"
	StockBackorder    StockStatus = "backorder"
	StockPreOrder     StockStatus = "pre-order"
	StockComingSoon   StockStatus = "coming-soon"
	StockDiscontinued StockStatus = "discontinued"
)

// Purchasable reports whether an order can be placed for this status.
func (s StockStatus) Purchasable() bool {
	switch s {
	case StockInStock, StockBackorder, StockPreOrder:
		return true
	}
	return false
}

// ProductStatus is the publication state of a product.
type ProductStatus string

const (
	StatusDraft     ProductStatus = "draft"
	StatusPublished ProductStatus = "published"
	StatusArchived  ProductStatus = "archived"
	StatusHidden    ProductStatus = "hidden"
)

// ProductType classifies how a product is fulfilled.
type ProductType string

const (
	TypePhysical ProductType = "physical"
	TypeDigital  ProductType = "digital"
	TypeService  ProductType = "service"
	TypeVirtual  ProductType = "virtual"
	TypeGiftCard ProductType = "gift-card"
	TypeOther    ProductType = "other"
)

// MediaType classifies a media item.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaOther MediaType = "other"
)

// MediaPurpose tags one URL variant of a media item.
type MediaPurpose string

const (
	PurposeOriginal  MediaPurpose = "original"
	PurposeThumbnail MediaPurpose = "thumbnail"
	PurposeFallback  MediaPurpose = "fallback"
)

// MediaVariant is one URL of a media item.
type MediaVariant struct {
	Purpose MediaPurpose `json:"purpose"`
	URL     string       `json:"url"`
}

// Media is an image or video attached to a product. Variants are ordered
// original, thumbnail, fallback; absent purposes are omitted.
type Media struct {
	ID        string         `json:"id"`
	Type      MediaType      `json:"type"`
	AltText   string         `json:"altText,omitempty"`
	SortOrder int            `json:"sortOrder"`
	Variants  []MediaVariant `json:"variants"`
}

// URL returns the URL for purpose, falling back to the first variant.
func (m Media) URL(purpose MediaPurpose) string {
	for _, v := range m.Variants {
		if v.Purpose == purpose {
			return v.URL
		}
	}
	if len(m.Variants) > 0 {
		return m.Variants[0].URL
	}
	return ""
}

// AttributeValue is one selectable value of a variant attribute, e.g. "Red".
type AttributeValue struct {
	ID          string   `json:"id"`
	Value       string   `json:"value"`
	DisplayName string   `json:"displayName"`
	ColorHex    string   `json:"colorHex,omitempty"`
	MediaIDs    []string `json:"mediaIds,omitempty"`
}

// VariantAttribute is a dimension a product varies along, e.g. color or size.
type VariantAttribute struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Type   string           `json:"type"`
	Values []AttributeValue `json:"values"`
}

// VariantCombination is a purchasable SKU: one value per attribute.
type VariantCombination struct {
	ID                string           `json:"id"`
	SKU               string           `json:"sku"`
	AttributeValueIDs []string         `json:"attributeValueIds"`
	Price             decimal.Decimal  `json:"price"`
	OriginalPrice     *decimal.Decimal `json:"originalPrice,omitempty"`
	StockQuantity     *int             `json:"stockQuantity,omitempty"`
	StockStatus       StockStatus      `json:"stockStatus"`
	IsDefault         bool             `json:"isDefault"`
	MediaIDs          []string         `json:"mediaIds,omitempty"`
}

// ColorVariantTeaser is the lightweight swatch shown in list views.
type ColorVariantTeaser struct {
	AttributeValueID string           `json:"attributeValueId"`
	Name             string           `json:"name"`
	ColorHex         string           `json:"colorHex,omitempty"`
	Price            *decimal.Decimal `json:"price,omitempty"`
	MediaIDs         []string         `json:"mediaIds,omitempty"`
	IsDefault        bool             `json:"isDefault"`
}

// Product is the canonical catalog entity. Instances are produced only by the
// mapper and are replaced wholesale on every upsert.
type Product struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Description      string        `json:"description"`
	ShortDescription string        `json:"shortDescription,omitempty"`
	Type             ProductType   `json:"type"`
	Status           ProductStatus `json:"status"`

	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	Currency      string           `json:"currency"`
	// PriceSource names the cascade source that produced Price; empty when
	// no source had a value.
	PriceSource string `json:"priceSource,omitempty"`

	StockStatus   StockStatus `json:"stockStatus"`
	StockQuantity *int        `json:"stockQuantity,omitempty"`
	AvailableFrom *time.Time  `json:"availableFrom,omitempty"`

	CategoryIDs []string `json:"categoryIds"`
	Tags        []string `json:"tags"`

	Media                []Media              `json:"media"`
	VariantAttributes    []VariantAttribute   `json:"variantAttributes"`
	VariantCombinations  []VariantCombination `json:"variantCombinations"`
	ColorVariants        []ColorVariantTeaser `json:"colorVariants"`
	DefaultCombinationID string               `json:"defaultCombinationId,omitempty"`

	IsFeatured bool `json:"isFeatured"`
	// Degraded marks a fallback entity built from a payload that could not be mapped.
	Degraded bool `json:"degraded"`
	// Detailed is set when the entity was mapped from a detail payload.
	Detailed bool `json:"detailed"`

	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Clone returns a copy that shares no slices with p.
func (p Product) Clone() Product {
	c := p
	c.CategoryIDs = slices.Clone(p.CategoryIDs)
	c.Tags = slices.Clone(p.Tags)
	c.Media = slices.Clone(p.Media)
	for i := range c.Media {
		c.Media[i].Variants = slices.Clone(c.Media[i].Variants)
	}
	c.VariantAttributes = slices.Clone(p.VariantAttributes)
	for i, a := range c.VariantAttributes {
		c.VariantAttributes[i].Values = slices.Clone(a.Values)
		for j := range c.VariantAttributes[i].Values {
			v := &c.VariantAttributes[i].Values[j]
			v.MediaIDs = slices.Clone(v.MediaIDs)
		}
	}
	c.VariantCombinations = slices.Clone(p.VariantCombinations)
	for i := range c.VariantCombinations {
		vc := &c.VariantCombinations[i]
		vc.AttributeValueIDs = slices.Clone(vc.AttributeValueIDs)
		vc.MediaIDs = slices.Clone(vc.MediaIDs)
	}
	c.ColorVariants = slices.Clone(p.ColorVariants)
	for i := range c.ColorVariants {
		c.ColorVariants[i].MediaIDs = slices.Clone(c.ColorVariants[i].MediaIDs)
	}
	return c
}

// IsPriced reports whether any price source supplied a value.
func (p Product) IsPriced() bool {
	return p.PriceSource != ""
}

// MediaByID returns the media item with the given id.
func (p Product) MediaByID(id string) (Media, bool) {
	for _, m := range p.Media {
		if m.ID == id {
			return m, true
		}
	}
	return Media{}, false
}

// Combination returns the variant combination with the given id.
func (p Product) Combination(id string) (VariantCombination, bool) {
	for _, c := range p.VariantCombinations {
		if c.ID == id {
			return c, true
		}
	}
	return VariantCombination{}, false
}

// DefaultCombination returns the combination flagged as default, then the one
// named by DefaultCombinationID, then the first one.
func (p Product) DefaultCombination() (VariantCombination, bool) {
	for _, c := range p.VariantCombinations {
		if c.IsDefault {
			return c, true
		}
	}
	if c, ok := p.Combination(p.DefaultCombinationID); ok {
		return c, true
	}
	if len(p.VariantCombinations) > 0 {
		return p.VariantCombinations[0], true
	}
	return VariantCombination{}, false
}

// MissingMediaRefs lists media ids referenced by attribute values,
// combinations or color teasers that are absent from Media.
func (p Product) MissingMediaRefs() []string {
	known := make(map[string]bool, len(p.Media))
	for _, m := range p.Media {
		known[m.ID] = true
	}
	seen := make(map[string]bool)
	var missing []string
	check := func(ids []string) {
		for _, id := range ids {
			if !known[id] && !seen[id] {
				seen[id] = true
				missing = append(missing, id)
			}
		}
	}
	for _, a := range p.VariantAttributes {
		for _, v := range a.Values {
			check(v.MediaIDs)
		}
	}
	for _, c := range p.VariantCombinations {
		check(c.MediaIDs)
	}
	for _, t := range p.ColorVariants {
		check(t.MediaIDs)
	}
	return missing
}
