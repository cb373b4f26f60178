package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RawAmount holds a monetary or count value exactly as the backend sent it:
// a JSON number, a numeric string, or null.
type RawAmount []byte

// Amount builds a RawAmount from a Go number, mostly for tests and fixtures.
func Amount(v any) RawAmount {
	b, _ := json.Marshal(v)
	return RawAmount(b)
}

func (a *RawAmount) UnmarshalJSON(b []byte) error {
	*a = append((*a)[0:0], b...)
	return nil
}

func (a RawAmount) MarshalJSON() ([]byte, error) {
	if len(a) == 0 {
		return []byte("null"), nil
	}
	return a, nil
}

// Present reports whether a non-null value was supplied.
func (a RawAmount) Present() bool {
	t := bytes.TrimSpace(a)
	return len(t) > 0 && !bytes.Equal(t, []byte("null")) && !bytes.Equal(t, []byte(`""`))
}

// Decimal parses the amount. ok is false when no value was supplied.
func (a RawAmount) Decimal() (d decimal.Decimal, ok bool, err error) {
	if !a.Present() {
		return decimal.Zero, false, nil
	}
	if err := d.UnmarshalJSON(bytes.TrimSpace(a)); err != nil {
		return decimal.Zero, false, fmt.Errorf("invalid amount %s: %w", string(a), err)
	}
	return d, true, nil
}

// Int parses the amount as a whole number.
func (a RawAmount) Int() (n int, ok bool, err error) {
	d, ok, err := a.Decimal()
	if err != nil || !ok {
		return 0, ok, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, false, fmt.Errorf("invalid quantity %s: not a whole number", d.String())
	}
	return int(d.IntPart()), true, nil
}

// RawCode is an enumerated backend code sent either as a number or a string.
type RawCode string

func (c *RawCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*c = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = RawCode(s)
	default:
		*c = RawCode(b)
	}
	return nil
}

// Normalized lowercases the code and strips separators so "On_Backorder",
// "on-backorder" and "OnBackorder" compare equal.
func (c RawCode) Normalized() string {
	r := strings.NewReplacer("_", "", "-", "", " ", "")
	return r.Replace(strings.ToLower(strings.TrimSpace(string(c))))
}

type RawMedia struct {
	ID           string  `json:"id"`
	Type         RawCode `json:"type"`
	URL          string  `json:"url"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
	FallbackURL  string  `json:"fallbackUrl,omitempty"`
	AltText      string  `json:"altText,omitempty"`
	SortOrder    int     `json:"sortOrder"`
}

type RawPriceRange struct {
	Min         RawAmount `json:"min"`
	Max         RawAmount `json:"max"`
	OriginalMin RawAmount `json:"originalMin,omitempty"`
	OriginalMax RawAmount `json:"originalMax,omitempty"`
}

type RawSelectedVariant struct {
	ID                string     `json:"id"`
	SKU               string     `json:"sku"`
	Price             RawAmount  `json:"price"`
	OriginalPrice     RawAmount  `json:"originalPrice"`
	Currency          string     `json:"currency,omitempty"`
	StockQuantity     RawAmount  `json:"stockQuantity"`
	StockStatus       RawCode    `json:"stockStatus"`
	AttributeValueIDs []string   `json:"attributeValueIds"`
	Media             []RawMedia `json:"media"`
}

type RawColorVariant struct {
	AttributeValueID string     `json:"id"`
	Name             string     `json:"name"`
	ColorHex         string     `json:"colorHex"`
	Price            RawAmount  `json:"price"`
	Media            []RawMedia `json:"media"`
	IsDefault        bool       `json:"isDefault"`
}

type RawPricing struct {
	Price         RawAmount `json:"price"`
	OriginalPrice RawAmount `json:"originalPrice"`
	Currency      string    `json:"currency,omitempty"`
}

type RawPhysicalConfig struct {
	Pricing       *RawPricing `json:"pricing"`
	StockQuantity RawAmount   `json:"stockQuantity"`
	StockStatus   RawCode     `json:"stockStatus"`
	AvailableFrom string      `json:"availableFromDate,omitempty"`
}

type RawAttributeValue struct {
	ID          string   `json:"id"`
	Value       string   `json:"value"`
	DisplayName string   `json:"displayName"`
	ColorHex    string   `json:"colorHex,omitempty"`
	MediaIDs    []string `json:"mediaIds"`
}

type RawVariantAttribute struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Type   string              `json:"type"`
	Values []RawAttributeValue `json:"values"`
}

type RawVariantCombination struct {
	ID                string    `json:"id"`
	SKU               string    `json:"sku"`
	AttributeValueIDs []string  `json:"attributeValueIds"`
	Price             RawAmount `json:"price"`
	OriginalPrice     RawAmount `json:"originalPrice"`
	StockQuantity     RawAmount `json:"stockQuantity"`
	StockStatus       RawCode   `json:"stockStatus"`
	IsDefault         bool      `json:"isDefault"`
	MediaIDs          []string  `json:"mediaIds"`
}

// RawListItem is the product shape returned by list, search and by-ids calls.
type RawListItem struct {
	ID                string              `json:"id"`
	Name              string              `json:"name"`
	ShortDescription  string              `json:"shortDescription,omitempty"`
	Description       string              `json:"description,omitempty"`
	Type              RawCode             `json:"type"`
	Status            RawCode             `json:"status"`
	StockStatus       RawCode             `json:"stockStatus"`
	Price             RawAmount           `json:"price,omitempty"`
	OriginalPrice     RawAmount           `json:"originalPrice,omitempty"`
	StockQuantity     RawAmount           `json:"stockQuantity,omitempty"`
	Currency          string              `json:"currency,omitempty"`
	PriceRange        *RawPriceRange      `json:"priceRange,omitempty"`
	CategoryIDs       []string            `json:"categoryIds"`
	Tags              []string            `json:"tags"`
	FeaturedImages    []RawMedia          `json:"featuredImages"`
	SelectedVariant   *RawSelectedVariant `json:"selectedVariant,omitempty"`
	ColorVariants     []RawColorVariant   `json:"colorVariants"`
	AvailableFromDate string              `json:"availableFromDate,omitempty"`
	IsFeatured        bool                `json:"isFeatured"`
	CreatedAt         string              `json:"createdAt,omitempty"`
	UpdatedAt         string              `json:"updatedAt,omitempty"`
}

// RawDetail is the product shape returned by the detail and mutation calls.
type RawDetail struct {
	RawListItem
	Media                 []RawMedia              `json:"media"`
	PhysicalProductConfig *RawPhysicalConfig      `json:"physicalProductConfig,omitempty"`
	VariantAttributes     []RawVariantAttribute   `json:"variantAttributes"`
	VariantCombinations   []RawVariantCombination `json:"variantCombinations"`
	DefaultVariantID      string                  `json:"defaultVariantId,omitempty"`
}

// PageMeta mirrors the upstream pagination envelope.
type PageMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// ListPage is a paginated collection of raw list items.
type ListPage struct {
	Products []RawListItem `json:"products"`
	Meta     PageMeta      `json:"meta"`
}
