package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FilterOption is one selectable value of a filter definition.
type FilterOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// FilterDefinition describes a filter the catalog API accepts.
type FilterDefinition struct {
	Key     string         `json:"key"`
	Label   string         `json:"label"`
	Type    string         `json:"type"` // select, multiselect, range, boolean
	Options []FilterOption `json:"options,omitempty"`
}

// ProductInput is the create/update body sent to the catalog API.
type ProductInput struct {
	Name              string           `json:"name" validate:"required,notblank,max=200"`
	Description       string           `json:"description" validate:"max=10000"`
	ShortDescription  string           `json:"shortDescription,omitempty" validate:"max=500"`
	Type              string           `json:"type,omitempty" validate:"omitempty,oneof=physical digital service virtual gift-card"`
	Status            string           `json:"status,omitempty" validate:"omitempty,oneof=draft published archived hidden"`
	Price             decimal.Decimal  `json:"price"`
	OriginalPrice     *decimal.Decimal `json:"originalPrice,omitempty"`
	Currency          string           `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	StockQuantity     *int             `json:"stockQuantity,omitempty" validate:"omitempty,gte=0"`
	StockStatus       string           `json:"stockStatus,omitempty"`
	CategoryIDs       []string         `json:"categoryIds" validate:"dive,required"`
	Tags              []string         `json:"tags" validate:"dive,max=50"`
	IsFeatured        bool             `json:"isFeatured"`
	AvailableFromDate string           `json:"availableFromDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// ChangeKind says what happened to the products named in a ChangeEvent.
type ChangeKind string

const (
	ChangeUpserted ChangeKind = "upserted"
	ChangeDeleted  ChangeKind = "deleted"
)

// ChangeEvent announces a confirmed catalog mutation to other instances.
type ChangeEvent struct {
	ID         string     `json:"id"`
	Kind       ChangeKind `json:"kind"`
	ProductIDs []string   `json:"productIds"`
	Origin     string     `json:"origin"`
	OccurredAt time.Time  `json:"occurredAt"`
}
