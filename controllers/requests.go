package controllers

import (
	"errors"
	"fmt"
	"strings"

	"catalog-service/query"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// MaxSideListLen caps the featured and recommended list sizes.
const MaxSideListLen = 48

// FiltersRequest is the body of the open and filters endpoints.
type FiltersRequest struct {
	SortField     *string           `json:"sortField" validate:"omitempty,min=1,max=64"`
	SortDirection *string           `json:"sortDirection" validate:"omitempty,oneof=asc desc"`
	PageSize      *int              `json:"pageSize" validate:"omitempty,min=1,max=100"`
	Values        map[string]string `json:"values" validate:"omitempty,max=32,dive,keys,min=1,max=64,filterkey,endkeys,max=256"`
}

func (r FiltersRequest) patch() query.Patch {
	var direction *string
	if r.SortDirection != nil {
		d := strings.ToLower(*r.SortDirection)
		direction = &d
	}
	return query.Patch{
		SortField:     r.SortField,
		SortDirection: direction,
		PageSize:      r.PageSize,
		Values:        r.Values,
	}
}

type LookupRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=100,dive,required,max=64"`
}

type RecommendedRequest struct {
	ProductID string `json:"productId" validate:"omitempty,max=64"`
	Limit     int    `json:"limit" validate:"omitempty,min=1,max=48"`
}

type VariantRequest struct {
	CombinationID string `json:"combinationId" validate:"required,max=64"`
}

type SearchRequest struct {
	Query   string            `json:"query" validate:"max=200"`
	Filters map[string]string `json:"filters" validate:"omitempty,max=32,dive,keys,min=1,max=64,filterkey,endkeys,max=256"`
}

type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=100,dive,required,max=64"`
}

// RequestValidator wraps validator/v10 with the catalog's custom rules.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", notBlank); err != nil {
		panic(fmt.Sprintf("failed to register notblank validation: %v", err))
	}
	if err := v.RegisterValidation("filterkey", filterKey); err != nil {
		panic(fmt.Sprintf("failed to register filterkey validation: %v", err))
	}
	return &RequestValidator{validate: v}
}

// Struct validates s and flattens the failures into one message per field.
func (rv *RequestValidator) Struct(s interface{}) error {
	err := rv.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Price checks a monetary amount is not negative.
func (rv *RequestValidator) Price(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("%s must not be negative", field)
	}
	return nil
}

// filterKey rejects filter names that would override pagination or sorting.
func filterKey(fl validator.FieldLevel) bool {
	return !query.IsReserved(strings.TrimSpace(fl.Field().String()))
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
