package clients

import (
	"context"
	"fmt"
	"net/url"

	"catalog-service/models"
)

// CatalogAPI is the upstream product catalog.
type CatalogAPI interface {
	List(ctx context.Context, params url.Values) (models.ListPage, error)
	Detail(ctx context.Context, id string) (models.RawDetail, error)
	ByIDs(ctx context.Context, ids []string) ([]models.RawListItem, error)
	Search(ctx context.Context, query string, params url.Values) (models.ListPage, error)
	AvailableFilters(ctx context.Context) ([]models.FilterDefinition, error)
	Create(ctx context.Context, in models.ProductInput) (models.RawDetail, error)
	Update(ctx context.Context, id string, in models.ProductInput) (models.RawDetail, error)
	Delete(ctx context.Context, id string) error
	BulkDelete(ctx context.Context, ids []string) ([]string, error)
}

// Operation names used in TransportError.
const (
	OpList       = "list"
	OpDetail     = "detail"
	OpByIDs      = "by-ids"
	OpSearch     = "search"
	OpFilters    = "available-filters"
	OpCreate     = "create"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpBulkDelete = "bulk-delete"
)

// TransportError is any failure talking to the catalog API: a network error,
// a non-2xx status or an undecodable body. Error returns the original message.
type TransportError struct {
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func newTransportError(op string, status int, err error) *TransportError {
	return &TransportError{Operation: op, StatusCode: status, Message: err.Error(), Err: err}
}

func statusError(op string, status int, body []byte) *TransportError {
	return &TransportError{
		Operation:  op,
		StatusCode: status,
		Message:    fmt.Sprintf("upstream error: status=%d body=%s", status, string(body)),
	}
}
