package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"catalog-service/models"

	"go.uber.org/zap"
)

const maxErrorBody = 4 << 10

var _ CatalogAPI = (*GatewayClient)(nil)

// GatewayClient talks JSON to the catalog API.
type GatewayClient struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

func NewGatewayClient(baseURL string, timeout time.Duration, log *zap.Logger) *GatewayClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &GatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (g *GatewayClient) Do(ctx context.Context, method, path string, query url.Values, headers http.Header, body io.Reader) (*http.Response, error) {
	u := g.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		for _, vv := range v {
			req.Header.Add(k, vv)
		}
	}

	return g.client.Do(req)
}

// call performs one request and decodes a 2xx body into out. Every failure
// comes back as a *TransportError tagged with op.
func (g *GatewayClient) call(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return newTransportError(op, 0, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(b)
	}

	start := time.Now()
	resp, err := g.Do(ctx, method, path, query, nil, body)
	if err != nil {
		return newTransportError(op, 0, err)
	}
	g.log.Debug("Catalog API call",
		zap.String("operation", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)
	if err := DecodeJSON(resp, out); err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			te.Operation = op
			return te
		}
		return newTransportError(op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// DecodeJSON closes resp and decodes its body into out. Statuses >= 400
// yield a *TransportError carrying the upstream body.
func DecodeJSON(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError("", resp.StatusCode, bytes.TrimSpace(body))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *GatewayClient) List(ctx context.Context, params url.Values) (models.ListPage, error) {
	var page models.ListPage
	err := g.call(ctx, OpList, http.MethodGet, "/products", params, nil, &page)
	return page, err
}

func (g *GatewayClient) Detail(ctx context.Context, id string) (models.RawDetail, error) {
	var detail models.RawDetail
	err := g.call(ctx, OpDetail, http.MethodGet, "/products/"+url.PathEscape(id), nil, nil, &detail)
	return detail, err
}

func (g *GatewayClient) ByIDs(ctx context.Context, ids []string) ([]models.RawListItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var resp struct {
		Products []models.RawListItem `json:"products"`
	}
	q := url.Values{"ids": {strings.Join(ids, ",")}}
	err := g.call(ctx, OpByIDs, http.MethodGet, "/products/by-ids", q, nil, &resp)
	return resp.Products, err
}

func (g *GatewayClient) Search(ctx context.Context, query string, params url.Values) (models.ListPage, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	q.Set("q", query)
	var page models.ListPage
	err := g.call(ctx, OpSearch, http.MethodGet, "/products/search", q, nil, &page)
	return page, err
}

func (g *GatewayClient) AvailableFilters(ctx context.Context) ([]models.FilterDefinition, error) {
	var resp struct {
		Filters []models.FilterDefinition `json:"filters"`
	}
	err := g.call(ctx, OpFilters, http.MethodGet, "/products/filters", nil, nil, &resp)
	return resp.Filters, err
}

func (g *GatewayClient) Create(ctx context.Context, in models.ProductInput) (models.RawDetail, error) {
	var detail models.RawDetail
	err := g.call(ctx, OpCreate, http.MethodPost, "/products", nil, in, &detail)
	return detail, err
}

func (g *GatewayClient) Update(ctx context.Context, id string, in models.ProductInput) (models.RawDetail, error) {
	var detail models.RawDetail
	err := g.call(ctx, OpUpdate, http.MethodPut, "/products/"+url.PathEscape(id), nil, in, &detail)
	return detail, err
}

func (g *GatewayClient) Delete(ctx context.Context, id string) error {
	return g.call(ctx, OpDelete, http.MethodDelete, "/products/"+url.PathEscape(id), nil, nil, nil)
}

func (g *GatewayClient) BulkDelete(ctx context.Context, ids []string) ([]string, error) {
	in := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}
	var resp struct {
		DeletedIDs []string `json:"deletedIds"`
	}
	if err := g.call(ctx, OpBulkDelete, http.MethodPost, "/products/bulk-delete", nil, in, &resp); err != nil {
		return nil, err
	}
	if resp.DeletedIDs == nil {
		return ids, nil
	}
	return resp.DeletedIDs, nil
}
