package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"catalog-service/catalog"
	apperrors "catalog-service/errors"
	"catalog-service/logger"
	"catalog-service/models"
	"catalog-service/state"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionHeader carries the consumer session id in both directions.
const SessionHeader = "X-Session-ID"

const DefaultContextTimeout = 10 * time.Second

// Sessions hands out the engine of a consumer session. *catalog.Registry
// satisfies it.
type Sessions interface {
	Get(id string) (*catalog.Engine, string, bool)
}

// CatalogHandler exposes one catalog engine per session over HTTP. Every
// intent endpoint answers with the resulting view.
type CatalogHandler struct {
	sessions  Sessions
	validator *RequestValidator
	timeout   time.Duration
}

func NewCatalogHandler(sessions Sessions, validator *RequestValidator, timeout time.Duration) *CatalogHandler {
	if timeout <= 0 {
		timeout = DefaultContextTimeout
	}
	return &CatalogHandler{sessions: sessions, validator: validator, timeout: timeout}
}

func (h *CatalogHandler) engine(c *gin.Context) *catalog.Engine {
	e, id, _ := h.sessions.Get(c.GetHeader(SessionHeader))
	c.Header(SessionHeader, id)
	return e
}

func (h *CatalogHandler) context(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// bind decodes the JSON body into req and validates it. An empty body is
// accepted when allowEmpty is set.
func (h *CatalogHandler) bind(c *gin.Context, req interface{}, allowEmpty bool) bool {
	if c.Request.ContentLength != 0 || !allowEmpty {
		if err := c.ShouldBindJSON(req); err != nil {
			reject(c, apperrors.ErrBadRequest, err.Error())
			return false
		}
	}
	if err := h.validator.Struct(req); err != nil {
		reject(c, apperrors.ErrValidation, err.Error())
		return false
	}
	return true
}

func reject(c *gin.Context, base *apperrors.Error, details string) {
	c.JSON(base.Code, gin.H{"error": base.Message, "details": details})
}

// respond writes the view, or the error next to the view.
func (h *CatalogHandler) respond(c *gin.Context, e *catalog.Engine, err error) {
	if err != nil {
		status, msg := statusOf(err)
		switch {
		case status == apperrors.ErrTimeout.Code:
			logger.Warn(c, "Catalog request timed out", zap.String("path", c.FullPath()))
		case status >= http.StatusInternalServerError:
			logger.Error(c, "Catalog request failed", err, zap.String("path", c.FullPath()))
		}
		c.JSON(status, gin.H{"error": msg, "view": e.View()})
		return
	}
	c.JSON(http.StatusOK, e.View())
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, catalog.ErrDuplicateSubmission), errors.Is(err, catalog.ErrSuperseded), errors.Is(err, catalog.ErrNoSelection):
		return apperrors.ErrConflict.Code, err.Error()
	case errors.Is(err, catalog.ErrEmptySubmission):
		return apperrors.ErrValidation.Code, err.Error()
	case errors.Is(err, catalog.ErrUnknownCombination):
		return apperrors.ErrNotFound.Code, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.ErrTimeout.Code, apperrors.ErrTimeout.Message
	}
	appErr := apperrors.From(err)
	return appErr.Code, appErr.Message
}

// GetView returns the session's current view without triggering any call.
func (h *CatalogHandler) GetView(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine(c).View())
}

// StreamView sends the session's view as a server-sent "view" event, first
// right away and then after every change to the session's product store.
func (h *CatalogHandler) StreamView(c *gin.Context) {
	e := h.engine(c)
	updates, stop := e.Store().Subscribe()
	defer stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("view", e.View())
	c.Writer.Flush()

	c.Stream(func(io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case _, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("view", e.View())
			return true
		}
	})
}

func (h *CatalogHandler) OpenPage(c *gin.Context) {
	var req FiltersRequest
	if !h.bind(c, &req, true) {
		return
	}
	e := h.engine(c)
	ctx, cancel := h.context(c)
	defer cancel()
	h.respond(c, e, e.OpenPage(ctx, req.patch()))
}

func (h *CatalogHandler) UpdateFilters(c *gin.Context) {
	var req FiltersRequest
	if !h.bind(c, &req, false) {
		return
	}
	e := h.engine(c)
	ctx, cancel := h.context(c)
	defer cancel()
	h.respond(c, e, e.UpdateFilters(ctx, req.patch()))
}

func (h *CatalogHandler) NextPage(c *gin.Context) {
	e := h.engine(c)
	ctx, cancel := h.context(c)
	defer cancel()
	h.respond(c, e, e.LoadNextPage(ctx))
}

// Refresh reloads page 1; with ?ifStale=true only a stale list is reloaded.
func (h *CatalogHandler) Refresh(c *gin.Context) {
	e := h.engine(c)
	ctx, cancel := h.context(c)
	defer cancel()
	if c.Query("ifStale") == "true" {
		h.respond(c, e, e.EnsureFresh(ctx))
		return
	}
	h.respond(c, e, e.Refresh(ctx))
}

func (h *CatalogHandler) LoadFeatured(c *gin.Context) {
	limit, err := optionalInt(c.Query("limit"), 1, MaxSideListLen)
	if err != nil {
		reject(c, apperrors.ErrValidation, "limit: "+err.Error())
		return
	}
	e := h.engine(c)
	ctx, cancel := h.context(c)
	defer cancel()
	h.respond(c, e, e.LoadFeatured(ctx, limit))
}

func (h *CatalogHandler) LoadRecommended(c *gin.Context) {
	var req RecommendedRequest
	if !h.bind(c, &req, true) {
		return
	}
	e := h.engine(c)
	ctx, cancel := h.context(c)
	defer cancel()
	h.respond(c, e, e.LoadRecommended(ctx, req.ProductID, req.Limit))
}

// LookupProducts resolves ids and returns the known products in request order.
func (h *CatalogHandler) LookupProducts(c *gin.Context) {
	var req LookupRequest
	if !h.bind(c, &req, false) {
		return
	}
	e := h.engine(c)
	ctx, cancel := h.context(c)
	defer cancel()
	products, err := e.LoadProductsByIDs(ctx, req.IDs)
	if products == nil {
		products = []models.Product{}
	}
	if err != nil {
		status, msg := statusOf(err)
		c.JSON(status, gin.H{"error": msg, "products": products})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *CatalogHandler) SelectProduct(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	e := h.engine(c)
	ctx, cancel := h.context(c)
	defer cancel()
	_, err := e.SelectProduct(ctx, id)
	h.respond(c, e, err)
}

func (h *CatalogHandler) ClearSelection(c *gin.Context) {
	e := h.engine(c)
	e.ClearSelection()
	h.respond(c, e, nil)
}

func (h *CatalogHandler) SelectVariant(c *gin.Context) {
	var req VariantRequest
	if !h.bind(c, &req, false) {
		return
	}
	e := h.engine(c)
	_, err := e.SelectVariantCombination(req.CombinationID)
	h.respond(c, e, err)
}

func (h *CatalogHandler) Search(c *gin.Context) {
	var req SearchRequest
	if !h.bind(c, &req, false) {
		return
	}
	e := h.engine(c)
	ctx, cancel := h.context(c)
	defer cancel()
	h.respond(c, e, e.Search(ctx, req.Query, req.Filters))
}

func (h *CatalogHandler) LoadFilterDefinitions(c *gin.Context) {
	e := h.engine(c)
	ctx, cancel := h.context(c)
	defer cancel()
	h.respond(c, e, e.LoadFilterDefinitions(ctx))
}

// ClearErrors empties one error slot (?class=) or all of them.
func (h *CatalogHandler) ClearErrors(c *gin.Context) {
	e := h.engine(c)
	class := state.OpClass(c.Query("class"))
	if class == "" {
		e.ClearErrors()
		h.respond(c, e, nil)
		return
	}
	for _, known := range state.Classes {
		if known == class {
			e.ClearError(class)
			h.respond(c, e, nil)
			return
		}
	}
	reject(c, apperrors.ErrValidation, "unknown class "+string(class))
}

func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var in models.ProductInput
	if !h.bindProduct(c, &in) {
		return
	}
	e := h.engine(c)
	ctx, cancel := h.context(c)
	defer cancel()
	p, err := e.CreateProduct(ctx, in)
	if err != nil {
		h.respond(c, e, err)
		return
	}
	logger.Info(c, "Product created", zap.String("product_id", p.ID))
	c.JSON(http.StatusCreated, p)
}

func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	var in models.ProductInput
	if !h.bindProduct(c, &in) {
		return
	}
	e := h.engine(c)
	ctx, cancel := h.context(c)
	defer cancel()
	p, err := e.UpdateProduct(ctx, strings.TrimSpace(c.Param("id")), in)
	if err != nil {
		h.respond(c, e, err)
		return
	}
	logger.Info(c, "Product updated", zap.String("product_id", p.ID))
	c.JSON(http.StatusOK, p)
}

func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	e := h.engine(c)
	ctx, cancel := h.context(c)
	defer cancel()
	id := strings.TrimSpace(c.Param("id"))
	if err := e.DeleteProduct(ctx, id); err != nil {
		h.respond(c, e, err)
		return
	}
	logger.Info(c, "Product deleted", zap.String("product_id", id))
	c.Status(http.StatusNoContent)
}

func (h *CatalogHandler) BulkDeleteProducts(c *gin.Context) {
	var req BulkDeleteRequest
	if !h.bind(c, &req, false) {
		return
	}
	e := h.engine(c)
	ctx, cancel := h.context(c)
	defer cancel()
	deleted, err := e.BulkDeleteProducts(ctx, req.IDs)
	if err != nil {
		h.respond(c, e, err)
		return
	}
	logger.Info(c, "Products bulk deleted", zap.Strings("product_ids", deleted))
	c.JSON(http.StatusOK, gin.H{"deletedIds": deleted})
}

func (h *CatalogHandler) bindProduct(c *gin.Context, in *models.ProductInput) bool {
	if !h.bind(c, in, false) {
		return false
	}
	if err := h.validator.Price("price", in.Price); err != nil {
		reject(c, apperrors.ErrValidation, err.Error())
		return false
	}
	if in.OriginalPrice != nil {
		if err := h.validator.Price("originalPrice", *in.OriginalPrice); err != nil {
			reject(c, apperrors.ErrValidation, err.Error())
			return false
		}
	}
	return true
}

func optionalInt(raw string, lo, hi int) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be a number")
	}
	if n < lo || n > hi {
		return 0, errors.New("out of range")
	}
	return n, nil
}
