package catalog

import (
	"time"

	apperrors "catalog-service/errors"
	"catalog-service/models"
	"catalog-service/query"
	"catalog-service/state"
	"catalog-service/store"
)

// ViewModel is everything a consumer renders. It is derived on every call and
// never stored.
type ViewModel struct {
	Products      []models.Product `json:"products"`
	Featured      []models.Product `json:"featured"`
	Recommended   []models.Product `json:"recommended"`
	SearchResults []models.Product `json:"searchResults"`
	SearchQuery   string           `json:"searchQuery,omitempty"`
	SearchTotal   int64            `json:"searchTotal"`

	SelectedProduct     *models.Product            `json:"selectedProduct,omitempty"`
	SelectedCombination *models.VariantCombination `json:"selectedCombination,omitempty"`
	SelectedStock       *StockInfo                 `json:"selectedStock,omitempty"`

	state.Flags
	Busy   bool                                        `json:"busy"`
	Errors map[state.OpClass]*apperrors.OperationError `json:"errors"`

	Filters     query.Filters `json:"filters"`
	Page        int           `json:"page"`
	PageSize    int           `json:"pageSize"`
	Total       int64         `json:"total"`
	TotalPages  int           `json:"totalPages"`
	ShowingFrom int           `json:"showingFrom"`
	ShowingTo   int           `json:"showingTo"`
	HasMore     bool          `json:"hasMore"`
	IsEmpty     bool          `json:"isEmpty"`
	IsStale     bool          `json:"isStale"`
	LastFetched *time.Time    `json:"lastFetched,omitempty"`

	FilterDefinitions []models.FilterDefinition `json:"filterDefinitions"`
}

// View projects the current state.
func (e *Engine) View() ViewModel {
	snap := e.query.Snapshot()
	flags := e.machine.Flags()
	now := e.now()

	vm := ViewModel{
		Products:      e.store.Resolve(store.ViewCurrentPage),
		Featured:      e.store.Resolve(store.ViewFeatured),
		Recommended:   e.store.Resolve(store.ViewRecommended),
		SearchResults: e.store.Resolve(store.ViewSearch),
		Flags:         flags,
		Busy:          flags.Busy(),
		Errors:        e.machine.Errors(),
		Filters:       snap.Filters,
		Page:          snap.Filters.Page,
		PageSize:      snap.Filters.PageSize,
		Total:         snap.Total,
		TotalPages:    snap.TotalPages,
		HasMore:       snap.HasMore(),
		IsStale:       isStale(snap.LastFetched, now, e.cfg.CacheTimeout),
	}
	vm.ShowingFrom, vm.ShowingTo = showingRange(vm.Page, vm.PageSize, vm.Total)
	vm.IsEmpty = len(vm.Products) == 0 && !flags.IsLoading
	if !snap.LastFetched.IsZero() {
		t := snap.LastFetched
		vm.LastFetched = &t
	}

	e.mu.RLock()
	vm.SearchQuery = e.searchQuery
	vm.SearchTotal = e.searchTotal
	vm.FilterDefinitions = append([]models.FilterDefinition{}, e.filterDefinitions...)
	selectedID, combinationID := e.selectedID, e.selectedCombinationID
	e.mu.RUnlock()

	if selectedID != "" {
		if p, ok := e.store.GetByID(selectedID); ok {
			vm.SelectedProduct = &p
			var combo *models.VariantCombination
			if c, ok := p.Combination(combinationID); ok {
				combo = &c
				vm.SelectedCombination = combo
			}
			stock := StockDisplay(p, combo)
			vm.SelectedStock = &stock
		}
	}
	return vm
}

func isStale(lastFetched, now time.Time, maxAge time.Duration) bool {
	return lastFetched.IsZero() || now.Sub(lastFetched) > maxAge
}

// showingRange returns the 1-based positions of the first and last item of
// page, or zeros when there is nothing to show.
func showingRange(page, pageSize int, total int64) (from, to int) {
	if total <= 0 || page <= 0 || pageSize <= 0 {
		return 0, 0
	}
	from = (page-1)*pageSize + 1
	if int64(from) > total {
		return 0, 0
	}
	to = page * pageSize
	if int64(to) > total {
		to = int(total)
	}
	return from, to
}
