// Package state tracks loading flags and last errors per operation class.
package state

import (
	"sync"

	"catalog-service/errors"
)

// OpClass groups actions that share one loading flag and one error slot.
type OpClass string

const (
	ClassList    OpClass = "list"
	ClassByIDs   OpClass = "by-ids"
	ClassDetail  OpClass = "detail"
	ClassSubmit  OpClass = "submit"
	ClassFilters OpClass = "filters"
	ClassSearch  OpClass = "search"
)

// Classes lists every operation class.
var Classes = []OpClass{ClassList, ClassByIDs, ClassDetail, ClassSubmit, ClassFilters, ClassSearch}

// Action is a named operation.
type Action string

const (
	ActionLoadProducts    Action = "load-products"
	ActionLoadFeatured    Action = "load-featured"
	ActionLoadRecommended Action = "load-recommended"
	ActionLoadByIDs       Action = "load-by-ids"
	ActionLoadDetail      Action = "load-detail"
	ActionCreate          Action = "create"
	ActionUpdate          Action = "update"
	ActionDelete          Action = "delete"
	ActionBulkDelete      Action = "bulk-delete"
	ActionLoadFilters     Action = "load-filters"
	ActionSearch          Action = "search"
)

// actionClasses is the only place an action is tied to a class.
var actionClasses = map[Action]OpClass{
	ActionLoadProducts:    ClassList,
	ActionLoadFeatured:    ClassList,
	ActionLoadRecommended: ClassList,
	ActionLoadByIDs:       ClassByIDs,
	ActionLoadDetail:      ClassDetail,
	ActionCreate:          ClassSubmit,
	ActionUpdate:          ClassSubmit,
	ActionDelete:          ClassSubmit,
	ActionBulkDelete:      ClassSubmit,
	ActionLoadFilters:     ClassFilters,
	ActionSearch:          ClassSearch,
}

// ClassOf returns the class of a, or false for an unknown action.
func ClassOf(a Action) (OpClass, bool) {
	c, ok := actionClasses[a]
	return c, ok
}

// Flags is a snapshot of the loading flags.
type Flags struct {
	IsLoading        bool `json:"isLoading"`
	IsLoadingByIDs   bool `json:"isLoadingByIds"`
	IsLoadingDetail  bool `json:"isLoadingDetail"`
	IsSubmitting     bool `json:"isSubmitting"`
	IsLoadingFilters bool `json:"isLoadingFilters"`
	IsSearching      bool `json:"isSearching"`
}

// Busy aggregates the flags that block the main view. By-ids and detail
// loads run alongside it.
func (f Flags) Busy() bool {
	return f.IsLoading || f.IsSubmitting || f.IsLoadingFilters || f.IsSearching
}

// Machine is safe for concurrent use. Each class keeps an in-flight count so
// merged operations leave the flag set until the last one finishes.
type Machine struct {
	mu       sync.RWMutex
	inFlight map[OpClass]int
	errs     map[OpClass]*errors.OperationError
}

func NewMachine() *Machine {
	return &Machine{
		inFlight: make(map[OpClass]int),
		errs:     make(map[OpClass]*errors.OperationError),
	}
}

// Start marks a of its class as loading.
func (m *Machine) Start(a Action) OpClass {
	c := mustClass(a)
	m.mu.Lock()
	m.inFlight[c]++
	m.mu.Unlock()
	return c
}

// Succeed finishes one operation of a's class and clears the class error.
func (m *Machine) Succeed(a Action) {
	c := mustClass(a)
	m.mu.Lock()
	m.finishLocked(c)
	delete(m.errs, c)
	m.mu.Unlock()
}

// Fail finishes one operation of a's class and records err as its last error.
func (m *Machine) Fail(a Action, err *errors.OperationError) {
	c := mustClass(a)
	m.mu.Lock()
	m.finishLocked(c)
	if err != nil {
		m.errs[c] = err
	}
	m.mu.Unlock()
}

// Abandon finishes one operation without touching the error slot. Superseded
// requests end this way.
func (m *Machine) Abandon(a Action) {
	c := mustClass(a)
	m.mu.Lock()
	m.finishLocked(c)
	m.mu.Unlock()
}

func (m *Machine) finishLocked(c OpClass) {
	if m.inFlight[c] > 0 {
		m.inFlight[c]--
	}
}

// ClearError empties the error slot of c. Loading flags are untouched.
func (m *Machine) ClearError(c OpClass) {
	m.mu.Lock()
	delete(m.errs, c)
	m.mu.Unlock()
}

// ClearErrors empties every error slot. Loading flags are untouched.
func (m *Machine) ClearErrors() {
	m.mu.Lock()
	m.errs = make(map[OpClass]*errors.OperationError)
	m.mu.Unlock()
}

func (m *Machine) Loading(c OpClass) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inFlight[c] > 0
}

func (m *Machine) Flags() Flags {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Flags{
		IsLoading:        m.inFlight[ClassList] > 0,
		IsLoadingByIDs:   m.inFlight[ClassByIDs] > 0,
		IsLoadingDetail:  m.inFlight[ClassDetail] > 0,
		IsSubmitting:     m.inFlight[ClassSubmit] > 0,
		IsLoadingFilters: m.inFlight[ClassFilters] > 0,
		IsSearching:      m.inFlight[ClassSearch] > 0,
	}
}

func (m *Machine) Busy() bool {
	return m.Flags().Busy()
}

func (m *Machine) Error(c OpClass) *errors.OperationError {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errs[c]
}

// Errors returns the non-empty error slots.
func (m *Machine) Errors() map[OpClass]*errors.OperationError {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[OpClass]*errors.OperationError, len(m.errs))
	for c, err := range m.errs {
		out[c] = err
	}
	return out
}

func mustClass(a Action) OpClass {
	c, ok := actionClasses[a]
	if !ok {
		panic("state: unknown action " + string(a))
	}
	return c
}
