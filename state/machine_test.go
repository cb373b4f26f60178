package state

import (
	"fmt"
	"sync"
	"testing"

	"catalog-service/errors"

	"github.com/stretchr/testify/assert"
)

func opErr(a Action, msg string) *errors.OperationError {
	c, _ := ClassOf(a)
	return errors.NewOperationError(string(a), string(c), errors.SeverityError, fmt.Errorf("%s", msg))
}

func TestEveryActionHasAClass(t *testing.T) {
	for _, a := range []Action{
		ActionLoadProducts, ActionLoadFeatured, ActionLoadRecommended, ActionLoadByIDs,
		ActionLoadDetail, ActionCreate, ActionUpdate, ActionDelete, ActionBulkDelete,
		ActionLoadFilters, ActionSearch,
	} {
		_, ok := ClassOf(a)
		assert.True(t, ok, "action %s", a)
	}
	_, ok := ClassOf("teleport")
	assert.False(t, ok)
}

func TestByIDsAndListFlagsAreIndependent(t *testing.T) {
	orders := [][]string{
		{"start-list", "start-byids", "end-list", "end-byids"},
		{"start-list", "start-byids", "end-byids", "end-list"},
		{"start-byids", "start-list", "end-list", "end-byids"},
		{"start-byids", "start-list", "end-byids", "end-list"},
	}
	for _, order := range orders {
		m := NewMachine()
		listRunning, byIDsRunning := false, false
		for _, step := range order {
			switch step {
			case "start-list":
				m.Start(ActionLoadProducts)
				listRunning = true
			case "start-byids":
				m.Start(ActionLoadByIDs)
				byIDsRunning = true
			case "end-list":
				m.Succeed(ActionLoadProducts)
				listRunning = false
			case "end-byids":
				m.Fail(ActionLoadByIDs, opErr(ActionLoadByIDs, "boom"))
				byIDsRunning = false
			}
			f := m.Flags()
			assert.Equal(t, listRunning, f.IsLoading, "%v at %s", order, step)
			assert.Equal(t, byIDsRunning, f.IsLoadingByIDs, "%v at %s", order, step)
		}
		assert.Nil(t, m.Error(ClassList))
		assert.NotNil(t, m.Error(ClassByIDs))
	}
}

func TestFailClearsLoadingAndRecordsError(t *testing.T) {
	m := NewMachine()
	m.Start(ActionCreate)
	assert.True(t, m.Flags().IsSubmitting)

	m.Fail(ActionCreate, opErr(ActionCreate, "conflict"))

	assert.False(t, m.Flags().IsSubmitting)
	assert.Equal(t, "conflict", m.Error(ClassSubmit).Message)
	assert.Equal(t, "create", m.Error(ClassSubmit).Operation)
	assert.Len(t, m.Errors(), 1)
}

func TestSucceedClearsOnlyItsOwnError(t *testing.T) {
	m := NewMachine()
	m.Start(ActionSearch)
	m.Fail(ActionSearch, opErr(ActionSearch, "search down"))
	m.Start(ActionLoadProducts)
	m.Fail(ActionLoadProducts, opErr(ActionLoadProducts, "list down"))

	m.Start(ActionLoadProducts)
	m.Succeed(ActionLoadProducts)

	assert.Nil(t, m.Error(ClassList))
	assert.NotNil(t, m.Error(ClassSearch))
}

func TestClearErrorsLeavesFlags(t *testing.T) {
	m := NewMachine()
	m.Start(ActionLoadDetail)
	m.Start(ActionLoadFilters)
	m.Fail(ActionLoadFilters, opErr(ActionLoadFilters, "nope"))
	m.Start(ActionLoadFilters)

	m.ClearErrors()

	assert.Empty(t, m.Errors())
	f := m.Flags()
	assert.True(t, f.IsLoadingDetail)
	assert.True(t, f.IsLoadingFilters)

	m.Fail(ActionLoadFilters, opErr(ActionLoadFilters, "again"))
	m.ClearError(ClassFilters)
	assert.Nil(t, m.Error(ClassFilters))
	assert.True(t, m.Flags().IsLoadingDetail)
}

func TestMergedOperationsKeepFlagUntilLastFinishes(t *testing.T) {
	m := NewMachine()
	m.Start(ActionLoadByIDs)
	m.Start(ActionLoadByIDs)

	m.Succeed(ActionLoadByIDs)
	assert.True(t, m.Flags().IsLoadingByIDs)

	m.Abandon(ActionLoadByIDs)
	assert.False(t, m.Flags().IsLoadingByIDs)

	m.Abandon(ActionLoadByIDs)
	assert.False(t, m.Flags().IsLoadingByIDs)
}

func TestBusyExcludesByIDsAndDetail(t *testing.T) {
	m := NewMachine()
	m.Start(ActionLoadByIDs)
	m.Start(ActionLoadDetail)
	assert.False(t, m.Busy())

	for _, a := range []Action{ActionLoadProducts, ActionUpdate, ActionLoadFilters, ActionSearch} {
		m.Start(a)
		assert.True(t, m.Busy(), "action %s", a)
		m.Succeed(a)
		assert.False(t, m.Busy(), "action %s", a)
	}
}

func TestAbandonKeepsPreviousError(t *testing.T) {
	m := NewMachine()
	m.Start(ActionLoadProducts)
	m.Fail(ActionLoadProducts, opErr(ActionLoadProducts, "old"))
	m.Start(ActionLoadProducts)
	m.Abandon(ActionLoadProducts)

	assert.Equal(t, "old", m.Error(ClassList).Message)
	assert.False(t, m.Flags().IsLoading)
}

func TestConcurrentTransitions(t *testing.T) {
	m := NewMachine()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Start(ActionLoadByIDs)
			_ = m.Flags()
			m.Succeed(ActionLoadByIDs)
		}()
	}
	wg.Wait()
	assert.False(t, m.Flags().IsLoadingByIDs)
}

func TestUnknownActionPanics(t *testing.T) {
	assert.Panics(t, func() { NewMachine().Start("teleport") })
}
