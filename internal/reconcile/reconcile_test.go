package reconcile

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Key string
	Qty int
}

type row struct {
	Key string
	Qty int
}

func rules(policy Policy) Rules[item, row] {
	return Rules[item, row]{
		Policy:    policy,
		RowKey:    func(r row) string { return r.Key },
		EntityKey: func(i *item) string { return i.Key },
		Create: func(r row) (*item, error) {
			return &item{Key: strings.TrimSpace(r.Key), Qty: r.Qty}, nil
		},
		Merge: func(i *item, r row) error {
			if r.Qty < 0 {
				return errors.New("negative")
			}
			i.Qty = r.Qty
			return nil
		},
	}
}

func TestCreateOrUpdateSplitsCreatesAndUpdates(t *testing.T) {
	existing := &item{Key: "CAB-1", Qty: 1}
	rec, err := New(rules(CreateOrUpdate), []*item{existing})
	require.NoError(t, err)

	outcome, entity, err := rec.Apply(row{Key: "CAB-1", Qty: 5})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.Same(t, existing, entity)
	assert.Equal(t, 5, existing.Qty)

	outcome, _, err = rec.Apply(row{Key: " CAB-2 ", Qty: 2})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	plan := rec.Plan()
	require.Len(t, plan.Create, 1)
	require.Len(t, plan.Update, 1)
	assert.Equal(t, "CAB-2", plan.Create[0].Key)
}

func TestCreatedEntitiesAreVisibleToLaterRows(t *testing.T) {
	rec, err := New(rules(CreateOrUpdate), nil)
	require.NoError(t, err)

	_, first, err := rec.Apply(row{Key: "CAB-9", Qty: 1})
	require.NoError(t, err)
	outcome, second, err := rec.Apply(row{Key: "CAB-9", Qty: 7})
	require.NoError(t, err)

	assert.Equal(t, OutcomeUpdated, outcome)
	assert.Same(t, first, second)
	assert.Equal(t, 7, first.Qty)
	assert.True(t, rec.IsCreated(first))

	plan := rec.Plan()
	assert.Len(t, plan.Create, 1)
	assert.Empty(t, plan.Update, "an entity created in this run is never queued for update")
}

func TestRepeatedUpdatesQueueOnce(t *testing.T) {
	existing := &item{Key: "A"}
	rec, err := New(rules(CreateOrUpdate), []*item{existing})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _, err := rec.Apply(row{Key: "A", Qty: i})
		require.NoError(t, err)
	}
	assert.Len(t, rec.Plan().Update, 1)
}

func TestAdditiveOnlyNeverMerges(t *testing.T) {
	existing := &item{Key: "abc", Qty: 1}
	s := rules(AdditiveOnly)
	s.Merge = nil
	s.Normalize = func(k string) string { return strings.ToLower(strings.TrimSpace(k)) }
	rec, err := New(s, []*item{existing})
	require.NoError(t, err)

	outcome, _, err := rec.Apply(row{Key: "ABC", Qty: 99})
	require.NoError(t, err)
	assert.Equal(t, OutcomeExisting, outcome)
	assert.Equal(t, 1, existing.Qty)

	outcome, _, err = rec.Apply(row{Key: "new", Qty: 1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	outcome, _, err = rec.Apply(row{Key: "NEW", Qty: 2})
	require.NoError(t, err)
	assert.Equal(t, OutcomeExisting, outcome)

	plan := rec.Plan()
	assert.Len(t, plan.Create, 1)
	assert.Empty(t, plan.Update)
	assert.Equal(t, []*item{existing}, plan.Existing)
}

func TestFailedRowsLeavePlanUnchanged(t *testing.T) {
	existing := &item{Key: "A", Qty: 3}
	rec, err := New(rules(CreateOrUpdate), []*item{existing})
	require.NoError(t, err)

	_, _, err = rec.Apply(row{Key: "A", Qty: -1})
	require.Error(t, err)
	assert.Equal(t, 3, existing.Qty)

	_, _, err = rec.Apply(row{Key: "   "})
	require.ErrorIs(t, err, ErrEmptyKey)

	plan := rec.Plan()
	assert.Empty(t, plan.Create)
	assert.Empty(t, plan.Update)
}

func TestNewValidatesRules(t *testing.T) {
	s := rules(CreateOrUpdate)
	s.Merge = nil
	_, err := New(s, nil)
	require.Error(t, err)

	_, err = New(Rules[item, row]{}, nil)
	require.Error(t, err)
}
