// Package reconcile diffs incoming rows against a preloaded entity set.
//
// Both import pipelines use it: the direct pipeline with CreateOrUpdate, the
// staged pipeline with AdditiveOnly. Rows are applied strictly in order and
// entities created earlier in the run are visible to later rows.
package reconcile

import (
	"errors"
	"strings"
)

// Policy decides what happens when a row matches an existing entity.
type Policy int

const (
	// CreateOrUpdate merges matching rows into the entity.
	CreateOrUpdate Policy = iota
	// AdditiveOnly leaves matching entities untouched.
	AdditiveOnly
)

// Outcome is the effect a single row had on the plan.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeUpdated  Outcome = "updated"
	OutcomeExisting Outcome = "existing"
)

// ErrEmptyKey is returned when a row normalizes to an empty key.
var ErrEmptyKey = errors.New("empty key")

// Rules wires entity type T to incoming row type R.
type Rules[T any, R any] struct {
	Policy Policy
	// RowKey and EntityKey must produce comparable keys before Normalize.
	RowKey    func(R) string
	EntityKey func(*T) string
	// Normalize is applied to both keys; nil means strings.TrimSpace.
	Normalize func(string) string
	// Create builds a new entity from a row.
	Create func(R) (*T, error)
	// Merge applies a row onto an existing entity. It must not modify the
	// entity when it returns an error. Required for CreateOrUpdate.
	Merge func(*T, R) error
}

// Plan is the deduplicated write set produced by a run.
type Plan[T any] struct {
	Create   []*T
	Update   []*T
	Existing []*T
}

// Reconciler accumulates a Plan from rows applied in file order.
type Reconciler[T any, R any] struct {
	rules    Rules[T, R]
	index    map[string]*T
	created  map[*T]struct{}
	touched  map[*T]struct{}
	existing map[*T]struct{}
	plan     Plan[T]
}

// New seeds a reconciler with the preloaded entities. Later duplicates of a
// key in existing are ignored.
func New[T any, R any](rules Rules[T, R], existing []*T) (*Reconciler[T, R], error) {
	if rules.RowKey == nil || rules.EntityKey == nil || rules.Create == nil {
		return nil, errors.New("reconcile: RowKey, EntityKey and Create are required")
	}
	if rules.Policy == CreateOrUpdate && rules.Merge == nil {
		return nil, errors.New("reconcile: Merge is required for CreateOrUpdate")
	}
	if rules.Normalize == nil {
		rules.Normalize = strings.TrimSpace
	}

	r := &Reconciler[T, R]{
		rules:    rules,
		index:    make(map[string]*T, len(existing)),
		created:  map[*T]struct{}{},
		touched:  map[*T]struct{}{},
		existing: map[*T]struct{}{},
	}
	for _, entity := range existing {
		key := rules.Normalize(rules.EntityKey(entity))
		if key == "" {
			continue
		}
		if _, dup := r.index[key]; !dup {
			r.index[key] = entity
		}
	}
	return r, nil
}

// Key returns the normalized key for row.
func (r *Reconciler[T, R]) Key(row R) string {
	return r.rules.Normalize(r.rules.RowKey(row))
}

// Lookup returns the entity currently bound to key, including entities
// created earlier in this run.
func (r *Reconciler[T, R]) Lookup(key string) (*T, bool) {
	entity, ok := r.index[r.rules.Normalize(key)]
	return entity, ok
}

// IsCreated reports whether entity was created by this run.
func (r *Reconciler[T, R]) IsCreated(entity *T) bool {
	_, ok := r.created[entity]
	return ok
}

// Apply classifies one row and records its effect. On error the plan is
// unchanged.
func (r *Reconciler[T, R]) Apply(row R) (Outcome, *T, error) {
	key := r.Key(row)
	if key == "" {
		return "", nil, ErrEmptyKey
	}

	if entity, ok := r.index[key]; ok {
		if r.rules.Policy == AdditiveOnly {
			if _, created := r.created[entity]; !created {
				if _, seen := r.existing[entity]; !seen {
					r.existing[entity] = struct{}{}
					r.plan.Existing = append(r.plan.Existing, entity)
				}
			}
			return OutcomeExisting, entity, nil
		}

		if err := r.rules.Merge(entity, row); err != nil {
			return "", nil, err
		}
		if _, created := r.created[entity]; !created {
			if _, seen := r.touched[entity]; !seen {
				r.touched[entity] = struct{}{}
				r.plan.Update = append(r.plan.Update, entity)
			}
		}
		return OutcomeUpdated, entity, nil
	}

	entity, err := r.rules.Create(row)
	if err != nil {
		return "", nil, err
	}
	r.index[key] = entity
	r.created[entity] = struct{}{}
	r.plan.Create = append(r.plan.Create, entity)
	return OutcomeCreated, entity, nil
}

// Plan returns the accumulated write set. Slices are shared with the
// reconciler; callers should stop applying rows first.
func (r *Reconciler[T, R]) Plan() Plan[T] {
	return r.plan
}
