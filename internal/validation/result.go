// Package validation aggregates field level rules over the per-stage data
// snapshots of an order. Evaluation is pure: no I/O and no panics escape.
package validation

import (
	"fmt"
	"sort"
)

// Result is a field to messages map plus the derived validity flag.
type Result struct {
	Errors  map[string][]string `json:"errors"`
	IsValid bool                `json:"is_valid"`
}

// Valid returns an empty, valid result.
func Valid() Result {
	return Result{Errors: map[string][]string{}, IsValid: true}
}

// Add records a message against field.
func (r *Result) Add(field, message string) {
	if r.Errors == nil {
		r.Errors = map[string][]string{}
	}
	for _, existing := range r.Errors[field] {
		if existing == message {
			return
		}
	}
	r.Errors[field] = append(r.Errors[field], message)
	r.IsValid = false
}

// Merge copies other's errors into r, prefixing each field when prefix is set.
func (r *Result) Merge(prefix string, other Result) {
	for field, messages := range other.Errors {
		key := field
		if prefix != "" {
			key = prefix + "." + field
		}
		for _, msg := range messages {
			r.Add(key, msg)
		}
	}
}

// Fields returns the failing field names in a stable order.
func (r Result) Fields() []string {
	fields := make([]string, 0, len(r.Errors))
	for field := range r.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Rule is one declarative predicate over a snapshot. Check returns true when
// the snapshot satisfies the rule.
type Rule[T any] struct {
	Field   string
	Message string
	Check   func(T) bool
}

// Evaluate runs every rule against snapshot. A panicking rule is reported as
// a failure of its own field instead of propagating.
func Evaluate[T any](snapshot T, rules []Rule[T]) Result {
	res := Valid()
	for _, rule := range rules {
		if ok, err := safeCheck(rule, snapshot); err != nil {
			res.Add(rule.Field, err.Error())
		} else if !ok {
			res.Add(rule.Field, rule.Message)
		}
	}
	return res
}

func safeCheck[T any](rule Rule[T], snapshot T) (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			err = fmt.Errorf("rule failed: %v", rec)
		}
	}()
	if rule.Check == nil {
		return true, nil
	}
	return rule.Check(snapshot), nil
}
