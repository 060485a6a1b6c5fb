// Package model defines the core data structures for the delegation oracle.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yourorg/delegation-oracle/internal/types"
)

// ValueKind tags the variant held by a MetricValue
type ValueKind string

const (
	ValueNumeric ValueKind = "numeric"
	ValueText    ValueKind = "text"
	ValueBool    ValueKind = "bool"
)

// MetricValue is a validator's actual reading for one metric.
// Exactly one of the payload fields is meaningful, selected by Kind.
type MetricValue struct {
	Kind ValueKind `json:"kind"`
	Num  float64   `json:"num,omitempty"`
	Text string    `json:"text,omitempty"`
	Flag bool      `json:"flag,omitempty"`
}

// Numeric wraps a float reading
func Numeric(v float64) MetricValue {
	return MetricValue{Kind: ValueNumeric, Num: v}
}

// Text wraps a string reading
func Text(v string) MetricValue {
	return MetricValue{Kind: ValueText, Text: v}
}

// Bool wraps a boolean reading
func Bool(v bool) MetricValue {
	return MetricValue{Kind: ValueBool, Flag: v}
}

// String renders the value for logs and table output
func (v MetricValue) String() string {
	switch v.Kind {
	case ValueNumeric:
		return fmt.Sprintf("%g", v.Num)
	case ValueBool:
		return fmt.Sprintf("%t", v.Flag)
	default:
		return v.Text
	}
}

// ConstraintKind tags the variant held by a Constraint
type ConstraintKind string

const (
	ConstraintMin     ConstraintKind = "min"
	ConstraintMax     ConstraintKind = "max"
	ConstraintRange   ConstraintKind = "range"
	ConstraintEquals  ConstraintKind = "equals"
	ConstraintOneOf   ConstraintKind = "one_of"
	ConstraintBoolean ConstraintKind = "boolean"
	ConstraintCustom  ConstraintKind = "custom"
)

// Constraint is the requirement a program places on a metric.
// Custom constraints are an escape hatch: they always pass evaluation.
type Constraint struct {
	Kind   ConstraintKind `json:"kind"`
	Min    float64        `json:"min,omitempty"`
	Max    float64        `json:"max,omitempty"`
	Value  string         `json:"value,omitempty"`
	Values []string       `json:"values,omitempty"`
	Flag   bool           `json:"flag,omitempty"`
	Expr   string         `json:"expr,omitempty"`
}

// Min requires a numeric reading >= v
func Min(v float64) Constraint { return Constraint{Kind: ConstraintMin, Min: v} }

// Max requires a numeric reading <= v
func Max(v float64) Constraint { return Constraint{Kind: ConstraintMax, Max: v} }

// Range requires a numeric reading within [min, max]
func Range(min, max float64) Constraint {
	return Constraint{Kind: ConstraintRange, Min: min, Max: max}
}

// Equals requires a text reading equal to v
func Equals(v string) Constraint { return Constraint{Kind: ConstraintEquals, Value: v} }

// OneOf requires a text reading contained in values
func OneOf(values ...string) Constraint {
	return Constraint{Kind: ConstraintOneOf, Values: values}
}

// Boolean requires a bool reading equal to v
func Boolean(v bool) Constraint { return Constraint{Kind: ConstraintBoolean, Flag: v} }

// Custom carries an opaque requirement that is never evaluated
func Custom(expr string) Constraint { return Constraint{Kind: ConstraintCustom, Expr: expr} }

// String renders the constraint the way drift reports display it
func (c Constraint) String() string {
	switch c.Kind {
	case ConstraintMin:
		return fmt.Sprintf(">= %g", c.Min)
	case ConstraintMax:
		return fmt.Sprintf("<= %g", c.Max)
	case ConstraintRange:
		return fmt.Sprintf("[%g, %g]", c.Min, c.Max)
	case ConstraintEquals:
		return fmt.Sprintf("== %s", c.Value)
	case ConstraintOneOf:
		return fmt.Sprintf("one of [%s]", strings.Join(c.Values, ", "))
	case ConstraintBoolean:
		return fmt.Sprintf("== %t", c.Flag)
	default:
		return c.Expr
	}
}

// Equal reports whether two constraints are structurally identical
func (c Constraint) Equal(other Constraint) bool {
	if c.Kind != other.Kind || c.Min != other.Min || c.Max != other.Max ||
		c.Value != other.Value || c.Flag != other.Flag || c.Expr != other.Expr {
		return false
	}
	if len(c.Values) != len(other.Values) {
		return false
	}
	for i := range c.Values {
		if c.Values[i] != other.Values[i] {
			return false
		}
	}
	return true
}

// Criterion is one named eligibility rule
type Criterion struct {
	// Name identifies the rule within its criteria set (diff key)
	Name string `json:"name"`

	// Metric the rule constrains
	Metric types.MetricKey `json:"metric"`

	// Constraint the validator's reading must satisfy
	Constraint Constraint `json:"constraint"`

	// Weight for the score calculation; nil means 1.0
	Weight *float64 `json:"weight,omitempty"`

	// Description explains the rule to operators
	Description string `json:"description"`
}

// EffectiveWeight returns the weight used in scoring: defaults to 1.0
// when absent and is clamped to >= 0.
func (c Criterion) EffectiveWeight() float64 {
	if c.Weight == nil {
		return 1.0
	}
	if *c.Weight < 0 {
		return 0.0
	}
	return *c.Weight
}

// Weight builds an optional weight value for criterion literals
func Weight(v float64) *float64 { return &v }

// CriteriaSet is the full collection of a program's rules at one point
// in time. Immutable once constructed.
type CriteriaSet struct {
	Program     types.ProgramID `json:"program"`
	FetchedAt   time.Time       `json:"fetched_at"`
	SourceURL   string          `json:"source_url"`
	Criteria    []Criterion     `json:"criteria"`
	ContentHash string          `json:"content_hash"`
}

// NewCriteriaSet constructs a set and stamps it with a deterministic
// digest of the canonicalized criteria list. Two sets with equal hashes
// are structurally identical regardless of fetch time.
func NewCriteriaSet(program types.ProgramID, sourceURL string, criteria []Criterion) CriteriaSet {
	return CriteriaSet{
		Program:     program,
		FetchedAt:   time.Now().UTC(),
		SourceURL:   sourceURL,
		Criteria:    criteria,
		ContentHash: HashCriteria(criteria),
	}
}

// HashCriteria computes the sha256 hex digest of the canonical JSON
// encoding of a criteria list.
func HashCriteria(criteria []Criterion) string {
	canonical, err := json.Marshal(criteria)
	if err != nil {
		canonical = nil
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
