package entity

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// ConditionType tags the payload carried by a Condition
type ConditionType string

const (
	ConditionTypeAmountRange     ConditionType = "AMOUNT_RANGE"
	ConditionTypeLocation        ConditionType = "LOCATION"
	ConditionTypeExpenseCategory ConditionType = "EXPENSE_CATEGORY"
	ConditionTypeFormFieldValue  ConditionType = "FORM_FIELD_VALUE"
)

// Operator compares a form field value against a condition's comparison value
type Operator string

const (
	OperatorEquals             Operator = "EQUALS"
	OperatorNotEquals          Operator = "NOT_EQUALS"
	OperatorGreaterThan        Operator = "GREATER_THAN"
	OperatorLessThan           Operator = "LESS_THAN"
	OperatorGreaterThanOrEqual Operator = "GREATER_THAN_OR_EQUAL"
	OperatorLessThanOrEqual    Operator = "LESS_THAN_OR_EQUAL"
	OperatorContains           Operator = "CONTAINS"
)

var validOperators = map[Operator]bool{
	OperatorEquals:             true,
	OperatorNotEquals:          true,
	OperatorGreaterThan:        true,
	OperatorLessThan:           true,
	OperatorGreaterThanOrEqual: true,
	OperatorLessThanOrEqual:    true,
	OperatorContains:           true,
}

// IsValid returns true if the operator is known
func (o Operator) IsValid() bool {
	return validOperators[o]
}

// ValueType controls how both sides of a FORM_FIELD_VALUE comparison are coerced
type ValueType string

const (
	ValueTypeString  ValueType = "STRING"
	ValueTypeNumber  ValueType = "NUMBER"
	ValueTypeBoolean ValueType = "BOOLEAN"
)

// IsValid returns true if the value type is known
func (v ValueType) IsValid() bool {
	return v == ValueTypeString || v == ValueTypeNumber || v == ValueTypeBoolean
}

// Condition is a predicate over request attributes. The set of implementations
// is closed; evaluators switch over the concrete types exhaustively.
type Condition interface {
	Type() ConditionType
	sealedCondition()
}

// AmountRangeCondition matches when the request amount lies in [MinAmount, MaxAmount].
// A nil bound is unbounded on that side.
type AmountRangeCondition struct {
	MinAmount *float64
	MaxAmount *float64
}

// LocationCondition matches a request raised for a specific location
type LocationCondition struct {
	LocationID string
}

// ExpenseCategoryCondition matches a request in a specific expense category
type ExpenseCategoryCondition struct {
	ExpenseCategoryID string
}

// FormFieldCondition compares an arbitrary request field against a value
type FormFieldCondition struct {
	SourceFieldName string
	Operator        Operator
	ComparisonValue any
	ValueType       ValueType
}

// UnknownCondition preserves a stored condition whose type this build does not know.
// It never matches.
type UnknownCondition struct {
	RawType string
}

func (AmountRangeCondition) Type() ConditionType     { return ConditionTypeAmountRange }
func (LocationCondition) Type() ConditionType        { return ConditionTypeLocation }
func (ExpenseCategoryCondition) Type() ConditionType { return ConditionTypeExpenseCategory }
func (FormFieldCondition) Type() ConditionType       { return ConditionTypeFormFieldValue }
func (c UnknownCondition) Type() ConditionType       { return ConditionType(c.RawType) }

func (AmountRangeCondition) sealedCondition()     {}
func (LocationCondition) sealedCondition()        {}
func (ExpenseCategoryCondition) sealedCondition() {}
func (FormFieldCondition) sealedCondition()       {}
func (UnknownCondition) sealedCondition()         {}

// ConditionSpec is the flat wire/storage shape of a Condition
type ConditionSpec struct {
	Type              ConditionType `json:"type" yaml:"type"`
	MinAmount         *float64      `json:"minAmount,omitempty" yaml:"minAmount,omitempty"`
	MaxAmount         *float64      `json:"maxAmount,omitempty" yaml:"maxAmount,omitempty"`
	LocationID        *string       `json:"locationId,omitempty" yaml:"locationId,omitempty"`
	ExpenseCategoryID *string       `json:"expenseCategoryId,omitempty" yaml:"expenseCategoryId,omitempty"`
	SourceFieldName   *string       `json:"sourceFieldName,omitempty" yaml:"sourceFieldName,omitempty"`
	Operator          *Operator     `json:"operator,omitempty" yaml:"operator,omitempty"`
	ComparisonValue   any           `json:"comparisonValue,omitempty" yaml:"comparisonValue,omitempty"`
	ValueType         *ValueType    `json:"valueType,omitempty" yaml:"valueType,omitempty"`
}

// DecodeCondition converts a wire spec into its typed Condition.
// Unknown types decode to UnknownCondition so stored data stays readable;
// a known type with a missing payload is an error.
func DecodeCondition(spec ConditionSpec) (Condition, error) {
	switch ConditionType(strings.ToUpper(string(spec.Type))) {
	case ConditionTypeAmountRange:
		if spec.MinAmount == nil && spec.MaxAmount == nil {
			return nil, fmt.Errorf("%s condition requires minAmount or maxAmount", ConditionTypeAmountRange)
		}
		return AmountRangeCondition{MinAmount: spec.MinAmount, MaxAmount: spec.MaxAmount}, nil

	case ConditionTypeLocation:
		if spec.LocationID == nil || *spec.LocationID == "" {
			return nil, fmt.Errorf("%s condition requires locationId", ConditionTypeLocation)
		}
		return LocationCondition{LocationID: *spec.LocationID}, nil

	case ConditionTypeExpenseCategory:
		if spec.ExpenseCategoryID == nil || *spec.ExpenseCategoryID == "" {
			return nil, fmt.Errorf("%s condition requires expenseCategoryId", ConditionTypeExpenseCategory)
		}
		return ExpenseCategoryCondition{ExpenseCategoryID: *spec.ExpenseCategoryID}, nil

	case ConditionTypeFormFieldValue:
		if spec.SourceFieldName == nil || *spec.SourceFieldName == "" {
			return nil, fmt.Errorf("%s condition requires sourceFieldName", ConditionTypeFormFieldValue)
		}
		if spec.Operator == nil {
			return nil, fmt.Errorf("%s condition requires operator", ConditionTypeFormFieldValue)
		}
		valueType := ValueTypeString
		if spec.ValueType != nil {
			valueType = *spec.ValueType
		}
		return FormFieldCondition{
			SourceFieldName: *spec.SourceFieldName,
			Operator:        *spec.Operator,
			ComparisonValue: spec.ComparisonValue,
			ValueType:       valueType,
		}, nil

	default:
		return UnknownCondition{RawType: string(spec.Type)}, nil
	}
}

// EncodeCondition converts a typed Condition into its wire spec
func EncodeCondition(c Condition) ConditionSpec {
	switch cond := c.(type) {
	case AmountRangeCondition:
		return ConditionSpec{Type: ConditionTypeAmountRange, MinAmount: cond.MinAmount, MaxAmount: cond.MaxAmount}
	case LocationCondition:
		return ConditionSpec{Type: ConditionTypeLocation, LocationID: strPtr(cond.LocationID)}
	case ExpenseCategoryCondition:
		return ConditionSpec{Type: ConditionTypeExpenseCategory, ExpenseCategoryID: strPtr(cond.ExpenseCategoryID)}
	case FormFieldCondition:
		op := cond.Operator
		vt := cond.ValueType
		return ConditionSpec{
			Type:            ConditionTypeFormFieldValue,
			SourceFieldName: strPtr(cond.SourceFieldName),
			Operator:        &op,
			ComparisonValue: cond.ComparisonValue,
			ValueType:       &vt,
		}
	case UnknownCondition:
		return ConditionSpec{Type: ConditionType(cond.RawType)}
	default:
		return ConditionSpec{}
	}
}

// DecodeConditions decodes a list of specs, stopping at the first error
func DecodeConditions(specs []ConditionSpec) ([]Condition, error) {
	conditions := make([]Condition, 0, len(specs))
	for i, spec := range specs {
		c, err := DecodeCondition(spec)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
		conditions = append(conditions, c)
	}
	return conditions, nil
}

// EncodeConditions encodes a list of conditions
func EncodeConditions(conditions []Condition) []ConditionSpec {
	specs := make([]ConditionSpec, 0, len(conditions))
	for _, c := range conditions {
		specs = append(specs, EncodeCondition(c))
	}
	return specs
}

// RequestContext carries the attributes of the request being routed
type RequestContext map[string]any

// Lookup resolves a field by name. Dotted names walk nested maps.
func (c RequestContext) Lookup(field string) (any, bool) {
	if c == nil || field == "" {
		return nil, false
	}
	if v, ok := c[field]; ok {
		return v, v != nil
	}

	parts := strings.Split(field, ".")
	var current any = map[string]any(c)
	for _, part := range parts {
		m, err := cast.ToStringMapE(current)
		if err != nil {
			return nil, false
		}
		next, ok := m[part]
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, current != nil
}

// Amount returns the numeric request amount
func (c RequestContext) Amount() (float64, bool) {
	v, ok := c.Lookup(ContextKeyAmount)
	if !ok {
		return 0, false
	}
	amount, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return amount, true
}

// LocationID returns the request's location identifier
func (c RequestContext) LocationID() (string, bool) {
	return c.stringValue(ContextKeyLocationID)
}

// ExpenseCategoryID returns the request's expense category identifier
func (c RequestContext) ExpenseCategoryID() (string, bool) {
	return c.stringValue(ContextKeyExpenseCategoryID)
}

// Merge returns a new context with the given values layered on top
func (c RequestContext) Merge(values map[string]any) RequestContext {
	merged := make(RequestContext, len(c)+len(values))
	for k, v := range c {
		merged[k] = v
	}
	for k, v := range values {
		merged[k] = v
	}
	return merged
}

func (c RequestContext) stringValue(key string) (string, bool) {
	v, ok := c.Lookup(key)
	if !ok {
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil || s == "" {
		return "", false
	}
	return s, true
}

func strPtr(s string) *string {
	return &s
}
