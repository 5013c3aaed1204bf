package workflow

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// ConditionEvaluator decides whether a single condition holds for a request.
// It never fails: malformed input evaluates to false with a diagnostic.
type ConditionEvaluator struct {
	logger *zap.Logger
}

// NewConditionEvaluator creates an evaluator; a nil logger discards diagnostics
func NewConditionEvaluator(logger *zap.Logger) *ConditionEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConditionEvaluator{logger: logger}
}

// Evaluate returns whether the condition matches the request context
func (e *ConditionEvaluator) Evaluate(c entity.Condition, rc entity.RequestContext) bool {
	matched, diagnostic := e.Explain(c, rc)
	if diagnostic != "" {
		e.logger.Debug("Condition evaluated to false",
			zap.String("condition_type", conditionTypeOf(c)),
			zap.String("diagnostic", diagnostic))
	}
	return matched
}

// Explain evaluates the condition and returns a diagnostic when the condition
// could not be evaluated normally (unknown type, missing field, coercion failure).
func (e *ConditionEvaluator) Explain(c entity.Condition, rc entity.RequestContext) (bool, string) {
	switch cond := c.(type) {
	case entity.AmountRangeCondition:
		amount, ok := rc.Amount()
		if !ok {
			return false, fmt.Sprintf("request has no numeric %q", entity.ContextKeyAmount)
		}
		if cond.MinAmount != nil && amount < *cond.MinAmount {
			return false, ""
		}
		if cond.MaxAmount != nil && amount > *cond.MaxAmount {
			return false, ""
		}
		return true, ""

	case entity.LocationCondition:
		id, ok := rc.LocationID()
		if !ok {
			return false, fmt.Sprintf("request has no %q", entity.ContextKeyLocationID)
		}
		return id == cond.LocationID, ""

	case entity.ExpenseCategoryCondition:
		id, ok := rc.ExpenseCategoryID()
		if !ok {
			return false, fmt.Sprintf("request has no %q", entity.ContextKeyExpenseCategoryID)
		}
		return id == cond.ExpenseCategoryID, ""

	case entity.FormFieldCondition:
		return e.compareField(cond, rc)

	case entity.UnknownCondition:
		e.logger.Warn("Unknown condition type", zap.String("condition_type", cond.RawType))
		return false, fmt.Sprintf("unknown condition type %q", cond.RawType)

	default:
		return false, "nil condition"
	}
}

func (e *ConditionEvaluator) compareField(cond entity.FormFieldCondition, rc entity.RequestContext) (bool, string) {
	actual, ok := rc.Lookup(cond.SourceFieldName)
	if !ok {
		return false, fmt.Sprintf("field %q is missing", cond.SourceFieldName)
	}

	switch cond.ValueType {
	case entity.ValueTypeNumber:
		return compareNumbers(cond, actual)
	case entity.ValueTypeBoolean:
		return compareBooleans(cond, actual)
	case entity.ValueTypeString, "":
		return compareStrings(cond, actual)
	default:
		return false, fmt.Sprintf("unknown value type %q", cond.ValueType)
	}
}

func compareNumbers(cond entity.FormFieldCondition, actual any) (bool, string) {
	left, err := cast.ToFloat64E(actual)
	if err != nil {
		return false, fmt.Sprintf("field %q is not a number: %v", cond.SourceFieldName, err)
	}
	right, err := cast.ToFloat64E(cond.ComparisonValue)
	if err != nil {
		return false, fmt.Sprintf("comparison value is not a number: %v", err)
	}

	switch cond.Operator {
	case entity.OperatorEquals:
		return left == right, ""
	case entity.OperatorNotEquals:
		return left != right, ""
	case entity.OperatorGreaterThan:
		return left > right, ""
	case entity.OperatorLessThan:
		return left < right, ""
	case entity.OperatorGreaterThanOrEqual:
		return left >= right, ""
	case entity.OperatorLessThanOrEqual:
		return left <= right, ""
	default:
		return false, fmt.Sprintf("operator %s is not supported for %s", cond.Operator, entity.ValueTypeNumber)
	}
}

func compareBooleans(cond entity.FormFieldCondition, actual any) (bool, string) {
	left, err := cast.ToBoolE(actual)
	if err != nil {
		return false, fmt.Sprintf("field %q is not a boolean: %v", cond.SourceFieldName, err)
	}
	right, err := cast.ToBoolE(cond.ComparisonValue)
	if err != nil {
		return false, fmt.Sprintf("comparison value is not a boolean: %v", err)
	}

	switch cond.Operator {
	case entity.OperatorEquals:
		return left == right, ""
	case entity.OperatorNotEquals:
		return left != right, ""
	default:
		return false, fmt.Sprintf("operator %s is not supported for %s", cond.Operator, entity.ValueTypeBoolean)
	}
}

func compareStrings(cond entity.FormFieldCondition, actual any) (bool, string) {
	right, err := cast.ToStringE(cond.ComparisonValue)
	if err != nil {
		return false, fmt.Sprintf("comparison value is not a string: %v", err)
	}

	// multi-select fields arrive as lists
	if cond.Operator == entity.OperatorContains {
		switch items := actual.(type) {
		case []any, []string:
			for _, item := range cast.ToStringSlice(items) {
				if item == right {
					return true, ""
				}
			}
			return false, ""
		}
	}

	left, err := cast.ToStringE(actual)
	if err != nil {
		return false, fmt.Sprintf("field %q is not a string: %v", cond.SourceFieldName, err)
	}

	switch cond.Operator {
	case entity.OperatorEquals:
		return left == right, ""
	case entity.OperatorNotEquals:
		return left != right, ""
	case entity.OperatorGreaterThan:
		return left > right, ""
	case entity.OperatorLessThan:
		return left < right, ""
	case entity.OperatorGreaterThanOrEqual:
		return left >= right, ""
	case entity.OperatorLessThanOrEqual:
		return left <= right, ""
	case entity.OperatorContains:
		return strings.Contains(left, right), ""
	default:
		return false, fmt.Sprintf("unknown operator %q", cond.Operator)
	}
}

func conditionTypeOf(c entity.Condition) string {
	if c == nil {
		return ""
	}
	return string(c.Type())
}
