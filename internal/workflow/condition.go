package workflow

import "regexp"

var singleVariablePattern = regexp.MustCompile(`^\$\{([^{}]+)\}$`)

const lastStepSuccessCondition = "${" + ContextKeyLastStepSuccess + "}"

// EvaluateCondition decides whether a step is eligible to run.
//
// An empty condition is always true. "${lastStepSuccess}" is true only when
// the stored value is the boolean true. Any other single "${name}" reference
// is true unless the value is absent, nil, false or the string "false".
// Every other expression, including a reference padded with whitespace, is
// treated as true.
func EvaluateCondition(condition string, store *Store) bool {
	if condition == "" {
		return true
	}

	if condition == lastStepSuccessCondition {
		value, _ := store.Get(ContextKeyLastStepSuccess)
		ok, isBool := value.(bool)
		return isBool && ok
	}

	if match := singleVariablePattern.FindStringSubmatch(condition); match != nil {
		value, exists := store.Get(match[1])
		if !exists || value == nil {
			return false
		}
		switch v := value.(type) {
		case bool:
			return v
		case string:
			return v != "false"
		}
		return true
	}

	return true
}
