package workflow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// placeholderPattern matches ${key} placeholders.
var placeholderPattern = regexp.MustCompile(`\$\{([^{}]+)\}`)

// ResolveParameters substitutes ${key} placeholders in the string values of
// params using values. Only top-level string values are templated: numbers,
// maps and lists pass through untouched. Placeholders for keys absent from
// values are left in place. The input map is never modified.
func ResolveParameters(params map[string]interface{}, values map[string]interface{}) map[string]interface{} {
	resolved := make(map[string]interface{}, len(params))
	for key, value := range params {
		if s, ok := value.(string); ok {
			resolved[key] = resolveString(s, values)
			continue
		}
		resolved[key] = value
	}
	return resolved
}

func resolveString(template string, values map[string]interface{}) string {
	if !strings.Contains(template, "${") {
		return template
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := match[2 : len(match)-1]
		value, exists := values[key]
		if !exists {
			return match
		}
		return stringify(value)
	})
}

// stringify renders a context value for substitution: strings as-is, nil as
// the empty string, scalars with %v and composite values as JSON.
func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", v)
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// ReferencedKeys returns the sorted, unique context keys referenced by
// placeholders in the workflow's top-level string parameters and conditions.
func ReferencedKeys(w Workflow) []string {
	set := make(map[string]struct{})
	collect := func(s string) {
		for _, match := range placeholderPattern.FindAllStringSubmatch(s, -1) {
			set[match[1]] = struct{}{}
		}
	}
	for _, step := range w.Steps {
		collect(step.Condition)
		for _, value := range step.Parameters {
			if s, ok := value.(string); ok {
				collect(s)
			}
		}
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InputKeys returns the referenced keys a caller is expected to supply, that
// is every referenced key the executor does not write itself.
func InputKeys(w Workflow) []string {
	produced := map[string]struct{}{ContextKeyLastStepSuccess: {}}
	for _, step := range w.Steps {
		produced[StepResultKey(step.ID)] = struct{}{}
		produced[StepOutputKey(step.ID)] = struct{}{}
	}

	var inputs []string
	for _, key := range ReferencedKeys(w) {
		if _, ok := produced[key]; !ok {
			inputs = append(inputs, key)
		}
	}
	return inputs
}
