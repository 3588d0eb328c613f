// Package capability turns a capability matrix into concrete test cases.
package capability

import (
	"fmt"

	"github.com/use-agent/listingcheck/models"
)

// Expand produces one test case per descriptor, named "<base>_<n>" with a
// 1-based n. Every case owns a deep copy of its descriptor.
func Expand(base string, descs []models.Capability) ([]models.TestCase, error) {
	if base == "" {
		return nil, models.ConfigError("capability: base test name is empty")
	}
	if len(descs) == 0 {
		return nil, models.ConfigError("capability: no browsers configured for %s", base)
	}

	cases := make([]models.TestCase, len(descs))
	for i, d := range descs {
		cases[i] = models.TestCase{
			Name:       fmt.Sprintf("%s_%d", base, i+1),
			Capability: Clone(d),
		}
	}
	return cases, nil
}

// Clone deep-copies a descriptor, including nested maps and slices decoded
// from JSON.
func Clone(c models.Capability) models.Capability {
	if c == nil {
		return models.Capability{}
	}
	out := make(models.Capability, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case models.Capability:
		return Clone(t)
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = cloneValue(inner)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
