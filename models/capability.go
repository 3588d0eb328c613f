package models

// Capability describes one browser/platform combination. Keys are opaque to
// the verification core and are interpreted only by session bootstrap.
type Capability map[string]any

// Str returns the string value of key, or "".
func (c Capability) Str(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

// Bool returns the boolean value of key. Strings "true"/"false" are accepted.
func (c Capability) Bool(key string) (value, ok bool) {
	switch v := c[key].(type) {
	case bool:
		return v, true
	case string:
		switch v {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// TestCase is one concrete, independently runnable test derived from a
// capability matrix entry.
type TestCase struct {
	Name       string
	Capability Capability
}
