package audit

// RedactionMarker replaces the values of sensitive payload keys.
const RedactionMarker = "[REDACTED]"

// sensitiveKeys is the fixed denylist of top-level payload keys whose
// values must never reach the trail.
var sensitiveKeys = map[string]struct{}{
	"password":        {},
	"confirmPassword": {},
	"token":           {},
	"secret":          {},
	"key":             {},
}

// Redact returns a shallow copy of the payload with sensitive top-level
// keys masked. Nested objects are deliberately not recursed into.
func Redact(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return nil
	}

	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if _, sensitive := sensitiveKeys[k]; sensitive {
			out[k] = RedactionMarker
			continue
		}
		out[k] = v
	}
	return out
}
