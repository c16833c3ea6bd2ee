package audit

import (
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
)

var sensitiveKeys = map[string]struct{}{
	"password":              {},
	"current_password":      {},
	"new_password":          {},
	"password_confirmation": {},
}

// Sanitize converts v to plain JSON values and strips credential keys at any depth.
// The JSON round trip renders UUIDs, timestamps and file references as strings.
func Sanitize(v interface{}) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}

	clean, err := json.Marshal(strip(generic))
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(clean), nil
}

func strip(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if _, ok := sensitiveKeys[strings.ToLower(k)]; ok {
				continue
			}
			out[k] = strip(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = strip(val)
		}
		return out
	default:
		return t
	}
}

// idOf returns the top-level "id" of a sanitized payload.
func idOf(data datatypes.JSON) string {
	if len(data) == 0 {
		return ""
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return ""
	}
	if id, ok := m["id"].(string); ok {
		return id
	}
	return ""
}

func decodeJSON(data datatypes.JSON) interface{} {
	if len(data) == 0 {
		return nil
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
