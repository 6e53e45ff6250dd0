package jsonx

import "encoding/json"

// Decode converts a loosely typed bus payload into dst. Raw JSON arrives as
// []byte or string; anything else (maps from the config service, structs
// from local publishers) is round-tripped through encoding/json.
func Decode[T any](src any, dst *T) error {
	switch v := src.(type) {
	case *T:
		*dst = *v
		return nil
	case T:
		*dst = v
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}
