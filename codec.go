package tablemap

import gojson "github.com/goccy/go-json"

// Codec encodes complex field values to text and back.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) (string, error)
	Unmarshal(text string, v any) error
}

// JSONCodec is the default Codec, backed by github.com/goccy/go-json.
type JSONCodec struct{}

// Marshal encodes the value to JSON.
func (JSONCodec) Marshal(v any) (string, error) {
	b, err := gojson.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Unmarshal decodes the JSON text into v.
func (JSONCodec) Unmarshal(text string, v any) error {
	return gojson.Unmarshal([]byte(text), v)
}
