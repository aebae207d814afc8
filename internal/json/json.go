package json

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"uploader/internal/val"
)

// maxBody caps JSON request bodies; file content never travels as JSON.
const maxBody = 1 << 20

func Write(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return encoder.Encode(data)
}

// Read decodes a single JSON document from the request body into v, rejecting
// unknown fields, then validates v's `validate` tags.
func Read(r *http.Request, v any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return val.Struct(v)
}
