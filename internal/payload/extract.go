// Package payload pulls the correlation identifier, the document fields and the
// document classification out of loosely-shaped OCR service JSON.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/joseph-ayodele/ocr-relay/internal/common"
)

// Document is a decoded JSON object.
type Document = map[string]any

// ClassificationField holds the document type inside the final data object.
const ClassificationField = "document_type"

// correlationPaths is ordered by priority. The synchronous acknowledgment carries the
// identifier at the top level while webhook callbacks nest it, so order matters.
var correlationPaths = [][]string{
	{"request_id"},
	{"requestId"},
	{"data", "request_id"},
	{"data", "requestId"},
	{"data", "data", "request_id"},
	{"data", "data", "requestId"},
}

// Decode parses a JSON object, keeping numbers as json.Number. An empty body decodes
// to an empty document.
func Decode(r io.Reader) (Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return DecodeBytes(raw)
}

// DecodeBytes is Decode for an in-memory body.
func DecodeBytes(raw []byte) (Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Document{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, invalidPayload("malformed JSON", err)
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, invalidPayload(fmt.Sprintf("top-level value is %T, want object", v), nil)
	}
	return doc, nil
}

func invalidPayload(msg string, err error) error {
	cause := common.ErrInvalidPayload
	if err != nil {
		cause = errors.Join(common.ErrInvalidPayload, err)
	}
	return common.NewAppError("INVALID_PAYLOAD", msg, cause)
}

// CorrelationID returns the first present, truthy identifier along the fixed priority paths.
func CorrelationID(p Document) (string, bool) {
	for _, path := range correlationPaths {
		v, ok := walk(p, path)
		if !ok {
			continue
		}
		if s, ok := Truthy(v); ok {
			return s, true
		}
	}
	return "", false
}

// FinalData maps a webhook envelope ({data: [{data: {...}}]}) down to the flat document
// fields. The boolean is false when neither known shape matched and the whole payload is
// returned.
func FinalData(p Document) (Document, bool) {
	if items, ok := p["data"].([]any); ok && len(items) > 0 {
		if first, ok := items[0].(map[string]any); ok {
			if inner, ok := first["data"].(map[string]any); ok && inner != nil {
				return inner, true
			}
		}
	}

	if extracted, ok := Lookup(p, "data.data"); ok {
		switch v := extracted.(type) {
		case []any:
			if len(v) > 0 {
				if first, ok := v[0].(map[string]any); ok {
					if inner, ok := first["data"].(map[string]any); ok && inner != nil {
						return inner, true
					}
				}
			}
		case map[string]any:
			if v != nil {
				return v, true
			}
		}
	}

	return p, false
}

// Classification returns finalData.document_type when it is present and truthy.
func Classification(finalData Document) (string, bool) {
	if finalData == nil {
		return "", false
	}
	v, ok := finalData[ClassificationField]
	if !ok {
		return "", false
	}
	return Truthy(v)
}

// StripClassification returns a shallow copy of finalData without the classification field.
func StripClassification(finalData Document) Document {
	out := make(Document, len(finalData))
	for k, v := range finalData {
		if k == ClassificationField {
			continue
		}
		out[k] = v
	}
	return out
}

// Field returns the truthy scalar stored at a top-level key.
func Field(p Document, key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	return Truthy(v)
}

func walk(p Document, path []string) (any, bool) {
	var current any = p
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok || m == nil {
			return nil, false
		}
		if current, ok = m[key]; !ok {
			return nil, false
		}
	}
	return current, true
}

// Truthy converts a present, truthy scalar (non-empty string, non-zero number, true)
// to its string form. Objects, arrays and falsy values report false.
func Truthy(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return "", false
		}
		return t.String(), true
	case float64:
		if t == 0 {
			return "", false
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), t != 0
	case bool:
		if t {
			return "true", true
		}
	}
	return "", false
}
