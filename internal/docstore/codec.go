package docstore

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Encode converts a model into a Document through its JSON form.
func Encode(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

// Decode fills v from doc. Store-private fields are ignored unless v asks
// for them by JSON name.
func Decode(doc Document, v any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// NewETag mints a version tag for a write.
func NewETag() string {
	return uuid.NewString()
}

// Public strips store-private fields, keeping the etag.
func Public(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		if k == FieldPartitionKey || k == "_id" {
			continue
		}
		out[k] = v
	}
	return out
}
