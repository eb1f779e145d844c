package document

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Encode converts a typed document into the store's Struct representation,
// following the document's json tags.
func Encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	doc := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("failed to build document struct: %w", err)
	}
	return doc, nil
}

// Decode fills v from a stored Struct. Fields absent from doc keep the
// value v already has, so decoding into a schema default fills gaps.
func Decode(doc *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document struct: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return nil
}
