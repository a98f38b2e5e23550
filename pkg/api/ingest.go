package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PhotoList is the result of a photo listing call. The backend has two
// response shapes for this endpoint: a paginated envelope `{items, meta}`
// and a bare array (older list routes). The shape is resolved exactly once
// here, at the ingestion boundary; HasPagination is the discriminant and
// downstream code never re-inspects the raw payload.
type PhotoList struct {
	Items         []Photo
	Meta          PageMeta
	HasPagination bool
}

// UnmarshalJSON resolves the paginated-vs-flat response union.
func (l *PhotoList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return fmt.Errorf("empty photo list payload")
	}

	if trimmed[0] == '[' {
		var items []Photo
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("failed to decode flat photo list: %w", err)
		}
		l.Items = items
		l.Meta = PageMeta{Page: 1, PageSize: len(items), TotalItems: len(items), TotalPages: 1}
		l.HasPagination = false
		return nil
	}

	var envelope struct {
		Items []Photo  `json:"items"`
		Meta  PageMeta `json:"meta"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("failed to decode paginated photo list: %w", err)
	}
	l.Items = envelope.Items
	l.Meta = envelope.Meta
	l.HasPagination = true
	return nil
}
