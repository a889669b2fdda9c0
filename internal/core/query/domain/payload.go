package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sort"
)

// DecodePayload decodes a JSON object or array of objects. Numbers are kept
// as json.Number so no precision is lost before binding.
func DecodePayload(r io.Reader) (MutationPayload, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return MutationPayload{}, Errorf(ErrSchemaMismatch, "request body is empty")
		}
		return MutationPayload{}, Wrap(ErrMalformedQuery, err, "request body is not valid JSON")
	}
	if dec.More() {
		return MutationPayload{}, Errorf(ErrMalformedQuery, "request body contains trailing data")
	}

	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '{':
		row, err := decodeRow(trimmed)
		if err != nil {
			return MutationPayload{}, err
		}
		return SinglePayload(row), nil
	case len(trimmed) > 0 && trimmed[0] == '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return MutationPayload{}, Wrap(ErrMalformedQuery, err, "request body is not valid JSON")
		}
		rows := make([]Row, 0, len(elems))
		for _, elem := range elems {
			elem = bytes.TrimSpace(elem)
			if len(elem) == 0 || elem[0] != '{' {
				return MutationPayload{}, Errorf(ErrSchemaMismatch, "bulk payload elements must be JSON objects")
			}
			row, err := decodeRow(elem)
			if err != nil {
				return MutationPayload{}, err
			}
			rows = append(rows, row)
		}
		return BulkPayload(rows), nil
	}
	return MutationPayload{}, Errorf(ErrSchemaMismatch, "payload must be a JSON object or an array of objects")
}

func decodeRow(data []byte) (Row, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	row := Row{}
	if err := dec.Decode(&row); err != nil {
		return nil, Wrap(ErrMalformedQuery, err, "request body is not valid JSON")
	}
	return row, nil
}

// Keys returns the row's keys in sorted order.
func (r Row) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
