package mapper

import (
	"database/sql"
	"fmt"
)

// RecordStream is an ordered, finite, non-restartable sequence of records.
// Callers must Close it; Close is idempotent.
type RecordStream interface {
	// Next advances to the next record. It returns false when the stream
	// is exhausted or failed; the stream is then already closed.
	Next() bool
	// Record returns the current record.
	Record() Record
	// Err returns the first error met while streaming.
	Err() error
	// Close releases the stream's resources.
	Close() error
}

// rowStream streams records from *sql.Rows.
type rowStream struct {
	rows    *sql.Rows
	columns []string
	types   []string
	decoder ValueDecoder
	onClose func(error) error

	current Record
	err     error
	closed  bool
}

func (s *rowStream) Next() bool {
	if s.closed {
		return false
	}
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			s.err = fmt.Errorf("error iterating rows: %w", err)
		}
		s.close()
		return false
	}

	values := make([]interface{}, len(s.columns))
	valuePtrs := make([]interface{}, len(s.columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := s.rows.Scan(valuePtrs...); err != nil {
		s.err = fmt.Errorf("failed to scan row: %w", err)
		s.close()
		return false
	}

	for i, raw := range values {
		v, err := s.decoder.Decode(s.types[i], raw)
		if err != nil {
			s.err = fmt.Errorf("failed to decode column %s: %w", s.columns[i], err)
			s.close()
			return false
		}
		values[i] = v
	}
	s.current = Record{Columns: s.columns, Values: values}
	return true
}

func (s *rowStream) Record() Record {
	return s.current
}

func (s *rowStream) Err() error {
	return s.err
}

func (s *rowStream) Close() error {
	s.close()
	return s.err
}

func (s *rowStream) close() {
	if s.closed {
		return
	}
	s.closed = true
	if err := s.rows.Close(); err != nil && s.err == nil {
		s.err = err
	}
	if s.onClose != nil {
		if err := s.onClose(s.err); err != nil && s.err == nil {
			s.err = err
		}
	}
}

// sliceStream replays materialized records.
type sliceStream struct {
	records []Record
	pos     int
}

// NewSliceStream returns a stream over already materialized records.
func NewSliceStream(records []Record) RecordStream {
	return &sliceStream{records: records, pos: -1}
}

func (s *sliceStream) Next() bool {
	if s.pos+1 >= len(s.records) {
		s.pos = len(s.records)
		return false
	}
	s.pos++
	return true
}

func (s *sliceStream) Record() Record {
	if s.pos < 0 || s.pos >= len(s.records) {
		return Record{}
	}
	return s.records[s.pos]
}

func (s *sliceStream) Err() error { return nil }

func (s *sliceStream) Close() error {
	s.pos = len(s.records)
	return nil
}

// Collect drains and closes stream.
func Collect(stream RecordStream) ([]Record, error) {
	records := []Record{}
	for stream.Next() {
		records = append(records, stream.Record())
	}
	if err := stream.Close(); err != nil {
		return nil, err
	}
	return records, nil
}
