package events

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// Source yields time-ordered event batches. A batch never splits a block:
// all events of one block height land in the same batch so that deferred
// share-price resets flush at true block boundaries.
type Source interface {
	// NextBatch returns the next batch of at least maxEvents events,
	// extended to the end of the last started block. Returns io.EOF when
	// the stream is exhausted.
	NextBatch(maxEvents int) ([]*Event, error)
}

// JSONLinesSource reads NDJSON-encoded events, one per line, as piped in by
// the external decoder.
type JSONLinesSource struct {
	scanner *bufio.Scanner
	pending *Event
	done    bool
}

func NewJSONLinesSource(r io.Reader) *JSONLinesSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &JSONLinesSource{scanner: scanner}
}

func (s *JSONLinesSource) next() (*Event, error) {
	if s.pending != nil {
		ev := s.pending
		s.pending = nil
		return ev, nil
	}
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		ev := &Event{}
		if err := json.Unmarshal(line, ev); err != nil {
			return nil, errors.Wrap(err, "failed to decode event line")
		}
		return ev, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (s *JSONLinesSource) NextBatch(maxEvents int) ([]*Event, error) {
	if s.done {
		return nil, io.EOF
	}
	batch := make([]*Event, 0, maxEvents)
	var lastHeight uint64
	for {
		ev, err := s.next()
		if err == io.EOF {
			s.done = true
			if len(batch) == 0 {
				return nil, io.EOF
			}
			return batch, nil
		}
		if err != nil {
			return nil, err
		}
		if len(batch) >= maxEvents && ev.Block.Height != lastHeight {
			s.pending = ev
			return batch, nil
		}
		batch = append(batch, ev)
		lastHeight = ev.Block.Height
	}
}
