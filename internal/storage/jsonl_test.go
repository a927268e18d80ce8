package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"limitScope/internal/model"
)

func TestJsonlAppendsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	s := NewJsonlStorage(path)

	if err := s.PutEvents([]model.EngineEvent{{Kind: model.EventOrderPlaced, Tick: 60, AmountIn: "10"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutEvents(nil); err != nil {
		t.Fatalf("put empty: %v", err)
	}
	if err := s.PutEvents([]model.EngineEvent{{Kind: model.EventBucketExecuted, Tick: 60, AmountOut: "9"}}); err != nil {
		t.Fatalf("put: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var got []model.EngineEvent
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var ev model.EngineEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		got = append(got, ev)
	}
	if len(got) != 2 || got[0].Kind != model.EventOrderPlaced || got[1].AmountOut != "9" {
		t.Fatalf("unexpected events %+v", got)
	}
}

type failingSink struct{ err error }

func (f failingSink) PutEvents([]model.EngineEvent) error { return f.err }

type countingSink struct{ n int }

func (c *countingSink) PutEvents(events []model.EngineEvent) error {
	c.n += len(events)
	return nil
}

func TestFanout(t *testing.T) {
	boom := errors.New("boom")
	counter := &countingSink{}
	f := Fanout{failingSink{err: boom}, nil, counter}
	err := f.PutEvents([]model.EngineEvent{{Kind: model.EventRedeemed}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if counter.n != 1 {
		t.Fatalf("later sink skipped")
	}
}
