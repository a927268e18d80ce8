package storage

import (
	"errors"

	"limitScope/internal/model"
)

// EventSink receives committed engine events.
type EventSink interface {
	PutEvents(events []model.EngineEvent) error
}

// SwapSink receives decoded pool swaps.
type SwapSink interface {
	PutSwaps(swaps []model.SwapObservation) error
}

// Fanout delivers each batch to every sink and joins their errors.
type Fanout []EventSink

func (f Fanout) PutEvents(events []model.EngineEvent) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.PutEvents(events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
