package connector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amsen20/argos/internal/dataset"
	"github.com/amsen20/argos/internal/model"
)

// TraceConnector replays recorded user traces step by step. It is the
// simulation's source of truth, placements are only recorded.
type TraceConnector struct {
	datasetPath string
	tracePath   string
	steps       int
	period      time.Duration

	snapshot *model.Snapshot
	batches  []*model.MobilityBatch

	mutex   sync.Mutex
	applied []*model.PlacementDecision
}

// NewTraceConnector reads the seed from datasetPath. Batches come from
// tracePath when given, otherwise from the users' traces. steps bounds the
// replay, 0 replays everything.
func NewTraceConnector(datasetPath, tracePath string, steps int, period time.Duration) *TraceConnector {
	return &TraceConnector{
		datasetPath: datasetPath,
		tracePath:   tracePath,
		steps:       steps,
		period:      period,
	}
}

// NewStaticTraceConnector serves an already built snapshot and batches.
func NewStaticTraceConnector(snapshot *model.Snapshot, batches []*model.MobilityBatch) *TraceConnector {
	return &TraceConnector{
		snapshot: snapshot,
		batches:  batches,
	}
}

func (tc *TraceConnector) LoadSnapshot() (*model.Snapshot, error) {
	if tc.snapshot != nil {
		return tc.snapshot, nil
	}

	snapshot, err := dataset.LoadSnapshot(tc.datasetPath)
	if err != nil {
		return nil, err
	}

	var batches []*model.MobilityBatch
	if tc.tracePath != "" {
		batches, err = dataset.LoadTrace(tc.tracePath)
		if err != nil {
			return nil, err
		}
	} else {
		batches = dataset.TraceBatches(snapshot)
	}

	if tc.steps > 0 && len(batches) > tc.steps {
		batches = batches[:tc.steps]
	}

	log.Info().Msgf("replaying %d steps", len(batches))

	tc.snapshot = snapshot
	tc.batches = batches

	return snapshot, nil
}

func (tc *TraceConnector) Batches() []*model.MobilityBatch {
	return tc.batches
}

func (tc *TraceConnector) WatchMobilityEvents(ctx context.Context) (<-chan *model.MobilityBatch, error) {
	if tc.snapshot == nil {
		return nil, fmt.Errorf("snapshot is not loaded yet")
	}

	batchStream := make(chan *model.MobilityBatch)

	go func() {
		defer close(batchStream)

		for ind, batch := range tc.batches {
			if ind > 0 && tc.period > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(tc.period):
				}
			}

			log.Debug().Msgf("step %d events:\n%s", batch.Step, describe(batch))

			select {
			case <-ctx.Done():
				return
			case batchStream <- batch:
			}
		}
	}()

	return batchStream, nil
}

func (tc *TraceConnector) ApplyPlacement(decision *model.PlacementDecision) error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	tc.applied = append(tc.applied, decision)

	return nil
}

// Applied returns every decision handed to ApplyPlacement.
func (tc *TraceConnector) Applied() []*model.PlacementDecision {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	ret := make([]*model.PlacementDecision, len(tc.applied))
	copy(ret, tc.applied)

	return ret
}
