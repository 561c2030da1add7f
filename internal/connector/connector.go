package connector

import (
	"context"

	"github.com/amsen20/argos/internal/model"
	"github.com/amsen20/argos/logging"
	"gopkg.in/yaml.v3"
)

// Connector is what the scheduler talks to: it supplies the seed
// snapshot, streams mobility batches and carries out migrations.
type Connector interface {
	LoadSnapshot() (*model.Snapshot, error)
	// The stream is closed when the trace ends or ctx is done.
	WatchMobilityEvents(ctx context.Context) (<-chan *model.MobilityBatch, error)
	ApplyPlacement(decision *model.PlacementDecision) error
}

func describe(batch *model.MobilityBatch) string {
	bytes, _ := yaml.Marshal(batch.Events)
	return string(bytes[:])
}

var log = logging.Get()
