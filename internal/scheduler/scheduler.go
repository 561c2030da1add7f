package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/amsen20/argos/alg"
	"github.com/amsen20/argos/internal/connector"
	"github.com/amsen20/argos/internal/model"
	"github.com/amsen20/argos/internal/store"
	"github.com/amsen20/argos/internal/topology"
	"github.com/amsen20/argos/logging"
	"github.com/amsen20/argos/statistics"
	"github.com/google/uuid"
)

var log = logging.Get()

// Scheduler consumes mobility batches one at a time and keeps the
// placement of every microservice up to date.
type Scheduler struct {
	RunId string

	connector connector.Connector
	algorithm string
	slaGated  bool

	store     store.DecisionStore
	collector *statistics.Collector

	// guards everything below
	mutex    sync.Mutex
	snapshot *model.Snapshot
	oracle   *topology.Topology
	strategy *alg.Strategy
}

// SchedulerBridge lets the gui ask for a copy of the snapshot without
// racing with the event loop.
type SchedulerBridge struct {
	ClusterStateRequestStream chan<- struct{}
	ClusterStateStream        <-chan *model.Snapshot
	// receives once, when the mobility stream ends or fails
	Done <-chan error
	// closed once the loop stopped answering state requests
	Stopped <-chan struct{}

	RunId     string
	Store     store.DecisionStore
	Collector *statistics.Collector
}

func New(
	c connector.Connector,
	algorithm string,
	slaGated bool,
	decisionStore store.DecisionStore,
	collector *statistics.Collector,
) (*Scheduler, error) {
	if c == nil {
		return nil, fmt.Errorf("scheduler needs a connector")
	}
	if decisionStore == nil {
		decisionStore = store.NewInMemoryDecisionStore()
	}
	if collector == nil {
		collector = statistics.NewCollector()
	}

	return &Scheduler{
		RunId:     uuid.NewString(),
		connector: c,
		algorithm: algorithm,
		slaGated:  slaGated,
		store:     decisionStore,
		collector: collector,
	}, nil
}

// Start loads the seed, builds the latency oracle and provisions every
// microservice without a host.
func (scheduler *Scheduler) Start() error {
	scheduler.mutex.Lock()
	defer scheduler.mutex.Unlock()

	snapshot, err := scheduler.connector.LoadSnapshot()
	if err != nil {
		log.Err(err).Send()

		return fmt.Errorf("connector could not load the snapshot: %w", err)
	}

	oracle := topology.New(snapshot)

	strategy, err := alg.New(scheduler.algorithm, oracle, scheduler.slaGated)
	if err != nil {
		return err
	}

	decisions, err := strategy.Provision(snapshot)
	if err != nil {
		log.Err(err).Send()

		return fmt.Errorf("could not provision the seed: %w", err)
	}

	scheduler.snapshot = snapshot
	scheduler.oracle = oracle
	scheduler.strategy = strategy

	startErr := scheduler.apply(decisions)
	scheduler.collector.Record(scheduler.RunId, strategy.Name, snapshot, oracle, decisions)

	log.Info().Msgf("scheduler %s started with %s, %d microservices provisioned", scheduler.RunId, strategy.Name, len(decisions))

	return startErr
}

// apply pushes the decisions to the connector and persists them. It
// keeps going on failures and returns the last one.
func (scheduler *Scheduler) apply(decisions []*model.PlacementDecision) error {
	var lastErr error
	for _, decision := range decisions {
		decision.Run = scheduler.RunId

		if err := scheduler.connector.ApplyPlacement(decision); err != nil {
			log.Err(err).Msgf("could not apply the placement of microservice %d", decision.MicroserviceId)
			lastErr = err
		}

		if err := scheduler.store.Put(decision); err != nil {
			log.Err(err).Msgf("could not store the decision on microservice %d", decision.MicroserviceId)
			lastErr = err
		}
	}

	return lastErr
}

// Step handles one mobility batch to completion. Decisions are applied
// through the connector and then persisted.
func (scheduler *Scheduler) Step(batch *model.MobilityBatch) ([]*model.PlacementDecision, error) {
	scheduler.mutex.Lock()
	defer scheduler.mutex.Unlock()

	if scheduler.snapshot == nil {
		return nil, fmt.Errorf("scheduler is not started")
	}

	decisions := scheduler.strategy.HandleMobility(scheduler.snapshot, batch)

	stepErr := scheduler.apply(decisions)

	record := scheduler.collector.Record(scheduler.RunId, scheduler.strategy.Name, scheduler.snapshot, scheduler.oracle, decisions)
	log.Info().Msgf(
		"step %d: %d decisions, %d migrations, %d infeasible",
		batch.Step,
		len(decisions),
		record.Migrations,
		record.Infeasible,
	)

	return decisions, stepErr
}

// Snapshot returns a copy of the current state.
func (scheduler *Scheduler) Snapshot() *model.Snapshot {
	scheduler.mutex.Lock()
	defer scheduler.mutex.Unlock()

	if scheduler.snapshot == nil {
		return nil
	}

	return scheduler.snapshot.Clone()
}

// Run starts the event loop. The loop keeps answering the bridge after
// the mobility stream ends, until ctx is done.
func (scheduler *Scheduler) Run(ctx context.Context) (SchedulerBridge, error) {
	batchStream, err := scheduler.connector.WatchMobilityEvents(ctx)
	if err != nil {
		log.Err(err).Send()

		return SchedulerBridge{}, fmt.Errorf("could not start watching mobility events: %w", err)
	}

	clusterStateRequestStream := make(chan struct{})
	clusterStateStream := make(chan *model.Snapshot)
	done := make(chan error, 1)
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		var lastErr error

		for {
			select {
			case <-ctx.Done():
				if batchStream != nil {
					done <- ctx.Err()
				}
				return

			case <-clusterStateRequestStream:
				select {
				case clusterStateStream <- scheduler.Snapshot():
				case <-ctx.Done():
				}

			case batch, ok := <-batchStream:
				if !ok {
					log.Info().Msgf("mobility stream of %s ended", scheduler.RunId)
					done <- lastErr
					batchStream = nil
					continue
				}

				if _, err := scheduler.Step(batch); err != nil {
					lastErr = err
				}
			}
		}
	}()

	return SchedulerBridge{
		ClusterStateRequestStream: clusterStateRequestStream,
		ClusterStateStream:        clusterStateStream,
		Done:                      done,
		Stopped:                   stopped,
		RunId:                     scheduler.RunId,
		Store:                     scheduler.store,
		Collector:                 scheduler.collector,
	}, nil
}
