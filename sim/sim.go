// Package sim compares migration algorithms offline: every algorithm
// replays the same mobility batches on its own copy of the seed.
package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/amsen20/argos/alg"
	"github.com/amsen20/argos/internal/config"
	"github.com/amsen20/argos/internal/connector"
	"github.com/amsen20/argos/internal/model"
	"github.com/amsen20/argos/internal/store"
	"github.com/amsen20/argos/internal/topology"
	"github.com/amsen20/argos/logging"
	"github.com/amsen20/argos/statistics"
	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
)

var log = logging.Get()

type Report struct {
	Dataset   string                   `json:"dataset"`
	Steps     int                      `json:"steps"`
	Summaries []*statistics.Summary    `json:"summaries"`
	Records   []*statistics.StepRecord `json:"records"`
}

// Start loads the scenario of conf, compares conf.Algorithms on it and
// writes the report when conf.ReportPath is set.
func Start(ctx context.Context, conf config.GeneralConfig) (*Report, error) {
	tc := connector.NewTraceConnector(conf.Dataset, conf.MobilityTrace, conf.Steps, 0)
	seed, err := tc.LoadSnapshot()
	if err != nil {
		return nil, err
	}

	decisionStore, err := store.New(conf.StoreKind, conf.StorePath)
	if err != nil {
		return nil, err
	}
	defer decisionStore.Close()

	collector := statistics.NewCollector()

	algorithms := conf.Algorithms
	if len(algorithms) == 0 {
		algorithms = []string{conf.Algorithm}
	}

	if err := Compare(ctx, seed, tc.Batches(), algorithms, conf.SLAGated, decisionStore, collector); err != nil {
		return nil, err
	}

	report := &Report{
		Dataset:   conf.Dataset,
		Steps:     len(tc.Batches()),
		Summaries: collector.Summaries(),
		Records:   collector.AllRecords(),
	}

	fmt.Print(collector.Display())

	if conf.ReportPath != "" {
		if err := report.Write(conf.ReportPath); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// Compare runs every algorithm over a clone of seed. Decisions go to
// decisionStore and per step metrics to collector, one run per algorithm.
func Compare(
	ctx context.Context,
	seed *model.Snapshot,
	batches []*model.MobilityBatch,
	algorithms []string,
	slaGated bool,
	decisionStore store.DecisionStore,
	collector *statistics.Collector,
) error {
	oracle := topology.New(seed)

	for _, name := range algorithms {
		strategy, err := alg.New(name, oracle, slaGated)
		if err != nil {
			return err
		}

		run := fmt.Sprintf("%s-%s", name, uuid.NewString())
		snapshot := seed.Clone()

		persist := func(decisions []*model.PlacementDecision) error {
			for _, decision := range decisions {
				decision.Run = run
				if err := decisionStore.Put(decision); err != nil {
					return fmt.Errorf("could not store decision of %s: %w", run, err)
				}
			}
			return nil
		}

		provisioned, err := strategy.Provision(snapshot)
		if err != nil {
			return fmt.Errorf("%s could not provision the seed: %w", name, err)
		}
		if err := persist(provisioned); err != nil {
			return err
		}
		collector.Record(run, name, snapshot, oracle, provisioned)

		log.Info().Msgf("running %s as %s over %d steps", name, run, len(batches))

		for _, batch := range batches {
			if err := ctx.Err(); err != nil {
				return err
			}

			decisions := strategy.HandleMobility(snapshot, batch)
			if err := persist(decisions); err != nil {
				return err
			}

			if err := snapshot.CheckConservation(); err != nil {
				return fmt.Errorf("%s at step %d: %w", name, batch.Step, err)
			}

			collector.Record(run, name, snapshot, oracle, decisions)
		}
	}

	return nil
}

// Write dumps the report as json at path and its records as csv next
// to it.
func (r *Report) Write(path string) error {
	content, err := json.MarshalIndent(r, "", " ")
	if err != nil {
		return err
	}

	if err := ioutil.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("could not write report %s: %w", path, err)
	}

	csvPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".csv"
	out, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", csvPath, err)
	}
	defer out.Close()

	if err := gocsv.MarshalFile(&r.Records, out); err != nil {
		return fmt.Errorf("could not write %s: %w", csvPath, err)
	}

	log.Info().Msgf("report written to %s and %s", path, csvPath)

	return nil
}
