package dataset

import (
	"os"
	"sort"

	"github.com/amsen20/argos/internal/model"
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

// MaxSteps bounds the steps of a trace, every step up to the last one
// gets a batch.
const MaxSteps = 1000000

// TraceRow is one line of a mobility trace csv.
type TraceRow struct {
	Step        int `csv:"step"`
	User        int `csv:"user"`
	BaseStation int `csv:"base_station"`
}

// LoadTrace reads a mobility trace csv with a step,user,base_station header.
func LoadTrace(path string) ([]*model.MobilityBatch, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open trace %s", path)
	}
	defer in.Close()

	rows := []*TraceRow{}
	if err := gocsv.UnmarshalFile(in, &rows); err != nil {
		return nil, errors.Wrapf(err, "could not parse trace %s", path)
	}

	return Batches(rows)
}

// WriteTrace dumps batches in the format LoadTrace reads.
func WriteTrace(path string, batches []*model.MobilityBatch) error {
	rows := []*TraceRow{}
	for _, batch := range batches {
		for _, event := range batch.Events {
			rows = append(rows, &TraceRow{Step: batch.Step, User: event.UserId, BaseStation: event.BaseStationId})
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "could not create trace %s", path)
	}
	defer out.Close()

	if err := gocsv.MarshalFile(&rows, out); err != nil {
		return errors.Wrapf(err, "could not write trace %s", path)
	}

	return nil
}

// Batches groups rows by step. Every step from 1 to the last one gets a
// batch, possibly empty, and events of a batch are ordered by user id.
func Batches(rows []*TraceRow) ([]*model.MobilityBatch, error) {
	lastStep := 0
	for _, row := range rows {
		if row.Step < 1 {
			return nil, errors.Errorf("user %d: step %d, steps start at 1", row.User, row.Step)
		}
		if row.Step > MaxSteps {
			return nil, errors.Errorf("user %d: step %d, traces are limited to %d steps", row.User, row.Step, MaxSteps)
		}
		if row.Step > lastStep {
			lastStep = row.Step
		}
	}

	batches := make([]*model.MobilityBatch, lastStep)
	for i := range batches {
		batches[i] = &model.MobilityBatch{Step: i + 1}
	}

	for _, row := range rows {
		batch := batches[row.Step-1]
		batch.Events = append(batch.Events, &model.MobilityEvent{
			Step:          row.Step,
			UserId:        row.User,
			BaseStationId: row.BaseStation,
		})
	}

	for _, batch := range batches {
		sort.SliceStable(batch.Events, func(i, j int) bool {
			return batch.Events[i].UserId < batch.Events[j].UserId
		})
	}

	return batches, nil
}

// TraceBatches turns the per-user traces of the snapshot into batches.
// Position 0 of a trace is the seed location; a later position only
// fires an event when the user changes base station.
func TraceBatches(snapshot *model.Snapshot) []*model.MobilityBatch {
	users := make([]*model.User, len(snapshot.Users))
	copy(users, snapshot.Users)
	sort.Slice(users, func(i, j int) bool { return users[i].Id < users[j].Id })

	rows := []*TraceRow{}
	for _, user := range users {
		for step := 1; step < len(user.Trace); step++ {
			if user.Trace[step] == user.Trace[step-1] {
				continue
			}
			rows = append(rows, &TraceRow{Step: step, User: user.Id, BaseStation: user.Trace[step]})
		}
	}

	lastStep := 0
	for _, user := range users {
		if len(user.Trace)-1 > lastStep {
			lastStep = len(user.Trace) - 1
		}
	}

	batches, _ := Batches(rows)
	for step := len(batches) + 1; step <= lastStep; step++ {
		batches = append(batches, &model.MobilityBatch{Step: step})
	}

	return batches
}
