package statistics

import (
	"testing"

	"github.com/amsen20/argos/internal/model"
	"github.com/amsen20/argos/internal/model/testing_tool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setUp() (*model.Snapshot, *testing_tool.StaticOracle) {
	snapshot := testing_tool.New().
		Servers(
			&testing_tool.ServerDesc{Id: 1, Provider: 1, BaseStation: 11, Cpu: 4, Memory: 4, Trust: 1},
			&testing_tool.ServerDesc{Id: 2, Provider: 2, BaseStation: 12, Cpu: 4, Memory: 4, Trust: 5},
		).
		Users(
			&testing_tool.UserDesc{
				Id: 1, BaseStation: 0, Application: 1, SLA: 5,
				Services: []*testing_tool.ServiceDesc{
					{Id: 10, Requirement: 3, Cpu: 1, Memory: 1, Server: 1},
					{Id: 11, Requirement: 0, Cpu: 1, Memory: 1, Server: 2},
				},
			},
			&testing_tool.UserDesc{
				Id: 2, BaseStation: 0, Application: 2, SLA: 100,
				Services: []*testing_tool.ServiceDesc{{Id: 20, Cpu: 1, Memory: 1, Server: 2}},
			},
			// nothing reaches base station 7
			&testing_tool.UserDesc{
				Id: 3, BaseStation: 7, Application: 3,
				Services: []*testing_tool.ServiceDesc{{Id: 30, Cpu: 1, Memory: 1, Server: 2}},
			},
		).
		Build()
	snapshot.Step = 4

	oracle := testing_tool.NewStaticOracle().
		Set(0, 11, 4).Set(0, 12, 2).Set(11, 12, 3)

	return snapshot, oracle
}

func TestMeasure(t *testing.T) {
	snapshot, oracle := setUp()

	record := Measure(snapshot, oracle, []*model.PlacementDecision{
		{Migrated: true},
		{Flag: model.INFEASIBLE_PLACEMENT},
		{},
		// first placements are not migrations
		{SourceServerId: -1, TargetServerId: 2, Migrated: true},
	})

	assert.Equal(t, &StepRecord{
		Step:                     4,
		SLAViolations:            1,
		PrivacyViolations:        1,
		ServicesOnTrustedServers: 3,
		Migrations:               1,
		Infeasible:               1,
		UnreachableApplications:  1,
		MeanDelay:                4.5,
		EdgeUsage:                0.25,
	}, record)
}

func TestCollector(t *testing.T) {
	snapshot, oracle := setUp()
	c := NewCollector()

	c.Record("run-a", "argos", snapshot, oracle, []*model.PlacementDecision{{Migrated: true}})
	snapshot.Step = 5
	c.Record("run-a", "argos", snapshot, oracle, []*model.PlacementDecision{{Migrated: true}, {Migrated: true}})
	c.Record("run-b", "never-migrate", snapshot, oracle, nil)

	records := c.Records("run-a")
	require.Len(t, records, 2)
	assert.Equal(t, "argos", records[1].Algorithm)
	assert.Equal(t, 5, records[1].Step)
	assert.Len(t, c.AllRecords(), 3)

	summary := c.Summary("run-a")
	assert.Equal(t, 2, summary.Steps)
	assert.Equal(t, 3, summary.Migrations)
	assert.Equal(t, 2, summary.SLAViolations)
	assert.Equal(t, 3.0, summary.ServicesOnTrustedServers)
	assert.Equal(t, 4.5, summary.MeanDelay)

	summaries := c.Summaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, "run-a", summaries[0].Run)
	assert.Equal(t, "never-migrate", summaries[1].Algorithm)
	assert.Equal(t, 0, summaries[1].Migrations)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.migrations.WithLabelValues("argos")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.step.WithLabelValues("argos")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.privacyViolations.WithLabelValues("never-migrate")))

	families, err := c.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	display := c.Display()
	assert.Contains(t, display, "argos (run-a): steps 2")
	assert.Contains(t, display, "never-migrate (run-b)")
}
