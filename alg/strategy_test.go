package alg

import (
	"math"
	"math/rand"
	"testing"

	"github.com/amsen20/argos/internal/model"
	"github.com/amsen20/argos/internal/model/testing_tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batch(step int, moves ...[2]int) *model.MobilityBatch {
	b := &model.MobilityBatch{Step: step}
	for _, move := range moves {
		b.Events = append(b.Events, &model.MobilityEvent{Step: step, UserId: move[0], BaseStationId: move[1]})
	}

	return b
}

func provision(st *Strategy, snapshot *model.Snapshot) error {
	_, err := st.Provision(snapshot)
	return err
}

func hostOf(t *testing.T, snapshot *model.Snapshot, serviceId int) int {
	host, ok := snapshot.Placement()[serviceId]
	require.True(t, ok, "unknown microservice %d", serviceId)
	return host
}

// Base stations 0 and 1 are user locations, server n sits on base
// station 10+n.
func TestArgosScenario(t *testing.T) {
	builder := testing_tool.New()
	snapshot := builder.
		BaseStations(0, 1, 5).
		Servers(
			&testing_tool.ServerDesc{Id: 1, Provider: 1, Region: "r", BaseStation: 11, Cpu: 4, Memory: 4, Trust: 2},
			&testing_tool.ServerDesc{Id: 2, Provider: 2, Region: "r", BaseStation: 12, Cpu: 4, Memory: 4, Trust: 4},
			&testing_tool.ServerDesc{Id: 3, Provider: 2, Region: "r", BaseStation: 13, Cpu: 2, Memory: 2, Trust: 4},
		).
		Users(
			&testing_tool.UserDesc{
				Id: 1, BaseStation: 0, Application: 1,
				Services: []*testing_tool.ServiceDesc{{Id: 10, Requirement: 3, Cpu: 1, Memory: 1, Server: testing_tool.UNDEFINED}},
			},
			// fills server 3
			&testing_tool.UserDesc{
				Id: 2, BaseStation: 5, Application: 2,
				Services: []*testing_tool.ServiceDesc{{Id: 20, Requirement: 0, Cpu: 2, Memory: 2, Server: 3}},
			},
		).
		Build()

	oracle := testing_tool.NewStaticOracle().
		Set(0, 11, 5).Set(0, 12, 8).Set(0, 13, 9).
		Set(1, 11, 2).Set(1, 12, 3).Set(1, 13, 1).
		Set(5, 13, 1)

	argos := NewArgos(oracle)

	t.Run("Provision", func(t *testing.T) {
		decisions, err := argos.Provision(snapshot)
		require.NoError(t, err)
		// server 1 is closer but not trusted enough
		builder.Expect(snapshot, map[int]int{10: 2, 20: 3})

		require.Len(t, decisions, 1)
		assert.Equal(t, 10, decisions[0].MicroserviceId)
		assert.Equal(t, 2, decisions[0].TargetServerId)
		assert.Equal(t, 8.0, decisions[0].Delay)
		assert.True(t, decisions[0].Provisioned())
	})

	t.Run("Move", func(t *testing.T) {
		decisions := argos.HandleMobility(snapshot, batch(1, [2]int{1, 1}))
		require.Len(t, decisions, 1)

		user, _ := snapshot.User(1)
		assert.Equal(t, 1, user.BaseStation.Id)

		decision := decisions[0]
		assert.Equal(t, 10, decision.MicroserviceId)
		assert.Equal(t, 2, decision.SourceServerId)
		assert.Equal(t, 2, decision.TargetServerId)
		assert.Equal(t, 3.0, decision.Delay)
		// server 1 fails trust, server 3 fails capacity
		assert.Equal(t, 1, decision.Candidates)
		assert.False(t, decision.Migrated)
		assert.False(t, decision.Infeasible())
		assert.Equal(t, model.STABLE, snapshot.Services[0].State)
	})

	require.NoError(t, snapshot.CheckConservation())
}

func TestStabilityBias(t *testing.T) {
	snapshot := testing_tool.New().
		BaseStations(0, 1, 2).
		Servers(
			&testing_tool.ServerDesc{Id: 1, Provider: 1, BaseStation: 11, Cpu: 8, Memory: 8, Trust: 1},
			&testing_tool.ServerDesc{Id: 2, Provider: 1, BaseStation: 12, Cpu: 2, Memory: 2, Trust: 1},
		).
		Users(&testing_tool.UserDesc{
			Id: 1, BaseStation: 0, Application: 1,
			Services: []*testing_tool.ServiceDesc{{Id: 10, Cpu: 1, Memory: 1, Server: 2}},
		}).
		Build()

	// both servers are equally fast from base station 1
	oracle := testing_tool.NewStaticOracle().
		Set(0, 11, 9).Set(0, 12, 9).
		Set(1, 11, 4).Set(1, 12, 4)

	decisions := NewArgos(oracle).HandleMobility(snapshot, batch(1, [2]int{1, 1}))
	require.Len(t, decisions, 1)
	assert.False(t, decisions[0].Migrated)
	assert.Equal(t, 2, decisions[0].Candidates)
	assert.Equal(t, 2, hostOf(t, snapshot, 10), "server 1 has more headroom but the current host is kept")
}

func TestInfeasiblePlacementKeepsHost(t *testing.T) {
	snapshot := testing_tool.New().
		BaseStations(0, 1, 2).
		Servers(
			&testing_tool.ServerDesc{Id: 1, Provider: 1, BaseStation: 11, Cpu: 4, Memory: 4, Trust: 1},
			&testing_tool.ServerDesc{Id: 2, Provider: 1, BaseStation: 12, Cpu: 4, Memory: 4, Trust: 1},
		).
		Users(&testing_tool.UserDesc{
			Id: 1, BaseStation: 0, Application: 1,
			Services: []*testing_tool.ServiceDesc{{Id: 10, Requirement: 3, Cpu: 1, Memory: 1, Server: 1}},
		}).
		Build()

	oracle := testing_tool.NewStaticOracle().Set(0, 11, 5).Set(0, 12, 2).Set(1, 12, 1)

	argos := NewArgos(oracle)
	decisions := argos.HandleMobility(snapshot, batch(1, [2]int{1, 1}))
	require.Len(t, decisions, 1)

	decision := decisions[0]
	assert.True(t, decision.Infeasible())
	assert.Equal(t, 0, decision.Candidates)
	assert.Equal(t, 1, decision.TargetServerId)
	assert.False(t, decision.Migrated)
	// base station 1 cannot reach server 1 anymore
	assert.True(t, math.IsInf(decision.Delay, 1))
	assert.Equal(t, 1, hostOf(t, snapshot, 10))

	_, err := argos.Provision(testing_tool.New().
		BaseStations(0, 1).
		Servers(&testing_tool.ServerDesc{Id: 1, Provider: 1, BaseStation: 11, Cpu: 4, Memory: 4, Trust: 1}).
		Users(&testing_tool.UserDesc{
			Id: 1, BaseStation: 0, Application: 1,
			Services: []*testing_tool.ServiceDesc{{Id: 10, Requirement: 3, Cpu: 1, Memory: 1, Server: testing_tool.UNDEFINED}},
		}).
		Build())
	var infeasible *InfeasiblePlacementError
	require.ErrorAs(t, err, &infeasible)
	assert.Equal(t, 10, infeasible.MicroserviceId)
}

func contendedSnapshot() (*model.Snapshot, *testing_tool.StaticOracle) {
	snapshot := testing_tool.New().
		BaseStations(0, 1, 2).
		Servers(
			&testing_tool.ServerDesc{Id: 1, Provider: 1, BaseStation: 11, Cpu: 1, Memory: 1, Trust: 5},
			&testing_tool.ServerDesc{Id: 2, Provider: 1, BaseStation: 12, Cpu: 4, Memory: 4, Trust: 5},
		).
		Users(
			&testing_tool.UserDesc{
				Id: 1, BaseStation: 0, Application: 1,
				Services: []*testing_tool.ServiceDesc{{Id: 10, Cpu: 1, Memory: 1, Server: 2}},
			},
			&testing_tool.UserDesc{
				Id: 2, BaseStation: 0, Application: 2,
				Services: []*testing_tool.ServiceDesc{{Id: 20, Cpu: 1, Memory: 1, Server: 2}},
			},
		).
		Build()

	oracle := testing_tool.NewStaticOracle().
		Set(0, 11, 10).Set(0, 12, 5).
		Set(1, 11, 1).Set(1, 12, 6)

	return snapshot, oracle
}

func TestCapacityContention(t *testing.T) {
	snapshot, oracle := contendedSnapshot()

	// user 2 moves first but application 1 is evaluated first
	decisions := NewArgos(oracle).HandleMobility(snapshot, batch(1, [2]int{2, 1}, [2]int{1, 1}))
	require.Len(t, decisions, 2)

	assert.Equal(t, 1, decisions[0].ApplicationId)
	assert.True(t, decisions[0].Migrated)
	assert.Equal(t, 1, decisions[0].TargetServerId)

	assert.Equal(t, 2, decisions[1].ApplicationId)
	assert.False(t, decisions[1].Migrated)
	assert.Equal(t, 1, decisions[1].Candidates)
	assert.Equal(t, 1, decisions[1].Sequence)

	assert.Equal(t, 1, hostOf(t, snapshot, 10))
	assert.Equal(t, 2, hostOf(t, snapshot, 20))
	require.NoError(t, snapshot.CheckConservation())
}

func TestDeterminism(t *testing.T) {
	seed, oracle := contendedSnapshot()
	batches := []*model.MobilityBatch{
		batch(1, [2]int{2, 1}, [2]int{1, 1}),
		batch(2, [2]int{1, 0}),
		batch(3, [2]int{2, 0}, [2]int{1, 1}),
	}

	run := func() []*model.PlacementDecision {
		snapshot := seed.Clone()
		argos := NewArgos(oracle)

		ret := make([]*model.PlacementDecision, 0)
		for _, b := range batches {
			ret = append(ret, argos.HandleMobility(snapshot, b)...)
		}
		return ret
	}

	first := run()
	second := run()
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)

	// the seed itself was never touched
	assert.Equal(t, 2, hostOf(t, seed, 10))
}

func TestCapacityConservationAndNoOrphans(t *testing.T) {
	random := rand.New(rand.NewSource(1))

	builder := testing_tool.New().BaseStations(0, 1, 2, 3)
	for id := 1; id <= 4; id++ {
		builder.Servers(&testing_tool.ServerDesc{
			Id: id, Provider: id % 2, BaseStation: 10 + id, Cpu: 3, Memory: 3, Trust: id,
		})
	}
	for id := 1; id <= 3; id++ {
		builder.Users(&testing_tool.UserDesc{
			Id: id, BaseStation: 0, Application: id,
			Services: []*testing_tool.ServiceDesc{
				{Id: 10 * id, Requirement: id - 1, Cpu: 1, Memory: 1, Server: testing_tool.UNDEFINED},
				{Id: 10*id + 1, Requirement: 0, Cpu: 1, Memory: 0.5, Server: testing_tool.UNDEFINED},
			},
		})
	}
	snapshot := builder.Build()

	oracle := testing_tool.NewStaticOracle()
	for location := 0; location < 4; location++ {
		for id := 1; id <= 4; id++ {
			oracle.Set(location, 10+id, float64(random.Intn(5)))
		}
	}

	for _, st := range []*Strategy{NewArgos(oracle), NewRegionTrust(oracle), NewFollowUser(oracle)} {
		current := snapshot.Clone()
		_, err := st.Provision(current)
		require.NoError(t, err, st.Name)

		moves := 0
		for step := 1; step <= 30; step++ {
			b := &model.MobilityBatch{Step: step}
			for id := 1; id <= 3; id++ {
				if random.Intn(2) == 0 {
					b.Events = append(b.Events, &model.MobilityEvent{Step: step, UserId: id, BaseStationId: random.Intn(4)})
				}
			}

			moves += len(b.Events)
			decisions := st.HandleMobility(current, b)
			if len(b.Events) > 0 {
				require.NotEmpty(t, decisions, "%s ignored the events of step %d", st.Name, step)
			}

			require.NoError(t, current.CheckConservation(), "%s at step %d", st.Name, step)
			for _, service := range current.Services {
				require.NotNil(t, service.Server, "%s left microservice %d without host", st.Name, service.Id)
			}
		}
		assert.NotZero(t, moves)
	}
}

func TestRegionTrustDivergence(t *testing.T) {
	// one provider region mixing a weak and a strong server
	snapshot := testing_tool.New().
		BaseStations(0, 1, 2).
		Servers(
			&testing_tool.ServerDesc{Id: 1, Provider: 1, Region: "r", BaseStation: 11, Cpu: 4, Memory: 4, Trust: 2},
			&testing_tool.ServerDesc{Id: 2, Provider: 1, Region: "r", BaseStation: 12, Cpu: 4, Memory: 4, Trust: 4},
		).
		Users(&testing_tool.UserDesc{
			Id: 1, BaseStation: 0, Application: 1, AppRequirement: 3,
			Services: []*testing_tool.ServiceDesc{{Id: 10, Requirement: 3, Cpu: 1, Memory: 1, Server: testing_tool.UNDEFINED}},
		}).
		Build()

	oracle := testing_tool.NewStaticOracle().Set(0, 11, 5).Set(0, 12, 8)

	argosSnapshot := snapshot.Clone()
	require.NoError(t, provision(NewArgos(oracle), argosSnapshot))
	assert.Equal(t, 2, hostOf(t, argosSnapshot, 10))
	assert.False(t, ViolatesPrivacy(argosSnapshot, argosSnapshot.Applications[0]))

	regionSnapshot := snapshot.Clone()
	require.NoError(t, provision(NewRegionTrust(oracle), regionSnapshot))
	assert.Equal(t, 1, hostOf(t, regionSnapshot, 10))

	host, _ := regionSnapshot.Server(1)
	assert.True(t, RegionTrust(regionSnapshot, host) >= 3)
	assert.True(t, ServerTrust(regionSnapshot, host) < 3)
	assert.True(t, ViolatesPrivacy(regionSnapshot, regionSnapshot.Applications[0]))
}

func TestApplicationRequirementIsShared(t *testing.T) {
	snapshot := testing_tool.New().
		BaseStations(0, 1, 2).
		Servers(
			&testing_tool.ServerDesc{Id: 1, Provider: 1, Region: "a", BaseStation: 11, Cpu: 4, Memory: 4, Trust: 1},
			&testing_tool.ServerDesc{Id: 2, Provider: 2, Region: "b", BaseStation: 12, Cpu: 4, Memory: 4, Trust: 3},
		).
		Users(&testing_tool.UserDesc{
			Id: 1, BaseStation: 0, Application: 1, AppRequirement: 3,
			Services: []*testing_tool.ServiceDesc{
				{Id: 10, Requirement: 3, Cpu: 1, Memory: 1, Server: testing_tool.UNDEFINED},
				{Id: 11, Requirement: 0, Cpu: 1, Memory: 1, Server: testing_tool.UNDEFINED},
			},
		}).
		Build()

	oracle := testing_tool.NewStaticOracle().Set(0, 11, 1).Set(0, 12, 9)

	argosSnapshot := snapshot.Clone()
	require.NoError(t, provision(NewArgos(oracle), argosSnapshot))
	assert.Equal(t, 2, hostOf(t, argosSnapshot, 10))
	assert.Equal(t, 1, hostOf(t, argosSnapshot, 11), "insensitive microservices may use weak servers")

	regionSnapshot := snapshot.Clone()
	require.NoError(t, provision(NewRegionTrust(oracle), regionSnapshot))
	assert.Equal(t, 2, hostOf(t, regionSnapshot, 10))
	assert.Equal(t, 2, hostOf(t, regionSnapshot, 11))
}

func TestFollowUserAndNeverMigrate(t *testing.T) {
	build := func() *model.Snapshot {
		return testing_tool.New().
			BaseStations(0, 1, 2).
			Servers(
				&testing_tool.ServerDesc{Id: 1, Provider: 1, BaseStation: 11, Cpu: 4, Memory: 4, Trust: 0},
				&testing_tool.ServerDesc{Id: 2, Provider: 2, BaseStation: 12, Cpu: 4, Memory: 4, Trust: 5},
			).
			Users(&testing_tool.UserDesc{
				Id: 1, BaseStation: 0, Application: 1,
				Services: []*testing_tool.ServiceDesc{{Id: 10, Requirement: 5, Cpu: 1, Memory: 1, Server: 2}},
			}).
			Build()
	}
	oracle := testing_tool.NewStaticOracle().Set(0, 12, 2).Set(1, 11, 1).Set(1, 12, 7)

	follow := build()
	decisions := NewFollowUser(oracle).HandleMobility(follow, batch(1, [2]int{1, 1}))
	require.Len(t, decisions, 1)
	assert.True(t, decisions[0].Migrated)
	assert.Equal(t, 1, hostOf(t, follow, 10))

	never := build()
	decisions = NewNeverMigrate(oracle).HandleMobility(never, batch(1, [2]int{1, 1}))
	require.Len(t, decisions, 1)
	assert.False(t, decisions[0].Migrated)
	assert.Equal(t, 7.0, decisions[0].Delay)
	assert.Equal(t, 2, hostOf(t, never, 10))
}

func TestSLAGated(t *testing.T) {
	build := func() *model.Snapshot {
		return testing_tool.New().
			BaseStations(0, 1, 2).
			Servers(
				&testing_tool.ServerDesc{Id: 1, Provider: 1, BaseStation: 11, Cpu: 4, Memory: 4, Trust: 1},
				&testing_tool.ServerDesc{Id: 2, Provider: 1, BaseStation: 12, Cpu: 4, Memory: 4, Trust: 1},
			).
			Users(&testing_tool.UserDesc{
				Id: 1, BaseStation: 0, Application: 1, SLA: 6,
				Services: []*testing_tool.ServiceDesc{{Id: 10, Cpu: 1, Memory: 1, Server: 2}},
			}).
			Build()
	}
	oracle := testing_tool.NewStaticOracle().
		Set(1, 11, 1).Set(1, 12, 5).
		Set(2, 11, 1).Set(2, 12, 9)

	gated, err := New(ARGOS, oracle, true)
	require.NoError(t, err)

	snapshot := build()
	// delay 5 is within the SLA
	assert.Empty(t, gated.HandleMobility(snapshot, batch(1, [2]int{1, 1})))
	assert.Equal(t, 2, hostOf(t, snapshot, 10))

	decisions := gated.HandleMobility(snapshot, batch(2, [2]int{1, 2}))
	require.Len(t, decisions, 1)
	assert.True(t, decisions[0].Migrated)
	assert.Equal(t, 1, hostOf(t, snapshot, 10))
}

func TestInvalidEventsAreIgnored(t *testing.T) {
	snapshot, oracle := contendedSnapshot()

	decisions := NewArgos(oracle).HandleMobility(snapshot, batch(1, [2]int{42, 1}, [2]int{1, 99}))
	assert.Empty(t, decisions)
	assert.Equal(t, 1, snapshot.Step)
}

func TestNew(t *testing.T) {
	for _, name := range []string{ARGOS, REGION_TRUST, FOLLOW_USER, NEVER_MIGRATE} {
		st, err := New(name, testing_tool.NewStaticOracle(), false)
		require.NoError(t, err)
		assert.Equal(t, name, st.Name)
	}

	_, err := New("first-fit", testing_tool.NewStaticOracle(), false)
	assert.Error(t, err)
}

func TestApplicationDelay(t *testing.T) {
	snapshot := testing_tool.New().
		BaseStations(0, 1, 2).
		Servers(
			&testing_tool.ServerDesc{Id: 1, Provider: 1, BaseStation: 11, Cpu: 4, Memory: 4, Trust: 1},
			&testing_tool.ServerDesc{Id: 2, Provider: 1, BaseStation: 12, Cpu: 4, Memory: 4, Trust: 1},
		).
		Users(&testing_tool.UserDesc{
			Id: 1, BaseStation: 0, Application: 1, SLA: 10,
			Services: []*testing_tool.ServiceDesc{
				{Id: 10, Cpu: 1, Memory: 1, Server: 1},
				{Id: 11, Cpu: 1, Memory: 1, Server: 2},
				{Id: 12, Cpu: 1, Memory: 1, Server: 2},
			},
		}).
		Build()
	oracle := testing_tool.NewStaticOracle().Set(0, 11, 4).Set(11, 12, 3)

	app := snapshot.Applications[0]
	assert.Equal(t, 7.0, ApplicationDelay(oracle, app))
	assert.False(t, ViolatesSLA(oracle, app))

	oracle.Set(11, 12, 7)
	assert.True(t, ViolatesSLA(oracle, app))
}
