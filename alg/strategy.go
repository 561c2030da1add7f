package alg

import (
	"fmt"
	"math"
	"sort"

	"github.com/amsen20/argos/internal/model"
	"github.com/amsen20/argos/internal/utils"
	"github.com/amsen20/argos/logging"
)

var log = logging.Get()

// Strategy is the migration engine shared by every algorithm. Algorithms
// only differ in how trust and privacy requirements are looked up.
type Strategy struct {
	Name        string
	Trust       TrustFunc
	Requirement RequirementFunc
	Oracle      LatencyOracle

	// SLAGated only re-evaluates applications whose delay exceeds the SLA.
	SLAGated bool
	// Frozen strategies never move anything.
	Frozen bool
}

// Provision places every microservice without a host, in application id
// then chain order, and returns one decision per placement. It stops at
// the first microservice that cannot be placed anywhere.
func (st *Strategy) Provision(snapshot *model.Snapshot) ([]*model.PlacementDecision, error) {
	decisions := make([]*model.PlacementDecision, 0)

	for _, app := range sortedApplications(snapshot.Applications) {
		for _, service := range app.Services {
			if service.Server != nil {
				continue
			}

			candidates := FilterCandidates(snapshot, service, app.User.BaseStation, st.Trust, st.Requirement, st.Oracle)
			chosen := SelectPlacement(candidates)
			if chosen == nil {
				return decisions, &InfeasiblePlacementError{MicroserviceId: service.Id, ApplicationId: app.Id}
			}

			if err := snapshot.Place(service, chosen.Server); err != nil {
				return decisions, fmt.Errorf("could not provision microservice %d: %w", service.Id, err)
			}

			decisions = append(decisions, &model.PlacementDecision{
				Strategy:       st.Name,
				Step:           snapshot.Step,
				Sequence:       len(decisions),
				UserId:         app.User.Id,
				ApplicationId:  app.Id,
				MicroserviceId: service.Id,
				SourceServerId: -1,
				TargetServerId: chosen.Server.Id,
				Delay:          chosen.Delay,
				Candidates:     len(candidates),
				Migrated:       true,
			})
		}
	}

	return decisions, nil
}

// HandleMobility applies the batch's mobility events and re-evaluates the
// placement of every microservice of the affected applications. It runs
// to completion over the snapshot; applications are visited by id and
// microservices by chain index, so earlier ones win contended capacity.
func (st *Strategy) HandleMobility(snapshot *model.Snapshot, batch *model.MobilityBatch) []*model.PlacementDecision {
	snapshot.Step = batch.Step

	affectedUsers := make([]*model.User, 0, len(batch.Events))
	for _, event := range batch.Events {
		user, err := snapshot.MoveUser(event)
		if err != nil {
			log.Warn().Err(err).Msgf("ignoring mobility event of step %d", batch.Step)
			continue
		}

		affectedUsers = append(affectedUsers, user)
	}

	affectedUserIds := utils.SliceToMap(affectedUsers, func(user *model.User) int { return user.Id })

	apps := make([]*model.Application, 0)
	for _, app := range snapshot.Applications {
		if app.User != nil && affectedUserIds[app.User.Id] {
			apps = append(apps, app)
		}
	}

	return st.evaluateApplications(snapshot, sortedApplications(apps))
}

func (st *Strategy) evaluateApplications(snapshot *model.Snapshot, apps []*model.Application) []*model.PlacementDecision {
	decisions := make([]*model.PlacementDecision, 0)

	for _, app := range apps {
		if st.SLAGated && !ViolatesSLA(st.Oracle, app) {
			continue
		}

		for _, service := range app.Services {
			decision := st.evaluate(snapshot, service)
			decision.Sequence = len(decisions)
			decisions = append(decisions, decision)
		}
	}

	return decisions
}

func (st *Strategy) evaluate(snapshot *model.Snapshot, service *model.Microservice) *model.PlacementDecision {
	app := service.Application
	location := app.User.BaseStation

	service.State = model.EVALUATING

	decision := &model.PlacementDecision{
		Strategy:       st.Name,
		Step:           snapshot.Step,
		UserId:         app.User.Id,
		ApplicationId:  app.Id,
		MicroserviceId: service.Id,
		SourceServerId: -1,
		TargetServerId: -1,
		Delay:          math.Inf(1),
	}
	if service.Server != nil {
		decision.SourceServerId = service.Server.Id
		decision.TargetServerId = service.Server.Id
		decision.Delay = st.Oracle.Delay(location, service.Server.BaseStation)
	}

	if st.Frozen {
		service.State = model.STABLE
		return decision
	}

	candidates := FilterCandidates(snapshot, service, location, st.Trust, st.Requirement, st.Oracle)
	decision.Candidates = len(candidates)

	chosen := SelectPlacement(candidates)
	if chosen == nil {
		service.State = model.STABLE
		decision.Flag = model.INFEASIBLE_PLACEMENT

		log.Warn().Msgf(
			"%s: no feasible server for microservice %d of application %d, keeping server %d",
			st.Name,
			service.Id,
			app.Id,
			decision.SourceServerId,
		)
		return decision
	}

	decision.TargetServerId = chosen.Server.Id
	decision.Delay = chosen.Delay

	if chosen.Current {
		service.State = model.STABLE
		log.Debug().Msgf("%s: microservice %d stays on server %d", st.Name, service.Id, chosen.Server.Id)
		return decision
	}

	service.State = model.MIGRATING
	if service.Server == nil {
		if err := snapshot.Place(service, chosen.Server); err != nil {
			panic(err)
		}
	} else {
		snapshot.Migrate(service, chosen.Server)
	}
	service.State = model.STABLE
	decision.Migrated = true

	return decision
}

func sortedApplications(apps []*model.Application) []*model.Application {
	ret := make([]*model.Application, len(apps))
	copy(ret, apps)

	sort.Stable(&Sorter[model.Application]{
		objects: ret,
		by:      func(app *model.Application) float64 { return float64(app.Id) },
	})

	return ret
}
