package alg

import (
	"math"

	"github.com/amsen20/argos/internal/model"
	"github.com/amsen20/argos/internal/utils"
)

// LatencyOracle estimates delays between two locations of the network.
type LatencyOracle interface {
	// Delay includes the wireless hop of the user.
	Delay(from, to *model.BaseStation) float64
	PathDelay(from, to *model.BaseStation) float64
}

type Candidate struct {
	Server   *model.EdgeServer
	Delay    float64
	Headroom float64 // normalized residual left after hosting the microservice
	Current  bool
}

// FilterCandidates returns every server that can host the microservice:
// reachable from location, with enough residual capacity and trusted at
// least as much as required. It does not touch the snapshot.
func FilterCandidates(
	snapshot *model.Snapshot,
	service *model.Microservice,
	location *model.BaseStation,
	trust TrustFunc,
	requirement RequirementFunc,
	oracle LatencyOracle,
) []*Candidate {
	candidates := make([]*Candidate, 0)
	required := requirement(service)
	maximumResources := snapshot.GetMaximumResources()

	for _, server := range snapshot.Servers {
		delay := oracle.Delay(location, server.BaseStation)
		if math.IsInf(delay, 1) || math.IsNaN(delay) {
			continue
		}

		current := service.Server != nil && service.Server.Id == server.Id

		// the current host already accounts the microservice's demand
		residual := snapshot.Residual(server)
		if current {
			utils.SAddVec(residual, service.Demand)
		}

		if utils.LThan(residual, service.Demand) {
			continue
		}

		if trust(snapshot, server) < required {
			continue
		}

		candidates = append(candidates, &Candidate{
			Server:   server,
			Delay:    delay,
			Headroom: utils.CalcHeadroom(utils.SubVec(residual, service.Demand), maximumResources),
			Current:  current,
		})
	}

	return candidates
}
