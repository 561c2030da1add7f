package alg

import (
	"math"

	"github.com/amsen20/argos/internal/model"
)

// ApplicationDelay walks the application's chain: the user reaches the
// first microservice's host over the wireless hop, then every microservice
// talks to the next one. +Inf when a host is missing or unreachable.
func ApplicationDelay(oracle LatencyOracle, app *model.Application) float64 {
	if app.User == nil || len(app.Services) == 0 {
		return 0
	}

	first := app.Services[0].Server
	if first == nil {
		return math.Inf(1)
	}

	delay := oracle.Delay(app.User.BaseStation, first.BaseStation)
	for i := 1; i < len(app.Services); i++ {
		previous := app.Services[i-1].Server
		current := app.Services[i].Server
		if current == nil {
			return math.Inf(1)
		}

		delay += oracle.PathDelay(previous.BaseStation, current.BaseStation)
	}

	return delay
}

// ViolatesSLA reports whether the application's delay exceeds its SLA.
// An application without SLA never violates it.
func ViolatesSLA(oracle LatencyOracle, app *model.Application) bool {
	if app.DelaySLA <= 0 {
		return false
	}

	return ApplicationDelay(oracle, app) > app.DelaySLA
}

// OnTrustedServer checks the microservice's own requirement against the
// server level trust of its host.
func OnTrustedServer(snapshot *model.Snapshot, service *model.Microservice) bool {
	if service.Server == nil {
		return false
	}

	return ServerTrust(snapshot, service.Server) >= service.PrivacyRequirement
}

// ViolatesPrivacy is true when at least one microservice of the
// application sits on a server it does not trust enough.
func ViolatesPrivacy(snapshot *model.Snapshot, app *model.Application) bool {
	for _, service := range app.Services {
		if !OnTrustedServer(snapshot, service) {
			return true
		}
	}

	return false
}
