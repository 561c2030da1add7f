package alg

import "fmt"

const (
	ARGOS         = "argos"
	REGION_TRUST  = "region-trust"
	FOLLOW_USER   = "follow-user"
	NEVER_MIGRATE = "never-migrate"
)

// NewArgos filters hosts with the server level trust and each
// microservice's own privacy requirement.
func NewArgos(oracle LatencyOracle) *Strategy {
	return &Strategy{
		Name:        ARGOS,
		Trust:       ServerTrust,
		Requirement: ServiceRequirement,
		Oracle:      oracle,
	}
}

// NewRegionTrust is the comparison heuristic for federated multi-provider
// deployments: trust is only known per provider region and every
// microservice inherits its application's requirement.
func NewRegionTrust(oracle LatencyOracle) *Strategy {
	return &Strategy{
		Name:        REGION_TRUST,
		Trust:       RegionTrust,
		Requirement: ApplicationRequirement,
		Oracle:      oracle,
	}
}

// NewFollowUser chases the lowest delay and ignores privacy.
func NewFollowUser(oracle LatencyOracle) *Strategy {
	return &Strategy{
		Name:        FOLLOW_USER,
		Trust:       IgnoreTrust,
		Requirement: NoRequirement,
		Oracle:      oracle,
	}
}

func NewNeverMigrate(oracle LatencyOracle) *Strategy {
	return &Strategy{
		Name:        NEVER_MIGRATE,
		Trust:       ServerTrust,
		Requirement: ServiceRequirement,
		Oracle:      oracle,
		Frozen:      true,
	}
}

func New(name string, oracle LatencyOracle, slaGated bool) (*Strategy, error) {
	var st *Strategy

	switch name {
	case ARGOS:
		st = NewArgos(oracle)
	case REGION_TRUST:
		st = NewRegionTrust(oracle)
	case FOLLOW_USER:
		st = NewFollowUser(oracle)
	case NEVER_MIGRATE:
		st = NewNeverMigrate(oracle)
	default:
		return nil, fmt.Errorf("algorithm %q is not recognized", name)
	}

	st.SLAGated = slaGated
	return st, nil
}
