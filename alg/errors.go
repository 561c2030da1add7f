package alg

import "fmt"

// InfeasiblePlacementError is returned when no server satisfies capacity,
// trust and reachability for a microservice. During migration it is only
// reported as a decision flag, provisioning returns it.
type InfeasiblePlacementError struct {
	MicroserviceId int
	ApplicationId  int
}

func (e *InfeasiblePlacementError) Error() string {
	return fmt.Sprintf(
		"no feasible server for microservice %d of application %d",
		e.MicroserviceId,
		e.ApplicationId,
	)
}
