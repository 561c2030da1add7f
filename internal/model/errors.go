package model

import (
	"fmt"

	"github.com/amsen20/argos/internal/utils"
	"gonum.org/v1/gonum/mat"
)

// CapacityInconsistencyError means the residual capacity of a server would
// go negative. Filtering candidates before placing them rules it out, so
// seeing it is a bookkeeping bug and the snapshot panics with it.
type CapacityInconsistencyError struct {
	ServerId       int
	MicroserviceId int
	Residual       *mat.VecDense
	Demand         *mat.VecDense
}

func (e *CapacityInconsistencyError) Error() string {
	return fmt.Sprintf(
		"capacity inconsistency on server %d for microservice %d: residual %s, demand %s",
		e.ServerId,
		e.MicroserviceId,
		utils.ToString(e.Residual),
		utils.ToString(e.Demand),
	)
}

type NotFoundError struct {
	Kind string
	Id   int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.Id)
}
