package store

import (
	"fmt"

	"github.com/amsen20/argos/internal/model"
	"github.com/amsen20/argos/logging"
)

var log = logging.Get()

// DecisionStore keeps the placement decisions of every run, in step then
// sequence order.
type DecisionStore interface {
	Put(decision *model.PlacementDecision) error
	List(run string) ([]*model.PlacementDecision, error)
	Runs() ([]string, error)
	Count(run string) (int, error)
	Close() error
}

const (
	MEMORY = "memory"
	BOLT   = "bolt"
)

func New(kind string, path string) (DecisionStore, error) {
	switch kind {
	case MEMORY:
		return NewInMemoryDecisionStore(), nil
	case BOLT:
		return NewBoltDBDecisionStore(path, 0600)
	}

	return nil, fmt.Errorf("store kind %q is not recognized", kind)
}

// key orders decisions by step then sequence when compared as bytes.
func key(decision *model.PlacementDecision) string {
	return fmt.Sprintf("%010d-%06d", decision.Step, decision.Sequence)
}
