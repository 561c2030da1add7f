package testing_tool

import (
	"math"

	"github.com/amsen20/argos/internal/model"
)

// StaticOracle answers delays from a fixed table keyed by base station
// ids. Missing pairs are unreachable, a base station reaches itself at 0.
type StaticOracle struct {
	Delays map[[2]int]float64
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{Delays: make(map[[2]int]float64)}
}

// Set records a symmetric delay.
func (o *StaticOracle) Set(from, to int, delay float64) *StaticOracle {
	o.Delays[[2]int{from, to}] = delay
	o.Delays[[2]int{to, from}] = delay
	return o
}

func (o *StaticOracle) PathDelay(from, to *model.BaseStation) float64 {
	if from.Id == to.Id {
		if delay, ok := o.Delays[[2]int{from.Id, to.Id}]; ok {
			return delay
		}
		return 0
	}

	delay, ok := o.Delays[[2]int{from.Id, to.Id}]
	if !ok {
		return math.Inf(1)
	}

	return delay
}

func (o *StaticOracle) Delay(from, to *model.BaseStation) float64 {
	return o.PathDelay(from, to)
}
