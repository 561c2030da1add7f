package model

import (
	"encoding/json"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

type DecisionFlag int

const (
	NO_FLAG DecisionFlag = iota
	// INFEASIBLE_PLACEMENT marks an SLA/privacy risk: no server satisfied
	// capacity, trust and reachability, the microservice kept its host.
	INFEASIBLE_PLACEMENT
)

func (f DecisionFlag) String() string {
	if f == INFEASIBLE_PLACEMENT {
		return "infeasible_placement"
	}

	return "none"
}

func (f DecisionFlag) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *DecisionFlag) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none":
		*f = NO_FLAG
	case "infeasible_placement":
		*f = INFEASIBLE_PLACEMENT
	default:
		return fmt.Errorf("unknown decision flag %q", string(text))
	}

	return nil
}

// PlacementDecision is the outcome of evaluating one microservice on one
// mobility batch.
type PlacementDecision struct {
	Run            string       `json:"run" yaml:"run"`
	Strategy       string       `json:"strategy" yaml:"strategy"`
	Step           int          `json:"step" yaml:"step"`
	Sequence       int          `json:"sequence" yaml:"sequence"`
	UserId         int          `json:"user" yaml:"user"`
	ApplicationId  int          `json:"application" yaml:"application"`
	MicroserviceId int          `json:"microservice" yaml:"microservice"`
	SourceServerId int          `json:"source_server" yaml:"source_server"`
	TargetServerId int          `json:"target_server" yaml:"target_server"`
	Delay          float64      `json:"delay" yaml:"delay"`
	Candidates     int          `json:"candidates" yaml:"candidates"`
	Migrated       bool         `json:"migrated" yaml:"migrated"`
	Flag           DecisionFlag `json:"flag" yaml:"flag"`
}

func (d *PlacementDecision) Infeasible() bool {
	return d.Flag == INFEASIBLE_PLACEMENT
}

// Provisioned reports a first placement, the microservice had no host.
func (d *PlacementDecision) Provisioned() bool {
	return d.Migrated && d.SourceServerId < 0
}

func (d *PlacementDecision) String() string {
	bytes, _ := yaml.Marshal(d)
	return string(bytes[:])
}

type plainDecision PlacementDecision

// MarshalJSON writes an infinite delay as null, json has no infinity.
func (d PlacementDecision) MarshalJSON() ([]byte, error) {
	aux := struct {
		*plainDecision
		Delay *float64 `json:"delay"`
	}{plainDecision: (*plainDecision)(&d)}

	if !math.IsInf(d.Delay, 0) && !math.IsNaN(d.Delay) {
		aux.Delay = &d.Delay
	}

	return json.Marshal(aux)
}

func (d *PlacementDecision) UnmarshalJSON(data []byte) error {
	aux := struct {
		*plainDecision
		Delay *float64 `json:"delay"`
	}{plainDecision: (*plainDecision)(d)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	d.Delay = math.Inf(1)
	if aux.Delay != nil {
		d.Delay = *aux.Delay
	}

	return nil
}
