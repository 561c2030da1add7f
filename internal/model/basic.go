package model

import "gonum.org/v1/gonum/mat"

// Resource dimensions of every demand and capacity vector.
const (
	CPU = iota
	MEMORY

	ResourceCount
)

type TrustLevel int

// MinTrust is what an entity missing from the trust table is worth.
const MinTrust TrustLevel = 0

type Provider struct {
	Id   int
	Name string
}

type BaseStation struct {
	Id     int
	Region string
}

type Link struct {
	Id    int
	From  *BaseStation
	To    *BaseStation
	Delay float64
}

type EdgeServer struct {
	Id          int
	Name        string
	Provider    *Provider
	Region      string
	BaseStation *BaseStation
	Capacity    *mat.VecDense
}

type User struct {
	Id          int
	BaseStation *BaseStation
	Application *Application

	// Base station ids indexed by step, step 0 being the seed position.
	Trace []int
}

type Application struct {
	Id                 int
	User               *User
	DelaySLA           float64
	PrivacyRequirement TrustLevel
	Services           []*Microservice
}

type MigrationState int

const (
	STABLE MigrationState = iota
	EVALUATING
	MIGRATING
)

func (s MigrationState) String() string {
	switch s {
	case STABLE:
		return "stable"
	case EVALUATING:
		return "evaluating"
	case MIGRATING:
		return "migrating"
	}

	return "unknown"
}

type Microservice struct {
	Id                 int
	Name               string
	Application        *Application
	Index              int // position in the application's chain
	PrivacyRequirement TrustLevel
	Demand             *mat.VecDense

	// Server is not owned by the microservice, the snapshot accounts
	// its demand on the server.
	Server *EdgeServer
	State  MigrationState
}

// MobilityEvent moves a user to a new base station.
type MobilityEvent struct {
	Step          int `yaml:"step"`
	UserId        int `yaml:"user"`
	BaseStationId int `yaml:"base_station"`
}

// MobilityBatch holds every event fired at the same step.
type MobilityBatch struct {
	Step   int
	Events []*MobilityEvent
}
