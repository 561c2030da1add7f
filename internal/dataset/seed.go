package dataset

import (
	"encoding/json"
	"io/ioutil"

	"github.com/amsen20/argos/internal/model"
	"github.com/amsen20/argos/logging"
	"github.com/pkg/errors"
)

var log = logging.Get()

// Seed is the on-disk layout of a scenario.
type Seed struct {
	WirelessDelay float64           `json:"wireless_delay"`
	Providers     []ProviderSeed    `json:"providers"`
	BaseStations  []BaseStationSeed `json:"base_stations"`
	Links         []LinkSeed        `json:"links"`
	Servers       []ServerSeed      `json:"servers"`
	Trust         TrustSeed         `json:"trust"`
	Users         []UserSeed        `json:"users"`
}

type ProviderSeed struct {
	Id   int    `json:"id"`
	Name string `json:"name"`
}

type BaseStationSeed struct {
	Id     int    `json:"id"`
	Region string `json:"region"`
}

type LinkSeed struct {
	Id    int     `json:"id"`
	From  int     `json:"from"`
	To    int     `json:"to"`
	Delay float64 `json:"delay"`
}

type ServerSeed struct {
	Id          int     `json:"id"`
	Name        string  `json:"name"`
	Provider    int     `json:"provider"`
	Region      string  `json:"region"`
	BaseStation int     `json:"base_station"`
	Cpu         float64 `json:"cpu"`
	Memory      float64 `json:"memory"`
}

type RegionTrustSeed struct {
	Provider int    `json:"provider"`
	Region   string `json:"region"`
	Trust    int    `json:"trust"`
}

type TrustSeed struct {
	Servers   map[int]int       `json:"servers"`
	Providers map[int]int       `json:"providers"`
	Regions   []RegionTrustSeed `json:"regions"`
}

type ServiceSeed struct {
	Id                 int     `json:"id"`
	Name               string  `json:"name"`
	PrivacyRequirement int     `json:"privacy_requirement"`
	Cpu                float64 `json:"cpu"`
	Memory             float64 `json:"memory"`
	Server             *int    `json:"server,omitempty"`
}

type ApplicationSeed struct {
	Id       int     `json:"id"`
	DelaySLA float64 `json:"delay_sla"`
	// nil falls back to the strictest requirement of its microservices.
	PrivacyRequirement *int          `json:"privacy_requirement,omitempty"`
	Services           []ServiceSeed `json:"services"`
}

type UserSeed struct {
	Id          int              `json:"id"`
	BaseStation int              `json:"base_station"`
	Trace       []int            `json:"trace"`
	Application *ApplicationSeed `json:"application,omitempty"`
}

func LoadSeed(path string) (*Seed, error) {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read dataset %s", path)
	}

	seed := &Seed{}
	if err := json.Unmarshal(content, seed); err != nil {
		return nil, errors.Wrapf(err, "could not parse dataset %s", path)
	}

	return seed, nil
}

// LoadSnapshot reads a dataset file and builds its snapshot.
func LoadSnapshot(path string) (*model.Snapshot, error) {
	seed, err := LoadSeed(path)
	if err != nil {
		return nil, err
	}

	snapshot, err := seed.Snapshot()
	if err != nil {
		return nil, errors.Wrapf(err, "invalid dataset %s", path)
	}

	log.Info().Msgf(
		"loaded dataset %s: %d servers, %d base stations, %d users, %d microservices",
		path,
		len(snapshot.Servers),
		len(snapshot.BaseStations),
		len(snapshot.Users),
		len(snapshot.Services),
	)

	return snapshot, nil
}

// Snapshot validates the seed and builds the model out of it. Initial
// hosts given by the seed are placed; the rest are left for provisioning.
func (seed *Seed) Snapshot() (*model.Snapshot, error) {
	snapshot := model.NewSnapshot()

	if seed.WirelessDelay < 0 {
		return nil, errors.Errorf("negative wireless delay %f", seed.WirelessDelay)
	}
	snapshot.WirelessDelay = seed.WirelessDelay

	for _, p := range seed.Providers {
		if !snapshot.AddProvider(&model.Provider{Id: p.Id, Name: p.Name}) {
			return nil, errors.Errorf("duplicate provider %d", p.Id)
		}
	}

	for _, bs := range seed.BaseStations {
		if !snapshot.AddBaseStation(&model.BaseStation{Id: bs.Id, Region: bs.Region}) {
			return nil, errors.Errorf("duplicate base station %d", bs.Id)
		}
	}

	for _, l := range seed.Links {
		from, ok := snapshot.BaseStation(l.From)
		if !ok {
			return nil, errors.Errorf("link %d: unknown base station %d", l.Id, l.From)
		}
		to, ok := snapshot.BaseStation(l.To)
		if !ok {
			return nil, errors.Errorf("link %d: unknown base station %d", l.Id, l.To)
		}
		if l.Delay < 0 {
			return nil, errors.Errorf("link %d: negative delay %f", l.Id, l.Delay)
		}

		snapshot.AddLink(&model.Link{Id: l.Id, From: from, To: to, Delay: l.Delay})
	}

	for _, s := range seed.Servers {
		provider, ok := snapshot.Provider(s.Provider)
		if !ok {
			return nil, errors.Errorf("server %d: unknown provider %d", s.Id, s.Provider)
		}
		bs, ok := snapshot.BaseStation(s.BaseStation)
		if !ok {
			return nil, errors.Errorf("server %d: unknown base station %d", s.Id, s.BaseStation)
		}
		if s.Cpu < 0 || s.Memory < 0 {
			return nil, errors.Errorf("server %d: negative capacity", s.Id)
		}

		region := s.Region
		if region == "" {
			region = bs.Region
		}

		if !snapshot.AddServer(&model.EdgeServer{
			Id:          s.Id,
			Name:        s.Name,
			Provider:    provider,
			Region:      region,
			BaseStation: bs,
			Capacity:    model.NewResources(s.Cpu, s.Memory),
		}) {
			return nil, errors.Errorf("duplicate server %d", s.Id)
		}
	}

	if err := seed.Trust.fill(snapshot); err != nil {
		return nil, err
	}

	if err := seed.addUsers(snapshot); err != nil {
		return nil, err
	}

	return snapshot, nil
}

func (t TrustSeed) fill(snapshot *model.Snapshot) error {
	for id, level := range t.Servers {
		if _, ok := snapshot.Server(id); !ok {
			return errors.Errorf("trust given for unknown server %d", id)
		}
		if level < 0 {
			return errors.Errorf("negative trust %d for server %d", level, id)
		}
		snapshot.Trust.Servers[id] = model.TrustLevel(level)
	}

	for id, level := range t.Providers {
		if _, ok := snapshot.Provider(id); !ok {
			return errors.Errorf("trust given for unknown provider %d", id)
		}
		if level < 0 {
			return errors.Errorf("negative trust %d for provider %d", level, id)
		}
		snapshot.Trust.Providers[id] = model.TrustLevel(level)
	}

	for _, r := range t.Regions {
		if r.Trust < 0 {
			return errors.Errorf("negative trust %d for region %s of provider %d", r.Trust, r.Region, r.Provider)
		}
		snapshot.Trust.Regions[model.RegionKey{ProviderId: r.Provider, Region: r.Region}] = model.TrustLevel(r.Trust)
	}

	return nil
}

func (seed *Seed) addUsers(snapshot *model.Snapshot) error {
	serviceIds := make(map[int]bool)
	applicationIds := make(map[int]bool)

	for _, u := range seed.Users {
		bs, ok := snapshot.BaseStation(u.BaseStation)
		if !ok {
			return errors.Errorf("user %d: unknown base station %d", u.Id, u.BaseStation)
		}

		if len(u.Trace) > 0 && u.Trace[0] != u.BaseStation {
			return errors.Errorf("user %d: trace starts at base station %d, not at %d", u.Id, u.Trace[0], u.BaseStation)
		}

		for step, id := range u.Trace {
			if _, ok := snapshot.BaseStation(id); !ok {
				return errors.Errorf("user %d: unknown base station %d at step %d of its trace", u.Id, id, step)
			}
		}

		user := &model.User{
			Id:          u.Id,
			BaseStation: bs,
			Trace:       u.Trace,
		}

		var placements map[*model.Microservice]*model.EdgeServer
		if u.Application != nil {
			if applicationIds[u.Application.Id] {
				return errors.Errorf("duplicate application %d", u.Application.Id)
			}
			applicationIds[u.Application.Id] = true

			app, hosts, err := buildApplication(snapshot, u.Application, serviceIds)
			if err != nil {
				return errors.Wrapf(err, "user %d", u.Id)
			}
			user.Application = app
			placements = hosts
		}

		if !snapshot.AddUser(user) {
			return errors.Errorf("duplicate user %d", u.Id)
		}

		if user.Application == nil {
			continue
		}
		for _, service := range user.Application.Services {
			server, ok := placements[service]
			if !ok {
				continue
			}
			if err := snapshot.Place(service, server); err != nil {
				return errors.Wrap(err, "invalid initial placement")
			}
		}
	}

	return nil
}

func buildApplication(
	snapshot *model.Snapshot,
	a *ApplicationSeed,
	serviceIds map[int]bool,
) (*model.Application, map[*model.Microservice]*model.EdgeServer, error) {
	if len(a.Services) == 0 {
		return nil, nil, errors.Errorf("application %d has no microservices", a.Id)
	}
	if a.DelaySLA < 0 {
		return nil, nil, errors.Errorf("application %d has a negative delay sla", a.Id)
	}

	app := &model.Application{
		Id:       a.Id,
		DelaySLA: a.DelaySLA,
	}
	hosts := make(map[*model.Microservice]*model.EdgeServer)

	strictest := model.MinTrust
	for _, s := range a.Services {
		if serviceIds[s.Id] {
			return nil, nil, errors.Errorf("duplicate microservice %d", s.Id)
		}
		serviceIds[s.Id] = true

		if s.PrivacyRequirement < 0 {
			return nil, nil, errors.Errorf("microservice %d has a negative privacy requirement", s.Id)
		}
		if s.Cpu < 0 || s.Memory < 0 {
			return nil, nil, errors.Errorf("microservice %d has a negative demand", s.Id)
		}

		service := &model.Microservice{
			Id:                 s.Id,
			Name:               s.Name,
			PrivacyRequirement: model.TrustLevel(s.PrivacyRequirement),
			Demand:             model.NewResources(s.Cpu, s.Memory),
		}
		if service.PrivacyRequirement > strictest {
			strictest = service.PrivacyRequirement
		}

		if s.Server != nil {
			server, ok := snapshot.Server(*s.Server)
			if !ok {
				return nil, nil, errors.Errorf("microservice %d: unknown server %d", s.Id, *s.Server)
			}
			hosts[service] = server
		}

		app.Services = append(app.Services, service)
	}

	if a.PrivacyRequirement == nil {
		app.PrivacyRequirement = strictest
	} else {
		if *a.PrivacyRequirement < 0 {
			return nil, nil, errors.Errorf("application %d has a negative privacy requirement", a.Id)
		}
		app.PrivacyRequirement = model.TrustLevel(*a.PrivacyRequirement)
	}

	return app, hosts, nil
}
