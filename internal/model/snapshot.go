package model

import (
	"fmt"
	"math"
	"sort"

	"github.com/amsen20/argos/internal/utils"
	"github.com/amsen20/argos/logging"
	"gonum.org/v1/gonum/mat"
)

var log = logging.Get()

// Snapshot is the whole simulated infrastructure. Strategies receive it
// explicitly and mutate it only through Migrate.
type Snapshot struct {
	Providers    []*Provider
	BaseStations []*BaseStation
	Links        []*Link
	Servers      []*EdgeServer
	Applications []*Application
	Users        []*User
	Services     []*Microservice

	Trust         *TrustTable
	WirelessDelay float64
	Step          int

	ServerResourcesUsed map[int]*mat.VecDense

	providerIdToProvider       map[int]*Provider
	baseStationIdToBaseStation map[int]*BaseStation
	serverIdToServer           map[int]*EdgeServer
	userIdToUser               map[int]*User
	applicationIdToApplication map[int]*Application
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		Trust:                      NewTrustTable(),
		ServerResourcesUsed:        make(map[int]*mat.VecDense),
		providerIdToProvider:       make(map[int]*Provider),
		baseStationIdToBaseStation: make(map[int]*BaseStation),
		serverIdToServer:           make(map[int]*EdgeServer),
		userIdToUser:               make(map[int]*User),
		applicationIdToApplication: make(map[int]*Application),
	}
}

func NewResources(cpu, memory float64) *mat.VecDense {
	return mat.NewVecDense(ResourceCount, []float64{cpu, memory})
}

func (s *Snapshot) AddProvider(p *Provider) bool {
	if _, ok := s.providerIdToProvider[p.Id]; ok {
		return false
	}

	s.providerIdToProvider[p.Id] = p
	s.Providers = append(s.Providers, p)

	return true
}

func (s *Snapshot) AddBaseStation(bs *BaseStation) bool {
	if _, ok := s.baseStationIdToBaseStation[bs.Id]; ok {
		return false
	}

	s.baseStationIdToBaseStation[bs.Id] = bs
	s.BaseStations = append(s.BaseStations, bs)

	return true
}

func (s *Snapshot) AddLink(l *Link) {
	s.Links = append(s.Links, l)
}

func (s *Snapshot) AddServer(server *EdgeServer) bool {
	if _, ok := s.serverIdToServer[server.Id]; ok {
		return false
	}

	s.serverIdToServer[server.Id] = server
	s.Servers = append(s.Servers, server)
	s.ServerResourcesUsed[server.Id] = mat.NewVecDense(ResourceCount, nil)

	return true
}

// AddUser registers the user together with its application and the
// application's microservices. Hosts are assigned later through Place.
func (s *Snapshot) AddUser(user *User) bool {
	if _, ok := s.userIdToUser[user.Id]; ok {
		return false
	}

	s.userIdToUser[user.Id] = user
	s.Users = append(s.Users, user)

	app := user.Application
	if app == nil {
		return true
	}

	app.User = user
	s.applicationIdToApplication[app.Id] = app
	s.Applications = append(s.Applications, app)
	for index, service := range app.Services {
		service.Application = app
		service.Index = index
		s.Services = append(s.Services, service)
	}

	return true
}

func (s *Snapshot) Provider(id int) (*Provider, bool) {
	p, ok := s.providerIdToProvider[id]
	return p, ok
}

func (s *Snapshot) BaseStation(id int) (*BaseStation, bool) {
	bs, ok := s.baseStationIdToBaseStation[id]
	return bs, ok
}

func (s *Snapshot) Server(id int) (*EdgeServer, bool) {
	server, ok := s.serverIdToServer[id]
	return server, ok
}

func (s *Snapshot) User(id int) (*User, bool) {
	user, ok := s.userIdToUser[id]
	return user, ok
}

func (s *Snapshot) Application(id int) (*Application, bool) {
	app, ok := s.applicationIdToApplication[id]
	return app, ok
}

// Residual returns a fresh vector, callers may keep or modify it.
func (s *Snapshot) Residual(server *EdgeServer) *mat.VecDense {
	return utils.SubVec(server.Capacity, s.ServerResourcesUsed[server.Id])
}

// Place gives a microservice without host its first server.
func (s *Snapshot) Place(service *Microservice, server *EdgeServer) error {
	if service.Server != nil {
		return fmt.Errorf("microservice %d is already hosted on server %d", service.Id, service.Server.Id)
	}

	used, ok := s.ServerResourcesUsed[server.Id]
	if !ok {
		return &NotFoundError{Kind: "server", Id: server.Id}
	}

	if utils.LThan(s.Residual(server), service.Demand) {
		return fmt.Errorf("not enough resources for microservice %d to be placed on server %d", service.Id, server.Id)
	}

	utils.SAddVec(used, service.Demand)
	service.Server = server
	service.State = STABLE

	log.Debug().Msgf("placed microservice %d on server %d", service.Id, server.Id)

	return nil
}

// Migrate moves the microservice's demand from its host to target and
// repoints the host reference in the same call. A target without room
// is a bookkeeping bug and panics with a CapacityInconsistencyError.
func (s *Snapshot) Migrate(service *Microservice, target *EdgeServer) {
	source := service.Server
	if source == nil {
		panic(fmt.Errorf("microservice %d has no host to migrate from", service.Id))
	}

	if source.Id == target.Id {
		return
	}

	targetUsed, ok := s.ServerResourcesUsed[target.Id]
	if !ok {
		panic(&NotFoundError{Kind: "server", Id: target.Id})
	}

	residual := s.Residual(target)
	if utils.LThan(residual, service.Demand) {
		panic(&CapacityInconsistencyError{
			ServerId:       target.Id,
			MicroserviceId: service.Id,
			Residual:       residual,
			Demand:         service.Demand,
		})
	}

	sourceUsed := s.ServerResourcesUsed[source.Id]
	if !utils.LEThan(service.Demand, sourceUsed) {
		panic(&CapacityInconsistencyError{
			ServerId:       source.Id,
			MicroserviceId: service.Id,
			Residual:       s.Residual(source),
			Demand:         service.Demand,
		})
	}

	utils.SSubVec(sourceUsed, service.Demand)
	utils.SAddVec(targetUsed, service.Demand)
	service.Server = target

	log.Info().Msgf("migrated microservice %d from server %d to server %d", service.Id, source.Id, target.Id)
}

// MoveUser applies a mobility event.
func (s *Snapshot) MoveUser(event *MobilityEvent) (*User, error) {
	user, ok := s.User(event.UserId)
	if !ok {
		return nil, &NotFoundError{Kind: "user", Id: event.UserId}
	}

	bs, ok := s.BaseStation(event.BaseStationId)
	if !ok {
		return nil, &NotFoundError{Kind: "base station", Id: event.BaseStationId}
	}

	user.BaseStation = bs
	return user, nil
}

// HostedDemand sums the demand of every microservice hosted on server.
func (s *Snapshot) HostedDemand(server *EdgeServer) *mat.VecDense {
	ret := mat.NewVecDense(ResourceCount, nil)
	for _, service := range s.Services {
		if service.Server != nil && service.Server.Id == server.Id {
			utils.SAddVec(ret, service.Demand)
		}
	}

	return ret
}

// CheckConservation verifies residual + hosted demand == capacity and
// that no residual is negative on every server.
func (s *Snapshot) CheckConservation() error {
	for _, server := range s.Servers {
		residual := s.Residual(server)
		hosted := s.HostedDemand(server)
		for i := 0; i < ResourceCount; i++ {
			if residual.AtVec(i) < -utils.EPS {
				return fmt.Errorf("server %d has negative residual %s", server.Id, utils.ToString(residual))
			}

			if math.Abs(residual.AtVec(i)+hosted.AtVec(i)-server.Capacity.AtVec(i)) > utils.EPS {
				return fmt.Errorf(
					"server %d does not conserve capacity: residual %s hosted %s capacity %s",
					server.Id,
					utils.ToString(residual),
					utils.ToString(hosted),
					utils.ToString(server.Capacity),
				)
			}
		}
	}

	return nil
}

func (s *Snapshot) GetMaximumResources() *mat.VecDense {
	ret := mat.NewVecDense(ResourceCount, nil)
	for _, server := range s.Servers {
		for i := 0; i < ResourceCount; i++ {
			ret.SetVec(i, math.Max(ret.AtVec(i), server.Capacity.AtVec(i)))
		}
	}

	return ret
}

// Clone copies the mutable part of the snapshot (users, applications,
// microservices and capacity bookkeeping). Providers, base stations,
// links, servers and the trust table are shared.
func (s *Snapshot) Clone() *Snapshot {
	ret := NewSnapshot()
	ret.Trust = s.Trust
	ret.WirelessDelay = s.WirelessDelay
	ret.Step = s.Step

	for _, p := range s.Providers {
		ret.AddProvider(p)
	}
	for _, bs := range s.BaseStations {
		ret.AddBaseStation(bs)
	}
	for _, l := range s.Links {
		ret.AddLink(l)
	}
	for _, server := range s.Servers {
		ret.AddServer(server)
	}

	for _, user := range s.Users {
		clonedUser := &User{
			Id:          user.Id,
			BaseStation: user.BaseStation,
			Trace:       user.Trace,
		}

		if app := user.Application; app != nil {
			clonedApp := &Application{
				Id:                 app.Id,
				DelaySLA:           app.DelaySLA,
				PrivacyRequirement: app.PrivacyRequirement,
			}
			for _, service := range app.Services {
				clonedApp.Services = append(clonedApp.Services, &Microservice{
					Id:                 service.Id,
					Name:               service.Name,
					PrivacyRequirement: service.PrivacyRequirement,
					Demand:             service.Demand,
					Server:             service.Server,
					State:              service.State,
				})
			}
			clonedUser.Application = clonedApp
		}

		ret.AddUser(clonedUser)
	}

	for id, used := range s.ServerResourcesUsed {
		ret.ServerResourcesUsed[id] = mat.VecDenseCopyOf(used)
	}

	return ret
}

// Placement maps every microservice id to its host id, -1 for none.
func (s *Snapshot) Placement() map[int]int {
	ret := make(map[int]int, len(s.Services))
	for _, service := range s.Services {
		if service.Server == nil {
			ret[service.Id] = -1
			continue
		}
		ret[service.Id] = service.Server.Id
	}

	return ret
}

func (s *Snapshot) Display() string {
	repr := ""

	repr += fmt.Sprintf("STEP %d\n", s.Step)
	repr += "USERS:\n"
	for _, user := range s.Users {
		repr += fmt.Sprintf("{user %d at base station %d}", user.Id, user.BaseStation.Id)
		if user.Application != nil {
			repr += fmt.Sprintf(" application %d", user.Application.Id)
		}
		repr += "\n"
	}

	repr += "\nSHOWING SNAPSHOT:\n\n\n"
	repr += "========{\n"
	repr += "EDGE SERVERS:\n"

	servers := make([]*EdgeServer, len(s.Servers))
	copy(servers, s.Servers)
	sort.Slice(servers, func(i, j int) bool { return servers[i].Id < servers[j].Id })

	for _, server := range servers {
		residual := s.Residual(server)
		serverDesc := fmt.Sprintf(
			"{server %d provider %d region %s (%f, %f) free (%f, %f)}: ",
			server.Id,
			RegionOf(server).ProviderId,
			server.Region,
			server.Capacity.AtVec(CPU),
			server.Capacity.AtVec(MEMORY),
			residual.AtVec(CPU),
			residual.AtVec(MEMORY),
		)
		for _, service := range s.Services {
			if service.Server != nil && service.Server.Id == server.Id {
				serverDesc += fmt.Sprintf(
					"{microservice %d of app %d (%f, %f)} || ",
					service.Id,
					service.Application.Id,
					service.Demand.AtVec(CPU),
					service.Demand.AtVec(MEMORY),
				)
			}
		}

		repr += serverDesc
		repr += "\n"
	}

	repr += "========}\n"

	return repr
}
