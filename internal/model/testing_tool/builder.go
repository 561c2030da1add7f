// Because it is a testing package, no errors are returned,
// all problems cause a panic.

package testing_tool

import (
	"fmt"
	"sort"

	"github.com/amsen20/argos/internal/model"
)

// UNDEFINED leaves a server out of the trust table.
const UNDEFINED = -1

type ServerDesc struct {
	Id          int
	Provider    int
	Region      string
	BaseStation int
	Cpu         float64
	Memory      float64
	Trust       int
}

type ServiceDesc struct {
	Id          int
	Requirement int
	Cpu         float64
	Memory      float64
	Server      int // host in the seed, UNDEFINED for none
}

type UserDesc struct {
	Id             int
	BaseStation    int
	Application    int
	SLA            float64
	AppRequirement int
	Services       []*ServiceDesc
	Trace          []int
}

type Builder struct {
	baseStations  []int
	links         [][3]float64
	servers       []*ServerDesc
	users         []*UserDesc
	providerTrust map[int]int
	regionTrust   map[model.RegionKey]int
	wirelessDelay float64
}

func New() *Builder {
	return &Builder{
		providerTrust: make(map[int]int),
		regionTrust:   make(map[model.RegionKey]int),
	}
}

func (builder *Builder) BaseStations(ids ...int) *Builder {
	builder.baseStations = append(builder.baseStations, ids...)
	return builder
}

func (builder *Builder) Link(from, to int, delay float64) *Builder {
	builder.links = append(builder.links, [3]float64{float64(from), float64(to), delay})
	return builder
}

func (builder *Builder) WirelessDelay(delay float64) *Builder {
	builder.wirelessDelay = delay
	return builder
}

func (builder *Builder) Servers(servers ...*ServerDesc) *Builder {
	builder.servers = append(builder.servers, servers...)
	return builder
}

func (builder *Builder) Users(users ...*UserDesc) *Builder {
	builder.users = append(builder.users, users...)
	return builder
}

func (builder *Builder) ProviderTrust(provider, level int) *Builder {
	builder.providerTrust[provider] = level
	return builder
}

func (builder *Builder) RegionTrust(provider int, region string, level int) *Builder {
	builder.regionTrust[model.RegionKey{ProviderId: provider, Region: region}] = level
	return builder
}

func (builder *Builder) baseStation(snapshot *model.Snapshot, id int) *model.BaseStation {
	bs, ok := snapshot.BaseStation(id)
	if !ok {
		bs = &model.BaseStation{Id: id}
		snapshot.AddBaseStation(bs)
	}

	return bs
}

func (builder *Builder) Build() *model.Snapshot {
	snapshot := model.NewSnapshot()
	snapshot.WirelessDelay = builder.wirelessDelay

	for _, id := range builder.baseStations {
		builder.baseStation(snapshot, id)
	}

	for ind, link := range builder.links {
		snapshot.AddLink(&model.Link{
			Id:    ind,
			From:  builder.baseStation(snapshot, int(link[0])),
			To:    builder.baseStation(snapshot, int(link[1])),
			Delay: link[2],
		})
	}

	for _, desc := range builder.servers {
		provider, ok := snapshot.Provider(desc.Provider)
		if !ok {
			provider = &model.Provider{Id: desc.Provider, Name: fmt.Sprintf("provider-%d", desc.Provider)}
			snapshot.AddProvider(provider)
		}

		server := &model.EdgeServer{
			Id:          desc.Id,
			Name:        fmt.Sprintf("server-%d", desc.Id),
			Provider:    provider,
			Region:      desc.Region,
			BaseStation: builder.baseStation(snapshot, desc.BaseStation),
			Capacity:    model.NewResources(desc.Cpu, desc.Memory),
		}
		if !snapshot.AddServer(server) {
			panic(fmt.Sprintf("duplicated server %d", desc.Id))
		}

		if desc.Trust != UNDEFINED {
			snapshot.Trust.Servers[desc.Id] = model.TrustLevel(desc.Trust)
		}
	}

	for provider, level := range builder.providerTrust {
		snapshot.Trust.Providers[provider] = model.TrustLevel(level)
	}
	for region, level := range builder.regionTrust {
		snapshot.Trust.Regions[region] = model.TrustLevel(level)
	}

	for _, desc := range builder.users {
		app := &model.Application{
			Id:                 desc.Application,
			DelaySLA:           desc.SLA,
			PrivacyRequirement: model.TrustLevel(desc.AppRequirement),
		}
		for _, serviceDesc := range desc.Services {
			app.Services = append(app.Services, &model.Microservice{
				Id:                 serviceDesc.Id,
				Name:               fmt.Sprintf("service-%d", serviceDesc.Id),
				PrivacyRequirement: model.TrustLevel(serviceDesc.Requirement),
				Demand:             model.NewResources(serviceDesc.Cpu, serviceDesc.Memory),
			})
		}

		user := &model.User{
			Id:          desc.Id,
			BaseStation: builder.baseStation(snapshot, desc.BaseStation),
			Application: app,
			Trace:       desc.Trace,
		}
		if !snapshot.AddUser(user) {
			panic(fmt.Sprintf("duplicated user %d", desc.Id))
		}

		for ind, serviceDesc := range desc.Services {
			if serviceDesc.Server == UNDEFINED {
				continue
			}

			server, ok := snapshot.Server(serviceDesc.Server)
			if !ok {
				panic(fmt.Sprintf("there is no server %d", serviceDesc.Server))
			}
			if err := snapshot.Place(app.Services[ind], server); err != nil {
				panic(err)
			}
		}
	}

	return snapshot
}

// Expect panics unless every listed microservice is hosted where wanted.
func (builder *Builder) Expect(got *model.Snapshot, want map[int]int) {
	placement := got.Placement()

	ids := make([]int, 0, len(want))
	for id := range want {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		gotServer, ok := placement[id]
		if !ok {
			panic(fmt.Errorf("expected microservice %d in got, but it wasn't", id))
		}

		if gotServer != want[id] {
			panic(fmt.Errorf("microservice %d: got server %d, wanted %d", id, gotServer, want[id]))
		}
	}
}
