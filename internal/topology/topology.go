// Package topology answers delay queries between base stations. It is the
// latency oracle the migration strategies consult, read only.
package topology

import (
	"math"
	"sync"

	"github.com/amsen20/argos/internal/model"
	"github.com/amsen20/argos/logging"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

var log = logging.Get()

type Topology struct {
	graph         *simple.WeightedUndirectedGraph
	wirelessDelay float64

	mutex    sync.Mutex
	shortest map[int64]path.Shortest
}

// New builds the network graph out of the snapshot's base stations and
// links. Links are static during a run so the graph is built once.
func New(snapshot *model.Snapshot) *Topology {
	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))

	for _, bs := range snapshot.BaseStations {
		if g.Node(int64(bs.Id)) == nil {
			g.AddNode(simple.Node(bs.Id))
		}
	}

	for _, link := range snapshot.Links {
		if link.From.Id == link.To.Id {
			log.Warn().Msgf("ignoring self link %d on base station %d", link.Id, link.From.Id)
			continue
		}

		from := simple.Node(link.From.Id)
		to := simple.Node(link.To.Id)

		// parallel links collapse to the fastest one
		if existing, ok := g.Weight(from.ID(), to.ID()); ok && existing <= link.Delay {
			continue
		}
		g.SetWeightedEdge(g.NewWeightedEdge(from, to, link.Delay))
	}

	return &Topology{
		graph:         g,
		wirelessDelay: snapshot.WirelessDelay,
		shortest:      make(map[int64]path.Shortest),
	}
}

func (t *Topology) shortestFrom(id int64) path.Shortest {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if sp, ok := t.shortest[id]; ok {
		return sp
	}

	var source graph.Node = simple.Node(id)
	sp := path.DijkstraFrom(source, t.graph)
	t.shortest[id] = sp

	return sp
}

// PathDelay is the sum of link delays on the fastest path between two
// base stations, +Inf when they cannot reach each other.
func (t *Topology) PathDelay(from, to *model.BaseStation) float64 {
	if from == nil || to == nil {
		return math.Inf(1)
	}

	if from.Id == to.Id {
		return 0
	}

	if t.graph.Node(int64(from.Id)) == nil || t.graph.Node(int64(to.Id)) == nil {
		return math.Inf(1)
	}

	return t.shortestFrom(int64(from.Id)).WeightTo(int64(to.Id))
}

// Delay is the user facing delay: the wireless hop to the base station
// plus the wired path to the base station of the server.
func (t *Topology) Delay(from, to *model.BaseStation) float64 {
	return t.wirelessDelay + t.PathDelay(from, to)
}

// Path returns the base station ids on the fastest path, both ends
// included, or nil when there is none.
func (t *Topology) Path(from, to *model.BaseStation) []int {
	if math.IsInf(t.PathDelay(from, to), 1) {
		return nil
	}

	if from.Id == to.Id {
		return []int{from.Id}
	}

	nodes, _ := t.shortestFrom(int64(from.Id)).To(int64(to.Id))
	ret := make([]int, len(nodes))
	for i, node := range nodes {
		ret[i] = int(node.ID())
	}

	return ret
}

func (t *Topology) Reachable(from, to *model.BaseStation) bool {
	return !math.IsInf(t.PathDelay(from, to), 1)
}
