package statistics

import (
	"fmt"
	"math"
	"sync"

	"github.com/amsen20/argos/alg"
	"github.com/amsen20/argos/internal/model"
	"github.com/amsen20/argos/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gonum.org/v1/gonum/mat"
)

// StepRecord holds the metrics of one run after one mobility batch.
type StepRecord struct {
	Run                      string  `json:"run" csv:"run"`
	Algorithm                string  `json:"algorithm" csv:"algorithm"`
	Step                     int     `json:"step" csv:"step"`
	SLAViolations            int     `json:"sla_violations" csv:"sla_violations"`
	PrivacyViolations        int     `json:"privacy_violations" csv:"privacy_violations"`
	ServicesOnTrustedServers int     `json:"services_on_trusted_servers" csv:"services_on_trusted_servers"`
	Migrations               int     `json:"migrations" csv:"migrations"`
	Infeasible               int     `json:"infeasible" csv:"infeasible"`
	UnreachableApplications  int     `json:"unreachable_applications" csv:"unreachable_applications"`
	MeanDelay                float64 `json:"mean_delay" csv:"mean_delay"` // over reachable applications
	EdgeUsage                float64 `json:"edge_usage" csv:"edge_usage"`
}

// Summary aggregates the records of a run. Counters are summed over the
// steps, the other fields are averaged.
type Summary struct {
	Run                      string  `json:"run"`
	Algorithm                string  `json:"algorithm"`
	Steps                    int     `json:"steps"`
	SLAViolations            int     `json:"sla_violations"`
	PrivacyViolations        int     `json:"privacy_violations"`
	ServicesOnTrustedServers float64 `json:"services_on_trusted_servers"`
	Migrations               int     `json:"migrations"`
	Infeasible               int     `json:"infeasible"`
	MeanDelay                float64 `json:"mean_delay"`
	EdgeUsage                float64 `json:"edge_usage"`
}

type Collector struct {
	mutex sync.Mutex

	runs      []string
	algorithm map[string]string
	records   map[string][]*StepRecord

	registry          *prometheus.Registry
	migrations        *prometheus.CounterVec
	infeasible        *prometheus.CounterVec
	slaViolations     *prometheus.GaugeVec
	privacyViolations *prometheus.GaugeVec
	trustedServices   *prometheus.GaugeVec
	meanDelay         *prometheus.GaugeVec
	step              *prometheus.GaugeVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	labels := []string{"algorithm"}

	return &Collector{
		algorithm: make(map[string]string),
		records:   make(map[string][]*StepRecord),
		registry:  registry,
		migrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "argos_migrations_total",
			Help: "Microservice migrations performed",
		}, labels),
		infeasible: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "argos_infeasible_placements_total",
			Help: "Evaluations that found no feasible server",
		}, labels),
		slaViolations: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "argos_sla_violations",
			Help: "Applications above their delay SLA at the last step",
		}, labels),
		privacyViolations: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "argos_privacy_violations",
			Help: "Applications with a microservice on an untrusted server at the last step",
		}, labels),
		trustedServices: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "argos_services_on_trusted_servers",
			Help: "Microservices hosted on a server meeting their requirement at the last step",
		}, labels),
		meanDelay: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "argos_mean_application_delay",
			Help: "Mean delay of reachable applications at the last step",
		}, labels),
		step: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "argos_step",
			Help: "Last processed step",
		}, labels),
	}
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Measure computes the step record of a snapshot and the decisions taken
// on it, without recording it.
func Measure(
	snapshot *model.Snapshot,
	oracle alg.LatencyOracle,
	decisions []*model.PlacementDecision,
) *StepRecord {
	record := &StepRecord{Step: snapshot.Step}

	reachable := 0
	delaySum := 0.0
	for _, app := range snapshot.Applications {
		if alg.ViolatesSLA(oracle, app) {
			record.SLAViolations++
		}
		if alg.ViolatesPrivacy(snapshot, app) {
			record.PrivacyViolations++
		}

		delay := alg.ApplicationDelay(oracle, app)
		if math.IsInf(delay, 1) {
			record.UnreachableApplications++
			continue
		}
		reachable++
		delaySum += delay
	}
	if reachable > 0 {
		record.MeanDelay = delaySum / float64(reachable)
	}

	for _, service := range snapshot.Services {
		if alg.OnTrustedServer(snapshot, service) {
			record.ServicesOnTrustedServers++
		}
	}

	used := mat.NewVecDense(model.ResourceCount, nil)
	capacity := mat.NewVecDense(model.ResourceCount, nil)
	for _, server := range snapshot.Servers {
		utils.SAddVec(used, snapshot.ServerResourcesUsed[server.Id])
		utils.SAddVec(capacity, server.Capacity)
	}
	record.EdgeUsage = utils.CalcUtilization(used, capacity)

	for _, decision := range decisions {
		if decision.Migrated && !decision.Provisioned() {
			record.Migrations++
		}
		if decision.Infeasible() {
			record.Infeasible++
		}
	}

	return record
}

// Record measures and keeps the state of a run after a step.
func (c *Collector) Record(
	run string,
	algorithm string,
	snapshot *model.Snapshot,
	oracle alg.LatencyOracle,
	decisions []*model.PlacementDecision,
) *StepRecord {
	record := Measure(snapshot, oracle, decisions)
	record.Run = run
	record.Algorithm = algorithm

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.records[run]; !ok {
		c.runs = append(c.runs, run)
		c.algorithm[run] = algorithm
	}
	c.records[run] = append(c.records[run], record)

	c.migrations.WithLabelValues(algorithm).Add(float64(record.Migrations))
	c.infeasible.WithLabelValues(algorithm).Add(float64(record.Infeasible))
	c.slaViolations.WithLabelValues(algorithm).Set(float64(record.SLAViolations))
	c.privacyViolations.WithLabelValues(algorithm).Set(float64(record.PrivacyViolations))
	c.trustedServices.WithLabelValues(algorithm).Set(float64(record.ServicesOnTrustedServers))
	c.meanDelay.WithLabelValues(algorithm).Set(record.MeanDelay)
	c.step.WithLabelValues(algorithm).Set(float64(record.Step))

	return record
}

func (c *Collector) Records(run string) []*StepRecord {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ret := make([]*StepRecord, len(c.records[run]))
	copy(ret, c.records[run])

	return ret
}

// AllRecords returns every record, runs in the order they were first seen.
func (c *Collector) AllRecords() []*StepRecord {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ret := make([]*StepRecord, 0)
	for _, run := range c.runs {
		ret = append(ret, c.records[run]...)
	}

	return ret
}

func (c *Collector) Summary(run string) *Summary {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.summary(run)
}

func (c *Collector) Summaries() []*Summary {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ret := make([]*Summary, 0, len(c.runs))
	for _, run := range c.runs {
		ret = append(ret, c.summary(run))
	}

	return ret
}

func (c *Collector) summary(run string) *Summary {
	summary := &Summary{Run: run, Algorithm: c.algorithm[run]}

	records := c.records[run]
	for _, record := range records {
		summary.Steps++
		summary.SLAViolations += record.SLAViolations
		summary.PrivacyViolations += record.PrivacyViolations
		summary.ServicesOnTrustedServers += float64(record.ServicesOnTrustedServers)
		summary.Migrations += record.Migrations
		summary.Infeasible += record.Infeasible
		summary.MeanDelay += record.MeanDelay
		summary.EdgeUsage += record.EdgeUsage
	}

	if summary.Steps > 0 {
		summary.ServicesOnTrustedServers /= float64(summary.Steps)
		summary.MeanDelay /= float64(summary.Steps)
		summary.EdgeUsage /= float64(summary.Steps)
	}

	return summary
}

func (c *Collector) Display() string {
	result := "Statistics results are:\n"
	for _, summary := range c.Summaries() {
		result += fmt.Sprintf(
			"%s (%s): steps %d, sla violations %d, privacy violations %d, services on trusted servers %.2f, migrations %d, infeasible %d, mean delay %.3f, edge usage %.3f\n",
			summary.Algorithm,
			summary.Run,
			summary.Steps,
			summary.SLAViolations,
			summary.PrivacyViolations,
			summary.ServicesOnTrustedServers,
			summary.Migrations,
			summary.Infeasible,
			summary.MeanDelay,
			summary.EdgeUsage,
		)
	}

	return result
}
