package config

import (
	"fmt"
	"io/ioutil"

	"gopkg.in/yaml.v2"
)

type GeneralConfig struct {
	Name string `yaml:"name"`

	// Seed input.
	Dataset       string `yaml:"dataset"`
	MobilityTrace string `yaml:"mobility_trace"` // optional csv overriding the dataset traces

	ConnectorKind string   `yaml:"connector"` // trace or kubernetes
	Algorithm     string   `yaml:"algorithm"`
	Algorithms    []string `yaml:"algorithms"` // compared in sim mode
	Steps         int      `yaml:"steps"`      // 0 means the whole trace
	SLAGated      bool     `yaml:"sla_gated"`

	StoreKind string `yaml:"store"` // memory or bolt
	StorePath string `yaml:"store_path"`

	GUIAddress string `yaml:"gui_address"`
	ReportPath string `yaml:"report_path"`
	LogLevel   string `yaml:"log_level"`

	KubeConfig string `yaml:"kube_config"`
	Namespace  string `yaml:"namespace"`
	NodeLabel  string `yaml:"node_label"` // node label carrying the edge server id

	StepPeriodDuration int `yaml:"step_period_duration"` // ms, 0 replays as fast as possible
}

var SchedulerGeneralConfig GeneralConfig

// Default algorithm order matches the comparison table of the report.
func Default() GeneralConfig {
	return GeneralConfig{
		Name:          "argos",
		ConnectorKind: "trace",
		Algorithm:     "argos",
		Algorithms:    []string{"never-migrate", "follow-user", "region-trust", "argos"},
		StoreKind:     "memory",
		StorePath:     "decisions.db",
		GUIAddress:    ":8080",
		ReportPath:    "report.json",
		Namespace:     "default",
		NodeLabel:     "argos/server-id",
	}
}

func Load(path string) (GeneralConfig, error) {
	conf := Default()

	yamlFile, err := ioutil.ReadFile(path)
	if err != nil {
		return conf, fmt.Errorf("could not read config %s: %w", path, err)
	}

	if err := yaml.UnmarshalStrict(yamlFile, &conf); err != nil {
		return conf, fmt.Errorf("could not parse config %s: %w", path, err)
	}

	if err := conf.Validate(); err != nil {
		return conf, err
	}

	return conf, nil
}

func (c GeneralConfig) Validate() error {
	if c.Dataset == "" {
		return fmt.Errorf("dataset is required")
	}

	switch c.ConnectorKind {
	case "trace", "kubernetes":
	default:
		return fmt.Errorf("connector kind %q is not recognized", c.ConnectorKind)
	}

	switch c.StoreKind {
	case "memory", "bolt":
	default:
		return fmt.Errorf("store kind %q is not recognized", c.StoreKind)
	}

	if c.Steps < 0 {
		return fmt.Errorf("steps should not be negative, got %d", c.Steps)
	}

	return nil
}

// General constants:
const MB = 1e6
