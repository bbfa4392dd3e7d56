// Project: Latent Health Discretization and Filtration

// Package config holds the model specification consumed by the
// discretization, the providers that resolve a specification by name, and
// the process-level settings read from the environment.
package config

import (
	"fmt"
	"math"

	"github.com/kelseyhightower/envconfig"

	"latenthealth/internal/apperr"
)

// Specification is one estimated latent health model: the data source it
// was fit to, the shape of the report measures, the age and health ranges,
// and the flat structural parameter vector.
type Specification struct {
	Name              string    `yaml:"-"`
	SourceName        string    `yaml:"source_name" validate:"required"`
	MeasureCount      int       `yaml:"measure_count" validate:"gte=1"`
	CategoryCounts    []int     `yaml:"category_counts" validate:"required,dive,gte=2"`
	MeasureNames      []string  `yaml:"measure_names"`
	ReportTypeCount   int       `yaml:"report_type_count" validate:"gte=1"`
	MixedHealthShocks bool      `yaml:"mixed_health_shocks"`
	WaveLength        int       `yaml:"wave_length" validate:"gte=1"`
	AgeMin            float64   `yaml:"age_min"`
	AgeMax            float64   `yaml:"age_max" validate:"gtefield=AgeMin"`
	AgeIncr           float64   `yaml:"age_incr" validate:"gt=0"`
	XMin              float64   `yaml:"x_min"`
	XMax              float64   `yaml:"x_max" validate:"gtfield=XMin"`
	XCount            int       `yaml:"x_count" validate:"gte=1"`
	ParamVec          []float64 `yaml:"param_vec" validate:"required"`
}

// ReportCount is the total number of report categories across all measures.
func (s *Specification) ReportCount() int {
	n := 0
	for _, c := range s.CategoryCounts {
		n += c
	}
	return n
}

// ParamCount is the length the structural parameter vector must have.
func (s *Specification) ParamCount() int {
	n := 26
	if s.MixedHealthShocks {
		n += 3
	}
	n += 2 * (s.ReportTypeCount - 1)
	n += (s.MeasureCount - 1) + s.MeasureCount
	n += s.ReportCount() - 2*s.MeasureCount
	return n
}

// AgeCount is the number of ages from AgeMin to AgeMax inclusive.
func (s *Specification) AgeCount() int {
	return int(math.Round((s.AgeMax-s.AgeMin)/s.AgeIncr)) + 1
}

// Overrides are the optional command line replacements for the grid and
// the filter history length. Zero values leave the specification alone.
type Overrides struct {
	NodeCount        int
	HealthMin        *float64
	HealthMax        *float64
	WavesToCondition int
}

// Discretization is a specification with its grid settled: the number of
// health nodes per reporting type and the bounds they span.
type Discretization struct {
	Spec       *Specification
	NodeCount  int // nodes per reporting type
	StateCount int // NodeCount * ReportTypeCount
	XMin       float64
	XMax       float64
}

// Apply resolves the grid of a specification against command line overrides.
func (s *Specification) Apply(o Overrides) (*Discretization, error) {
	d := &Discretization{
		Spec:       s,
		NodeCount:  s.XCount / s.ReportTypeCount,
		StateCount: s.XCount,
		XMin:       s.XMin,
		XMax:       s.XMax,
	}
	if o.NodeCount > 0 {
		d.NodeCount = o.NodeCount
		d.StateCount = o.NodeCount * s.ReportTypeCount
	} else if s.XCount%s.ReportTypeCount != 0 {
		return nil, apperr.Configf("apply overrides",
			"x_count %d is not divisible by report_type_count %d", s.XCount, s.ReportTypeCount)
	}
	if o.HealthMin != nil {
		d.XMin = *o.HealthMin
	}
	if o.HealthMax != nil {
		d.XMax = *o.HealthMax
	}
	if d.NodeCount < 2 {
		return nil, apperr.Configf("apply overrides", "node count must be at least 2, got %d", d.NodeCount)
	}
	if d.XMax <= d.XMin {
		return nil, apperr.Configf("apply overrides", "health max %v must exceed health min %v", d.XMax, d.XMin)
	}
	return d, nil
}

// Settings are process-level knobs read from LATENTHEALTH_* variables.
type Settings struct {
	SpecDir        string `envconfig:"SPEC_DIR"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`
	Workers        int    `envconfig:"WORKERS" default:"0"`
}

// LoadSettings reads Settings from the environment.
func LoadSettings() (*Settings, error) {
	var s Settings
	if err := envconfig.Process("LATENTHEALTH", &s); err != nil {
		return nil, fmt.Errorf("failed to load settings from env: %w", err)
	}
	return &s, nil
}
