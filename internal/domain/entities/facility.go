package entities

import (
	"time"
)

// FacilityKey identifies a facility (e.g. "WC-Norte-L0-1"). It is the key
// for all per-facility state and never changes once assigned.
type FacilityKey string

// FacilityType groups facilities with similar service characteristics
type FacilityType string

const (
	FacilityTypeRestroom FacilityType = "restroom"
	FacilityTypeFood     FacilityType = "food"
	FacilityTypeBar      FacilityType = "bar"
	FacilityTypeStore    FacilityType = "store"
	FacilityTypeOther    FacilityType = "other"
)

// Global defaults used when a facility has no usable queue parameters.
const (
	DefaultServers     = 1
	DefaultServiceRate = 0.5
)

// typeDefaults holds per-type queue parameters. Types not listed fall back
// to DefaultServers/DefaultServiceRate.
var typeDefaults = map[FacilityType]FacilityConfig{
	FacilityTypeRestroom: {Servers: DefaultServers, ServiceRate: DefaultServiceRate},
	FacilityTypeFood:     {Servers: 2, ServiceRate: 0.8},
	FacilityTypeBar:      {Servers: 3, ServiceRate: 1.0},
	FacilityTypeStore:    {Servers: 2, ServiceRate: 0.6},
}

// FacilityConfig holds the queueing parameters of a facility.
// ServiceRate is people served per minute per server.
type FacilityConfig struct {
	Servers     int     `json:"servers" yaml:"servers"`
	ServiceRate float64 `json:"service_rate" yaml:"service_rate"`
}

// DefaultFacilityConfig returns the default queue parameters for a facility type
func DefaultFacilityConfig(t FacilityType) FacilityConfig {
	if cfg, ok := typeDefaults[t]; ok {
		return cfg
	}
	return FacilityConfig{Servers: DefaultServers, ServiceRate: DefaultServiceRate}
}

// Facility represents a point of interest inside the venue with queueing behaviour
type Facility struct {
	ID           string       `json:"id" db:"id" yaml:"id"`
	Name         string       `json:"name" db:"name" yaml:"name"`
	FacilityType FacilityType `json:"poi_type" db:"poi_type" yaml:"type"`
	NumServers   int          `json:"num_servers" db:"num_servers" yaml:"num_servers"`
	ServiceRate  float64      `json:"service_rate" db:"service_rate" yaml:"service_rate"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at" yaml:"-"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at" yaml:"-"`
}

// Key returns the facility key
func (f *Facility) Key() FacilityKey {
	return FacilityKey(f.ID)
}

// Config returns the queueing parameters of the facility. Absent (zero)
// values are replaced by the type defaults; explicitly negative values are
// kept so the estimation pipeline can reject them.
func (f *Facility) Config() FacilityConfig {
	def := DefaultFacilityConfig(f.FacilityType)
	cfg := FacilityConfig{Servers: f.NumServers, ServiceRate: f.ServiceRate}
	if cfg.Servers == 0 {
		cfg.Servers = def.Servers
	}
	if cfg.ServiceRate == 0 {
		cfg.ServiceRate = def.ServiceRate
	}
	return cfg
}

// ApplyDefaults fills absent queue parameters in place and reports whether
// anything was changed.
func (f *Facility) ApplyDefaults() bool {
	cfg := f.Config()
	changed := cfg.Servers != f.NumServers || cfg.ServiceRate != f.ServiceRate
	f.NumServers = cfg.Servers
	f.ServiceRate = cfg.ServiceRate
	if f.FacilityType == "" {
		f.FacilityType = FacilityTypeOther
		changed = true
	}
	return changed
}
