// Package config loads and exports the controller's bootstrap YAML
// document: virtual sources and pre-wired routes configured at startup
// (spec §6 "Persisted state"). Informational/bootstrap only — never
// protocol-critical, matching the non-goal on persistent storage.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ltpfabric/ltp/routing"
)

// VirtualSourceSpec describes one in-controller producer to register at
// startup (spec §4.5 "Route execution (virtual source)").
type VirtualSourceSpec struct {
	ID         string  `yaml:"id"`
	Name       string  `yaml:"name"`
	Kind       string  `yaml:"kind"` // "solid" | "rainbow" | "scalar"
	PixelCount int     `yaml:"pixel_count"`
	RateHz     float64 `yaml:"rate_hz"`

	// solid
	Color [3]int `yaml:"color,omitempty"`

	// rainbow
	PeriodSeconds float64 `yaml:"period_seconds,omitempty"`
}

// RouteSpec mirrors routing.Route's configurable fields for YAML
// round-tripping (spec §3 "Route").
type RouteSpec struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name,omitempty"`
	Enabled  bool    `yaml:"enabled"`
	Mode     string  `yaml:"mode"`
	SourceID string  `yaml:"source_id"`
	SinkID   string  `yaml:"sink_id"`

	ScaleMode  string  `yaml:"scale_mode,omitempty"`
	Brightness float64 `yaml:"brightness,omitempty"`
	Gamma      float64 `yaml:"gamma,omitempty"`
	MirrorX    bool    `yaml:"mirror_x,omitempty"`
	MirrorY    bool    `yaml:"mirror_y,omitempty"`
}

// Controller is the controller's bootstrap document (spec §6 "Persisted
// state": "a controller MAY persist its configured routes and virtual
// sources to a file... reloaded at startup").
type Controller struct {
	ControlTimeout      time.Duration `yaml:"control_timeout,omitempty"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval,omitempty"`
	ReconnectInitial    time.Duration `yaml:"reconnect_initial,omitempty"`
	ReconnectMax        time.Duration `yaml:"reconnect_max,omitempty"`

	VirtualSources []VirtualSourceSpec `yaml:"virtual_sources,omitempty"`
	Routes         []RouteSpec         `yaml:"routes,omitempty"`
}

// Load reads and parses a controller bootstrap document from path.
func Load(path string) (*Controller, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %s", path)
	}
	var c Controller
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, errors.Wrapf(err, "config: parse %s", path)
	}
	return &c, nil
}

// RuntimeConfig projects the bootstrap document's timing overrides onto
// cmn.Rom's shape (kept decoupled from cmn to avoid config->cmn->config
// import churn as fields grow).
func (c *Controller) RuntimeConfig() (controlTimeout, healthCheckInterval, reconnectInitial, reconnectMax time.Duration) {
	return c.ControlTimeout, c.HealthCheckInterval, c.ReconnectInitial, c.ReconnectMax
}

// ExportRoutes renders the engine's live route table back into the same
// YAML shape Load consumes (spec §6 "...may export the current set"; named
// per original_source/src/ltp_controller/router.py's `--export-routes`).
func ExportRoutes(routes []*routing.Route) ([]byte, error) {
	doc := Controller{Routes: make([]RouteSpec, 0, len(routes))}
	for _, r := range routes {
		status, _ := r.Status()
		_ = status // export reflects configuration, not live status
		doc.Routes = append(doc.Routes, RouteSpec{
			ID:         r.ID,
			Name:       r.Name,
			Enabled:    r.Enabled,
			Mode:       string(r.Mode),
			SourceID:   r.SourceID,
			SinkID:     r.SinkID,
			ScaleMode:  string(r.Transform.ScaleMode),
			Brightness: r.Transform.Brightness,
			Gamma:      r.Transform.Gamma,
			MirrorX:    r.Transform.MirrorX,
			MirrorY:    r.Transform.MirrorY,
		})
	}
	return yaml.Marshal(doc)
}

// BuildTransform converts a RouteSpec's flattened transform fields into a
// routing.Transform, defaulting zero-valued brightness/gamma to identity.
func (s RouteSpec) BuildTransform() routing.Transform {
	tr := routing.Transform{
		ScaleMode:  routing.ScaleMode(s.ScaleMode),
		Brightness: s.Brightness,
		Gamma:      s.Gamma,
		MirrorX:    s.MirrorX,
		MirrorY:    s.MirrorY,
	}
	if tr.ScaleMode == "" {
		tr.ScaleMode = routing.ScaleNone
	}
	if tr.Brightness == 0 {
		tr.Brightness = 1.0
	}
	if tr.Gamma == 0 {
		tr.Gamma = 1.0
	}
	return tr
}

// RouteMode converts the YAML mode string into a routing.RouteMode, defaulting
// to proxy mode when unset.
func (s RouteSpec) RouteMode() routing.RouteMode {
	if routing.RouteMode(s.Mode) == routing.ModeDirect {
		return routing.ModeDirect
	}
	return routing.ModeProxy
}
