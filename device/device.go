package device

import "github.com/google/uuid"

// Role is one of the three participant kinds (spec §3 "Device").
type Role string

const (
	RoleSource     Role = "source"
	RoleSink       Role = "sink"
	RoleController Role = "controller"
)

// ProtocolVersion is the wire/capability protocol version string published
// in every capability_response and mDNS TXT record (spec §3 "Device").
const ProtocolVersion = "1.0"

// Identity holds the stable attributes of a fabric participant (spec §3
// "Device"). The UUID persists across restarts when supplied by config;
// otherwise it is regenerated (spec §3 "Identity").
type Identity struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Version     string    `json:"version"`
	Role        Role      `json:"role"`
}

// NewIdentity mints a fresh UUID for name/role, used when no persisted id
// is supplied via config.
func NewIdentity(name, description string, role Role) Identity {
	return Identity{ID: uuid.New(), Name: name, Description: description, Version: ProtocolVersion, Role: role}
}

// NewIdentityWithID rebuilds an Identity from a config-supplied UUID,
// preserving routing stability across process restarts (spec §3 "Identity").
func NewIdentityWithID(id uuid.UUID, name, description string, role Role) Identity {
	return Identity{ID: id, Name: name, Description: description, Version: ProtocolVersion, Role: role}
}

// SourceMode

// SourceMode is the source's operating mode (spec §3 "Capability record").
type SourceMode string

const (
	ModeStream      SourceMode = "stream"
	ModeStatic      SourceMode = "static"
	ModeInteractive SourceMode = "interactive"
)

// SinkCapability is the capability record a sink publishes on request
// (spec §3 "Capability record", §4.4.1).
type SinkCapability struct {
	Identity      Identity      `json:"identity"`
	Topology      TopologyDesc  `json:"topology"`
	PixelCount    int           `json:"pixels"`
	ColorFormats  []string      `json:"color_formats"`
	MaxRefreshHz  float64       `json:"max_refresh_hz"`
	Controls      []*Control    `json:"controls"`
}

// SourceCapability is the capability record a source publishes on request.
type SourceCapability struct {
	Identity   Identity   `json:"identity"`
	Dimensions []int      `json:"dimensions"`
	Color      string     `json:"color"`
	Rate       float64    `json:"rate"`
	Mode       SourceMode `json:"mode"`
	Controls   []*Control `json:"controls"`
}

// TopologyDesc is the wire-serializable description of a Topology, since
// Topology itself is an interface and JSON needs a concrete discriminated
// shape (spec §3 "Topology").
type TopologyDesc struct {
	Kind       TopologyKind `json:"kind"`
	Linear     *int         `json:"length,omitempty"`
	Width      *int         `json:"width,omitempty"`
	Height     *int         `json:"height,omitempty"`
	Origin     Origin       `json:"origin,omitempty"`
	Order      Order        `json:"order,omitempty"`
	Serpentine bool         `json:"serpentine,omitempty"`
	Positions  []Point      `json:"positions,omitempty"`
}

// DescribeTopology converts a concrete Topology into its wire description.
func DescribeTopology(t Topology) TopologyDesc {
	switch v := t.(type) {
	case *LinearTopology:
		n := v.N
		return TopologyDesc{Kind: TopologyLinear, Linear: &n}
	case *MatrixTopology:
		w, h := v.Width, v.Height
		return TopologyDesc{Kind: TopologyMatrix, Width: &w, Height: &h, Origin: v.Origin, Order: v.Order, Serpentine: v.Serpentine}
	case *CustomTopology:
		return TopologyDesc{Kind: TopologyCustom, Positions: v.Positions}
	default:
		return TopologyDesc{}
	}
}

// BuildTopology reconstructs a concrete Topology from its wire description,
// the inverse of DescribeTopology — used by a controller parsing a peer's
// capability_response.
func BuildTopology(d TopologyDesc) Topology {
	switch d.Kind {
	case TopologyMatrix:
		w, h := 0, 0
		if d.Width != nil {
			w = *d.Width
		}
		if d.Height != nil {
			h = *d.Height
		}
		return NewMatrixTopology(w, h, d.Origin, d.Order, d.Serpentine)
	case TopologyCustom:
		return NewCustomTopology(d.Positions)
	default:
		n := 0
		if d.Linear != nil {
			n = *d.Linear
		}
		return NewLinearTopology(n)
	}
}
