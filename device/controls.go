package device

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/ltpfabric/ltp/wire"
)

// ControlType discriminates the control variants (spec §3 "Control").
type ControlType string

const (
	TypeBoolean ControlType = "boolean"
	TypeNumber  ControlType = "number"
	TypeString  ControlType = "string"
	TypeEnum    ControlType = "enum"
	TypeColor   ControlType = "color"
	TypeAction  ControlType = "action"
	TypeArray   ControlType = "array"
)

// Control is a named, typed, validated parameter exposed by a device (spec
// §3 "Control", §4.4.3). One Control struct instance holds both the
// type-specific bounds and the current validated value.
type Control struct {
	ID          string      `json:"id"`
	Type        ControlType `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Group       string      `json:"group,omitempty"`
	Readonly    bool        `json:"readonly"`
	Value       any         `json:"value"`

	// Number bounds
	Min, Max *float64 `json:"min,omitempty"`
	Step     *float64 `json:"step,omitempty"`
	Unit     string   `json:"unit,omitempty"`

	// String bounds
	MinLen, MaxLen *int   `json:"min_len,omitempty"`
	Pattern        string `json:"pattern,omitempty"`
	re             *regexp.Regexp

	// Enum
	Options []string `json:"options,omitempty"`

	// Color
	Alpha bool `json:"alpha,omitempty"`

	// Array
	ItemType    ControlType `json:"item_type,omitempty"`
	MinItems    *int        `json:"min_items,omitempty"`
	MaxItems    *int        `json:"max_items,omitempty"`
}

// ChangeObserver is invoked after every successful Set, with the control id
// and its old/new validated values (spec §4.4.3 "on_change").
type ChangeObserver func(id string, oldVal, newVal any)

// Registry is the keyed {control-id -> Control} map shared by sinks and
// sources (spec §4.4.3). Single-thread (event-loop-only) per spec §5
// "Shared resources", but guarded by a mutex anyway since capability
// fetches and control_get can run from a different goroutine via the
// transport layer.
type Registry struct {
	mu        sync.RWMutex
	controls  map[string]*Control
	observers map[string][]ChangeObserver
}

func NewRegistry() *Registry {
	return &Registry{controls: make(map[string]*Control), observers: make(map[string][]ChangeObserver)}
}

// Register inserts a control; a duplicate id overwrites (spec §4.4.3). A
// String control's Pattern is compiled once here rather than on every
// validate call, matching the ground-truth behavior in
// libltp/controls.py's StringControl (pattern compiled at construction).
func (r *Registry) Register(c *Control) {
	cp := *c
	if cp.Type == TypeString && cp.Pattern != "" {
		cp.re = regexp.MustCompile(cp.Pattern)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controls[c.ID] = &cp
}

func (r *Registry) OnChange(id string, cb ChangeObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers[id] = append(r.observers[id], cb)
}

// GetValue returns the current value; NOT_FOUND if the id is unknown (spec
// §4.4.3).
func (r *Registry) GetValue(id string) (any, *wire.ProtoError) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.controls[id]
	if !ok {
		return nil, wireErr(wire.NotFound, "unknown control %q", id)
	}
	return c.Value, nil
}

// GetValues returns every registered control's current value, or a subset
// keyed by ids if non-empty (spec §4.1 "control_get").
func (r *Registry) GetValues(ids []string) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any)
	if len(ids) == 0 {
		for id, c := range r.controls {
			out[id] = c.Value
		}
		return out
	}
	for _, id := range ids {
		if c, ok := r.controls[id]; ok {
			out[id] = c.Value
		}
	}
	return out
}

// List returns every registered control (for capability publication, spec
// §4.4.1/§4.4.2).
func (r *Registry) List() []*Control {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Control, 0, len(r.controls))
	for _, c := range r.controls {
		cp := *c
		out = append(out, &cp)
	}
	return out
}

// SetValue validates raw against the control's declared type and bounds,
// applying the coercions spec §4.4.3 defines, and on success stores the
// validated value and fires observers. Fails READONLY if the control is
// readonly, INVALID_VALUE if validation fails, NOT_FOUND if unknown.
func (r *Registry) SetValue(id string, raw any) (any, *wire.ProtoError) {
	r.mu.Lock()
	c, ok := r.controls[id]
	if !ok {
		r.mu.Unlock()
		return nil, wireErr(wire.NotFound, "unknown control %q", id)
	}
	if c.Readonly {
		r.mu.Unlock()
		return nil, wireErr(wire.Readonly, "control %q is readonly", id)
	}
	val, err := validate(c, raw)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	old := c.Value
	c.Value = val
	observers := append([]ChangeObserver(nil), r.observers[id]...)
	r.mu.Unlock()

	for _, obs := range observers {
		obs(id, old, val)
	}
	return val, nil
}

// SetValues is the best-effort batch form (spec §4.1 "control_set",
// §4.4.3 "set_values"): every id is attempted independently; the overall
// wire status is "ok" if every id applied, else "partial".
func (r *Registry) SetValues(values map[string]any) (applied map[string]any, errs map[string]wire.ControlError) {
	applied = make(map[string]any)
	errs = make(map[string]wire.ControlError)
	for id, raw := range values {
		val, err := r.SetValue(id, raw)
		if err != nil {
			errs[id] = wire.ControlError{Code: err.Code, Message: err.Msg}
			continue
		}
		applied[id] = val
	}
	return applied, errs
}

func wireErr(code wire.ErrorCode, format string, a ...any) *wire.ProtoError {
	return &wire.ProtoError{Code: code, Msg: fmt.Sprintf(format, a...)}
}

// validate dispatches on c.Type, applying the coercions spec §4.4.3/§8
// property 3-4 name explicitly.
func validate(c *Control, raw any) (any, *wire.ProtoError) {
	switch c.Type {
	case TypeBoolean:
		return validateBoolean(c, raw)
	case TypeNumber:
		return validateNumber(c, raw)
	case TypeString:
		return validateString(c, raw)
	case TypeEnum:
		return validateEnum(c, raw)
	case TypeColor:
		return validateColor(c, raw)
	case TypeAction:
		return true, nil
	case TypeArray:
		return validateArray(c, raw)
	default:
		return nil, wireErr(wire.InvalidValue, "control %q has unknown type %q", c.ID, c.Type)
	}
}

func validateBoolean(c *Control, raw any) (any, *wire.ProtoError) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0":
			return false, nil
		}
	}
	return nil, wireErr(wire.InvalidValue, "control %q: %v is not a valid boolean", c.ID, raw)
}

func validateNumber(c *Control, raw any) (any, *wire.ProtoError) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, wireErr(wire.InvalidValue, "control %q: %q is not numeric", c.ID, v)
		}
		f = parsed
	default:
		return nil, wireErr(wire.InvalidValue, "control %q: %v is not numeric", c.ID, raw)
	}
	if c.Min != nil && f < *c.Min {
		return nil, wireErr(wire.InvalidValue, "control %q: %v below min %v", c.ID, f, *c.Min)
	}
	if c.Max != nil && f > *c.Max {
		return nil, wireErr(wire.InvalidValue, "control %q: %v above max %v", c.ID, f, *c.Max)
	}
	if c.Step != nil && *c.Step > 0 {
		base := 0.0
		if c.Min != nil {
			base = *c.Min
		}
		steps := (f - base) / *c.Step
		rounded := base + float64(int64(steps+0.5))**c.Step
		f = rounded
	}
	return f, nil
}

func validateString(c *Control, raw any) (any, *wire.ProtoError) {
	s, ok := raw.(string)
	if !ok {
		return nil, wireErr(wire.InvalidValue, "control %q: %v is not a string", c.ID, raw)
	}
	if c.MinLen != nil && len(s) < *c.MinLen {
		return nil, wireErr(wire.InvalidValue, "control %q: length %d below min %d", c.ID, len(s), *c.MinLen)
	}
	if c.MaxLen != nil && len(s) > *c.MaxLen {
		return nil, wireErr(wire.InvalidValue, "control %q: length %d above max %d", c.ID, len(s), *c.MaxLen)
	}
	if c.re != nil && !c.re.MatchString(s) {
		return nil, wireErr(wire.InvalidValue, "control %q: %q does not match pattern %q", c.ID, s, c.Pattern)
	}
	return s, nil
}

func validateEnum(c *Control, raw any) (any, *wire.ProtoError) {
	s, ok := raw.(string)
	if !ok {
		return nil, wireErr(wire.InvalidValue, "control %q: %v is not a string", c.ID, raw)
	}
	for _, opt := range c.Options {
		if opt == s {
			return s, nil
		}
	}
	return nil, wireErr(wire.InvalidValue, "control %q: %q not in %v", c.ID, s, c.Options)
}

// validateColor normalizes to uppercase 6- or 8-hex, coercing a 6-hex value
// to 8-hex by appending FF when the control declares Alpha (spec §4.4.3,
// §8 property 4).
func validateColor(c *Control, raw any) (any, *wire.ProtoError) {
	s, ok := raw.(string)
	if !ok {
		return nil, wireErr(wire.InvalidValue, "control %q: %v is not a string", c.ID, raw)
	}
	hex := strings.TrimPrefix(s, "#")
	if !isHex(hex) || (len(hex) != 6 && len(hex) != 8) {
		return nil, wireErr(wire.InvalidValue, "control %q: %q is not 6- or 8-hex color", c.ID, s)
	}
	hex = strings.ToUpper(hex)
	if c.Alpha && len(hex) == 6 {
		hex += "FF"
	}
	return "#" + hex, nil
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}

func validateArray(c *Control, raw any) (any, *wire.ProtoError) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, wireErr(wire.InvalidValue, "control %q: %v is not an array", c.ID, raw)
	}
	if c.MinItems != nil && len(arr) < *c.MinItems {
		return nil, wireErr(wire.InvalidValue, "control %q: %d items below min %d", c.ID, len(arr), *c.MinItems)
	}
	if c.MaxItems != nil && len(arr) > *c.MaxItems {
		return nil, wireErr(wire.InvalidValue, "control %q: %d items above max %d", c.ID, len(arr), *c.MaxItems)
	}
	itemCtl := &Control{ID: c.ID + "[]", Type: c.ItemType}
	out := make([]any, len(arr))
	for i, item := range arr {
		v, err := validate(itemCtl, item)
		if err != nil {
			return nil, wireErr(wire.InvalidValue, "control %q: item %d: %s", c.ID, i, err.Msg)
		}
		out[i] = v
	}
	return out, nil
}

// IsValidID reports whether id matches the control-id grammar (spec §3:
// `[A-Za-z_][A-Za-z0-9_]*`).
func IsValidID(id string) bool {
	if id == "" {
		return false
	}
	if !(isAsciiLetter(id[0]) || id[0] == '_') {
		return false
	}
	for i := 1; i < len(id); i++ {
		c := id[i]
		if !(isAsciiLetter(c) || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}
	return true
}

func isAsciiLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
