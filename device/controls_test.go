package device_test

import (
	"testing"

	"github.com/ltpfabric/ltp/device"
	"github.com/ltpfabric/ltp/wire"
)

func numberControl(id string, min, max float64) *device.Control {
	return &device.Control{ID: id, Type: device.TypeNumber, Name: id, Min: &min, Max: &max}
}

// TestNumberControlValidation verifies spec §8 property 3.
func TestNumberControlValidation(t *testing.T) {
	r := device.NewRegistry()
	r.Register(numberControl("level", 0, 10))

	if v, err := r.SetValue("level", 5); err != nil || v.(float64) != 5 {
		t.Fatalf("SetValue(5) = (%v, %v), want (5, nil)", v, err)
	}
	if _, err := r.SetValue("level", -1); err == nil || err.Code != wire.InvalidValue {
		t.Fatalf("SetValue(-1) should fail INVALID_VALUE, got %v", err)
	}
	if _, err := r.SetValue("level", 11); err == nil || err.Code != wire.InvalidValue {
		t.Fatalf("SetValue(11) should fail INVALID_VALUE, got %v", err)
	}
	if v, err := r.SetValue("level", "5"); err != nil || v.(float64) != 5 {
		t.Fatalf(`SetValue("5") = (%v, %v), want (5, nil)`, v, err)
	}
	if _, err := r.SetValue("level", "abc"); err == nil || err.Code != wire.InvalidValue {
		t.Fatalf(`SetValue("abc") should fail INVALID_VALUE, got %v`, err)
	}
}

// TestColorControlAlphaCoercion verifies spec §8 property 4.
func TestColorControlAlphaCoercion(t *testing.T) {
	r := device.NewRegistry()
	r.Register(&device.Control{ID: "fill", Type: device.TypeColor, Name: "fill", Alpha: true})

	v, err := r.SetValue("fill", "#abcdef")
	if err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if v.(string) != "#ABCDEFFF" {
		t.Fatalf("got %q, want #ABCDEFFF", v)
	}
}

func TestBooleanCoercions(t *testing.T) {
	r := device.NewRegistry()
	r.Register(&device.Control{ID: "on", Type: device.TypeBoolean, Name: "on"})

	truthy := []any{true, "true", "yes", "on", 1.0, "1"}
	for _, raw := range truthy {
		v, err := r.SetValue("on", raw)
		if err != nil || v.(bool) != true {
			t.Fatalf("SetValue(%v) = (%v,%v), want (true,nil)", raw, v, err)
		}
	}
	falsy := []any{false, "false", "no", "off", 0.0}
	for _, raw := range falsy {
		v, err := r.SetValue("on", raw)
		if err != nil || v.(bool) != false {
			t.Fatalf("SetValue(%v) = (%v,%v), want (false,nil)", raw, v, err)
		}
	}
}

func TestReadonlyControlRejectsSet(t *testing.T) {
	r := device.NewRegistry()
	r.Register(&device.Control{ID: "uptime", Type: device.TypeNumber, Readonly: true, Value: 0.0})
	if _, err := r.SetValue("uptime", 5); err == nil || err.Code != wire.Readonly {
		t.Fatalf("expected READONLY error, got %v", err)
	}
}

func TestSetValuesPartialStatus(t *testing.T) {
	r := device.NewRegistry()
	r.Register(numberControl("brightness", 0, 1))

	applied, errs := r.SetValues(map[string]any{"brightness": 2.0})
	if len(applied) != 0 {
		t.Fatalf("expected no applied values, got %v", applied)
	}
	if errs["brightness"].Code != wire.InvalidValue {
		t.Fatalf("expected INVALID_VALUE, got %v", errs["brightness"])
	}

	applied, errs = r.SetValues(map[string]any{"brightness": 0.5})
	if len(errs) != 0 || applied["brightness"].(float64) != 0.5 {
		t.Fatalf("expected applied=0.5 with no errors, got applied=%v errs=%v", applied, errs)
	}
}

func TestOnChangeObserverFires(t *testing.T) {
	r := device.NewRegistry()
	r.Register(numberControl("brightness", 0, 1))

	var gotID string
	var gotOld, gotNew any
	r.OnChange("brightness", func(id string, oldVal, newVal any) {
		gotID, gotOld, gotNew = id, oldVal, newVal
	})
	if _, err := r.SetValue("brightness", 0.3); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if gotID != "brightness" || gotNew.(float64) != 0.3 {
		t.Fatalf("observer fired with id=%q old=%v new=%v", gotID, gotOld, gotNew)
	}
}

func TestEnumControlValidation(t *testing.T) {
	r := device.NewRegistry()
	r.Register(&device.Control{ID: "mode", Type: device.TypeEnum, Options: []string{"fit", "fill", "stretch"}})
	if _, err := r.SetValue("mode", "fit"); err != nil {
		t.Fatalf("SetValue(fit): %v", err)
	}
	if _, err := r.SetValue("mode", "bogus"); err == nil {
		t.Fatal("expected INVALID_VALUE for out-of-enum value")
	}
}

func TestIsValidIDGrammar(t *testing.T) {
	valid := []string{"brightness", "_internal", "mode2"}
	invalid := []string{"", "2mode", "has-dash", "has space"}
	for _, id := range valid {
		if !device.IsValidID(id) {
			t.Errorf("IsValidID(%q) = false, want true", id)
		}
	}
	for _, id := range invalid {
		if device.IsValidID(id) {
			t.Errorf("IsValidID(%q) = true, want false", id)
		}
	}
}
