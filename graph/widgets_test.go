package graph

import (
	"encoding/json"
	"testing"
)

func TestWidgetValuesPositionalLoad(t *testing.T) {
	var w WidgetValues
	if err := json.Unmarshal([]byte(`[42, "fixed", 20, 8.5, true]`), &w); err != nil {
		t.Fatalf("Failed to unmarshal array form: %v", err)
	}
	if w.Len() != 5 {
		t.Fatalf("Expected 5 entries, got %d", w.Len())
	}
	if w.Named() {
		t.Error("Positional entries must not report as named")
	}

	v, ok := w.At(0)
	if !ok {
		t.Fatal("At(0) failed")
	}
	if i, ok := v.Int(); !ok || i != 42 {
		t.Errorf("Expected entry 0 to be int 42, got %v", v)
	}
	v, _ = w.At(3)
	if v.Kind() != KindFloat {
		t.Errorf("Expected entry 3 to stay FLOAT, got %v", v.Kind())
	}

	// unnamed sets serialize back to the array form
	out, err := json.Marshal(&w)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if out[0] != '[' {
		t.Errorf("Expected array output, got %s", out)
	}
}

func TestWidgetValuesBindNames(t *testing.T) {
	var w WidgetValues
	if err := json.Unmarshal([]byte(`[42, "fixed", 20]`), &w); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	w.BindNames([]string{"seed", "control_after_generate", "steps"})

	if !w.Named() {
		t.Fatal("All entries should be named after binding")
	}
	if v, ok := w.Get("steps"); !ok {
		t.Error("Get by bound name failed")
	} else if i, _ := v.Int(); i != 20 {
		t.Errorf("Expected steps 20, got %v", v)
	}

	// once named, the object form is written with order preserved
	out, err := json.Marshal(&w)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	expected := `{"seed":42,"control_after_generate":"fixed","steps":20}`
	if string(out) != expected {
		t.Errorf("Expected %s, got %s", expected, out)
	}
}

func TestWidgetValuesObjectLoadPreservesOrder(t *testing.T) {
	input := `{"seed": 7, "steps": 20, "cfg": 8.0, "sampler_name": "euler"}`
	var w WidgetValues
	if err := json.Unmarshal([]byte(input), &w); err != nil {
		t.Fatalf("Failed to unmarshal object form: %v", err)
	}

	names := w.Names()
	expected := []string{"seed", "steps", "cfg", "sampler_name"}
	for i, n := range expected {
		if names[i] != n {
			t.Errorf("Entry %d: expected name %s, got %s", i, n, names[i])
		}
	}
	if v, _ := w.At(1); v.Kind() != KindInt {
		t.Errorf("Positional access should still work on named sets")
	}
}

func TestWidgetValuesSetAppends(t *testing.T) {
	w := NewWidgetValues(Entry("seed", IntValue(7)))
	w.Set("seed", IntValue(9))
	w.Set("denoise", FloatValue(0.7))

	if w.Len() != 2 {
		t.Fatalf("Expected 2 entries, got %d", w.Len())
	}
	if v, _ := w.Get("seed"); !v.Equal(IntValue(9)) {
		t.Errorf("Set should overwrite existing entry, got %v", v)
	}
	if v, ok := w.Get("denoise"); !ok || !v.Equal(FloatValue(0.7)) {
		t.Errorf("Set should append unknown names, got %v", v)
	}
}

func TestWidgetValueUnmodeledShapesRoundtrip(t *testing.T) {
	input := `[[1024, 768], {"nested": true}, null]`
	var w WidgetValues
	if err := json.Unmarshal([]byte(input), &w); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if v, _ := w.At(0); v.Kind() != KindRaw {
		t.Errorf("Array value should load as RAW, got %v", v.Kind())
	}
	if v, _ := w.At(2); !v.IsNull() {
		t.Error("null should load as the null value")
	}

	out, err := json.Marshal(&w)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var a, b interface{}
	json.Unmarshal([]byte(input), &a)
	json.Unmarshal(out, &b)
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	if string(aj) != string(bj) {
		t.Errorf("Unmodeled values must roundtrip byte-equivalent: %s vs %s", aj, bj)
	}
}

func TestValueOfNarrowsIntegralFloats(t *testing.T) {
	if v := ValueOf(float64(42)); v.Kind() != KindInt {
		t.Errorf("Integral float should narrow to INT, got %v", v.Kind())
	}
	if v := ValueOf(42.5); v.Kind() != KindFloat {
		t.Errorf("Fractional float should stay FLOAT, got %v", v.Kind())
	}
}
