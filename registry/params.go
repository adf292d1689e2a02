package registry

import (
	"fmt"
	"math"
	"strconv"

	"github.com/jaeone94/comfy-mobile-graph/graph"
)

// Param describes one settable parameter of a node class: its kind, its
// validation bounds, and how to coerce a raw value into range.
//
// Kinds:
//
//	"INT"      an int64 with optional min/max/step
//	"FLOAT"    a float64 with optional min/max/step
//	"STRING"   a single or multiline string
//	"BOOLEAN"  a labeled bool
//	"COMBO"    one of a fixed list of strings
//	"UNKNOWN"  everything else (not settable)
type Param interface {
	Kind() string
	Name() string
	Optional() bool
	Settable() bool

	// Coerce converts v into the parameter's native type, constrained to
	// its validation bounds. It fails for values that cannot represent the
	// kind at all.
	Coerce(v graph.WidgetValue) (graph.WidgetValue, error)
}

type baseParam struct {
	name     string
	optional bool
}

func (b baseParam) Name() string   { return b.name }
func (b baseParam) Optional() bool { return b.optional }

// IntParam is an integer parameter, optionally range- and step-bounded.
type IntParam struct {
	baseParam
	Default  int64
	Min      int64
	Max      int64
	Step     int64
	HasRange bool
	HasStep  bool
}

func newIntParam(name string, optional bool, opts map[string]interface{}) *IntParam {
	p := &IntParam{
		baseParam: baseParam{name: name, optional: optional},
		Min:       0,
		Max:       math.MaxInt64,
	}
	if v, ok := numberOpt(opts, "default"); ok {
		p.Default = int64(v)
	}
	if v, ok := numberOpt(opts, "min"); ok {
		p.Min = int64(v)
		p.HasRange = true
	}
	if v, ok := numberOpt(opts, "max"); ok {
		p.Max = int64(v)
		p.HasRange = true
	}
	if v, ok := numberOpt(opts, "step"); ok {
		p.Step = int64(v)
		p.HasStep = true
	}
	return p
}

func (p *IntParam) Kind() string   { return "INT" }
func (p *IntParam) Settable() bool { return true }

func (p *IntParam) Coerce(v graph.WidgetValue) (graph.WidgetValue, error) {
	i, ok := v.Int()
	if !ok {
		if s, sok := v.Str(); sok {
			parsed, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return graph.WidgetValue{}, fmt.Errorf("parameter %q: %w", p.name, err)
			}
			i = parsed
		} else {
			return graph.WidgetValue{}, fmt.Errorf("parameter %q: not an integer", p.name)
		}
	}
	if p.HasRange {
		if i > p.Max {
			i = p.Max
		}
		if i < p.Min {
			i = p.Min
		}
	}
	return graph.IntValue(i), nil
}

// FloatParam is a float parameter, optionally range- and step-bounded.
type FloatParam struct {
	baseParam
	Default  float64
	Min      float64
	Max      float64
	Step     float64
	HasRange bool
	HasStep  bool
}

func newFloatParam(name string, optional bool, opts map[string]interface{}) *FloatParam {
	p := &FloatParam{
		baseParam: baseParam{name: name, optional: optional},
		Min:       0,
		Max:       math.MaxFloat64,
	}
	if v, ok := numberOpt(opts, "default"); ok {
		p.Default = v
	}
	if v, ok := numberOpt(opts, "min"); ok {
		p.Min = v
		p.HasRange = true
	}
	if v, ok := numberOpt(opts, "max"); ok {
		p.Max = v
		p.HasRange = true
	}
	if v, ok := numberOpt(opts, "step"); ok {
		p.Step = v
		p.HasStep = true
	}
	return p
}

func (p *FloatParam) Kind() string   { return "FLOAT" }
func (p *FloatParam) Settable() bool { return true }

func (p *FloatParam) Coerce(v graph.WidgetValue) (graph.WidgetValue, error) {
	f, ok := v.Float()
	if !ok {
		if s, sok := v.Str(); sok {
			parsed, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return graph.WidgetValue{}, fmt.Errorf("parameter %q: %w", p.name, err)
			}
			f = parsed
		} else {
			return graph.WidgetValue{}, fmt.Errorf("parameter %q: not a number", p.name)
		}
	}
	if p.HasRange {
		f = math.Min(f, p.Max)
		f = math.Max(f, p.Min)
	}
	return graph.FloatValue(f), nil
}

// StringParam is a text parameter.
type StringParam struct {
	baseParam
	Default   string
	Multiline bool
}

func newStringParam(name string, optional bool, opts map[string]interface{}) *StringParam {
	p := &StringParam{baseParam: baseParam{name: name, optional: optional}}
	if v, ok := opts["default"].(string); ok {
		p.Default = v
	}
	if v, ok := opts["multiline"].(bool); ok {
		p.Multiline = v
	}
	return p
}

func (p *StringParam) Kind() string   { return "STRING" }
func (p *StringParam) Settable() bool { return true }

func (p *StringParam) Coerce(v graph.WidgetValue) (graph.WidgetValue, error) {
	if s, ok := v.Str(); ok {
		return graph.StringValue(s), nil
	}
	if v.IsNull() {
		return graph.WidgetValue{}, fmt.Errorf("parameter %q: not a string", p.name)
	}
	return graph.StringValue(v.String()), nil
}

// BoolParam is a labeled boolean parameter.
type BoolParam struct {
	baseParam
	Default  bool
	LabelOn  string
	LabelOff string
}

func newBoolParam(name string, optional bool, opts map[string]interface{}) *BoolParam {
	p := &BoolParam{baseParam: baseParam{name: name, optional: optional}}
	if v, ok := opts["default"].(bool); ok {
		p.Default = v
	}
	if v, ok := opts["label_on"].(string); ok {
		p.LabelOn = v
	}
	if v, ok := opts["label_off"].(string); ok {
		p.LabelOff = v
	}
	return p
}

func (p *BoolParam) Kind() string   { return "BOOLEAN" }
func (p *BoolParam) Settable() bool { return true }

func (p *BoolParam) Coerce(v graph.WidgetValue) (graph.WidgetValue, error) {
	if b, ok := v.Bool(); ok {
		return graph.BoolValue(b), nil
	}
	if s, ok := v.Str(); ok {
		parsed, err := strconv.ParseBool(s)
		if err != nil {
			return graph.WidgetValue{}, fmt.Errorf("parameter %q: %w", p.name, err)
		}
		return graph.BoolValue(parsed), nil
	}
	return graph.WidgetValue{}, fmt.Errorf("parameter %q: not a boolean", p.name)
}

// ComboParam restricts a string parameter to a fixed list of choices.
type ComboParam struct {
	baseParam
	Choices []string
}

func newComboParam(name string, optional bool, choices []interface{}) *ComboParam {
	p := &ComboParam{baseParam: baseParam{name: name, optional: optional}}
	p.Choices = make([]string, 0, len(choices))
	for _, c := range choices {
		if s, ok := c.(string); ok {
			p.Choices = append(p.Choices, s)
		}
	}
	return p
}

func (p *ComboParam) Kind() string   { return "COMBO" }
func (p *ComboParam) Settable() bool { return true }

// Has reports whether value is one of the allowed choices.
func (p *ComboParam) Has(value string) bool {
	for _, c := range p.Choices {
		if c == value {
			return true
		}
	}
	return false
}

func (p *ComboParam) Coerce(v graph.WidgetValue) (graph.WidgetValue, error) {
	s, ok := v.Str()
	if !ok {
		s = v.String()
	}
	if !p.Has(s) {
		return graph.WidgetValue{}, fmt.Errorf("parameter %q: %q is not an allowed value", p.name, s)
	}
	return graph.StringValue(s), nil
}

// UnknownParam covers input types the engine cannot set, such as latent or
// model connections.
type UnknownParam struct {
	baseParam
	TypeName string
}

func (p *UnknownParam) Kind() string   { return p.TypeName }
func (p *UnknownParam) Settable() bool { return false }

func (p *UnknownParam) Coerce(v graph.WidgetValue) (graph.WidgetValue, error) {
	return graph.WidgetValue{}, fmt.Errorf("parameter %q is not settable", p.name)
}

// paramFromSpec builds a Param from one /object_info input entry. The entry
// is a slice whose first element is either the type name or, for combos, the
// list of allowed values; the optional second element carries the bounds.
func paramFromSpec(name string, optional bool, spec interface{}) Param {
	slice, ok := spec.([]interface{})
	if !ok || len(slice) == 0 {
		return nil
	}

	if choices, ok := slice[0].([]interface{}); ok {
		return newComboParam(name, optional, choices)
	}

	typeName, ok := slice[0].(string)
	if !ok {
		return nil
	}
	opts, _ := optsOf(slice)

	switch typeName {
	case "INT":
		return newIntParam(name, optional, opts)
	case "FLOAT":
		return newFloatParam(name, optional, opts)
	case "STRING":
		return newStringParam(name, optional, opts)
	case "BOOLEAN":
		return newBoolParam(name, optional, opts)
	default:
		return &UnknownParam{baseParam: baseParam{name: name, optional: optional}, TypeName: typeName}
	}
}

func optsOf(slice []interface{}) (map[string]interface{}, bool) {
	if len(slice) < 2 {
		return nil, false
	}
	m, ok := slice[1].(map[string]interface{})
	return m, ok
}

func numberOpt(opts map[string]interface{}, key string) (float64, bool) {
	if opts == nil {
		return 0, false
	}
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
