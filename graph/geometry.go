package graph

import (
	"encoding/json"
)

type Pos struct {
	X float64
	Y float64
}

func (p *Pos) UnmarshalJSON(b []byte) error {
	// positions are usually a [x,y] array, but some exporters write them
	// as an index-keyed map
	var arr []float64
	if err := json.Unmarshal(b, &arr); err == nil {
		if len(arr) > 0 {
			p.X = arr[0]
		}
		if len(arr) > 1 {
			p.Y = arr[1]
		}
		return nil
	}

	var m map[string]float64
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	p.X = m["0"]
	p.Y = m["1"]
	return nil
}

// always write the array form
func (p Pos) MarshalJSON() ([]byte, error) {
	return json.Marshal([]float64{p.X, p.Y})
}

type Size struct {
	Width  float64
	Height float64
}

func (s *Size) UnmarshalJSON(b []byte) error {
	var arr []float64
	if err := json.Unmarshal(b, &arr); err == nil {
		if len(arr) > 0 {
			s.Width = arr[0]
		}
		if len(arr) > 1 {
			s.Height = arr[1]
		}
		return nil
	}

	var m map[string]float64
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	s.Width = m["0"]
	s.Height = m["1"]
	return nil
}

func (s Size) MarshalJSON() ([]byte, error) {
	return json.Marshal([]float64{s.Width, s.Height})
}
