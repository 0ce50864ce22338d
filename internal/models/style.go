package models

// Style describes how a path polyline and its markers are drawn
type Style struct {
	Color     string  `json:"color" yaml:"color"`
	Weight    float64 `json:"weight" yaml:"weight"`
	Opacity   float64 `json:"opacity" yaml:"opacity"`
	DashArray string  `json:"dashArray,omitempty" yaml:"dash_array,omitempty"`
}
