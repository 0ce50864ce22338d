package mapview

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/piosteiner/adenai-map/internal/models"
)

// Palette maps entity categories to path styles. Lookup is total: unknown
// or empty categories get the Default style.
type Palette struct {
	Default    models.Style            `yaml:"default"`
	Categories map[string]models.Style `yaml:"categories"`
}

// DefaultPalette returns the built-in relationship colours
func DefaultPalette() *Palette {
	return &Palette{
		Default: models.Style{Color: "#6b7280", Weight: 3, Opacity: 0.7},
		Categories: map[string]models.Style{
			"party":      {Color: "#2563eb", Weight: 4, Opacity: 0.9},
			"ally":       {Color: "#16a34a", Weight: 3, Opacity: 0.8},
			"friendly":   {Color: "#22c55e", Weight: 3, Opacity: 0.8},
			"neutral":    {Color: "#a3a3a3", Weight: 3, Opacity: 0.7},
			"suspicious": {Color: "#f59e0b", Weight: 3, Opacity: 0.8, DashArray: "6 4"},
			"hostile":    {Color: "#ef4444", Weight: 3, Opacity: 0.8},
			"enemy":      {Color: "#dc2626", Weight: 3, Opacity: 0.85},
		},
	}
}

// LoadPalette reads a YAML palette. Categories missing a field inherit it
// from the default style; a missing default falls back to the built-in one.
func LoadPalette(path string) (*Palette, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read palette file: %w", err)
	}

	var p Palette
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse palette file: %w", err)
	}

	p.Default = fillStyle(p.Default, DefaultPalette().Default)
	normalised := make(map[string]models.Style, len(p.Categories))
	for name, style := range p.Categories {
		normalised[normaliseCategory(name)] = fillStyle(style, p.Default)
	}
	p.Categories = normalised
	return &p, nil
}

// StyleFor implements movement.Styler
func (p *Palette) StyleFor(category string) models.Style {
	if style, ok := p.Categories[normaliseCategory(category)]; ok {
		return style
	}
	return p.Default
}

func normaliseCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

func fillStyle(s, fallback models.Style) models.Style {
	if s.Color == "" {
		s.Color = fallback.Color
	}
	if s.Weight == 0 {
		s.Weight = fallback.Weight
	}
	if s.Opacity == 0 {
		s.Opacity = fallback.Opacity
	}
	return s
}
