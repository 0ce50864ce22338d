package mapview

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaletteLookup(t *testing.T) {
	p := DefaultPalette()

	assert.Equal(t, "#2563eb", p.StyleFor("party").Color)
	assert.Equal(t, "#2563eb", p.StyleFor("  Party ").Color)
	assert.Equal(t, "6 4", p.StyleFor("suspicious").DashArray)
	assert.Equal(t, p.Default, p.StyleFor(""))
	assert.Equal(t, p.Default, p.StyleFor("dragon"))
}

func TestLoadPalette(t *testing.T) {
	path := filepath.Join(t.TempDir(), "palette.yaml")
	data := `
default:
  color: "#000000"
  weight: 2
categories:
  Party:
    color: "#ffffff"
  rival:
    color: "#ff00ff"
    weight: 5
    dash_array: "2 2"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	p, err := LoadPalette(path)
	require.NoError(t, err)

	assert.Equal(t, "#000000", p.Default.Color)
	assert.Equal(t, 2.0, p.Default.Weight)
	// opacity is inherited from the built-in default
	assert.Equal(t, DefaultPalette().Default.Opacity, p.Default.Opacity)

	party := p.StyleFor("party")
	assert.Equal(t, "#ffffff", party.Color)
	assert.Equal(t, 2.0, party.Weight)

	rival := p.StyleFor("rival")
	assert.Equal(t, 5.0, rival.Weight)
	assert.Equal(t, "2 2", rival.DashArray)

	assert.Equal(t, p.Default, p.StyleFor("unknown"))
}

func TestLoadPaletteErrors(t *testing.T) {
	_, err := LoadPalette(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default: [unclosed"), 0o600))
	_, err = LoadPalette(path)
	assert.Error(t, err)
}
