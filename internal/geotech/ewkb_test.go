package geotech

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

func TestPointEWKB_RoundTrip(t *testing.T) {
	data, err := pointEWKB(-95.3698, 29.7604)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, 4326, g.SRID())
	assert.Equal(t, []float64{-95.3698, 29.7604}, g.FlatCoords())
}

func TestRingEWKB_RoundTrip(t *testing.T) {
	ring := [][2]float64{
		{-95.37, 29.76},
		{-95.36, 29.76},
		{-95.36, 29.77},
		{-95.37, 29.77},
		{-95.37, 29.76},
	}
	data, err := ringEWKB(ring)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, 4326, g.SRID())
	assert.Len(t, g.FlatCoords(), 10)
}

func TestRingEWKB_TooFewPositions(t *testing.T) {
	_, err := ringEWKB([][2]float64{{-95.37, 29.76}, {-95.36, 29.76}, {-95.36, 29.77}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 4 positions")
}
