package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransformer_EmptyIsIdentity(t *testing.T) {
	tr, err := NewTransformer("")
	require.NoError(t, err)

	lon, lat, err := tr.ToLonLat(-95.3698, 29.7604)
	require.NoError(t, err)
	assert.Equal(t, -95.3698, lon)
	assert.Equal(t, 29.7604, lat)
}

func TestNewTransformer_WhitespaceIsIdentity(t *testing.T) {
	tr, err := NewTransformer("   \n")
	require.NoError(t, err)

	lon, lat, err := tr.ToLonLat(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, lon)
	assert.Equal(t, 2.0, lat)
}

func TestNewTransformer_GeographicWKTIsIdentity(t *testing.T) {
	tr, err := NewTransformer(`GEOGCS["WGS 84",DATUM["WGS_1984"]]`)
	require.NoError(t, err)

	lon, lat, err := tr.ToLonLat(-95.1, 29.9)
	require.NoError(t, err)
	assert.Equal(t, -95.1, lon)
	assert.Equal(t, 29.9, lat)
}
