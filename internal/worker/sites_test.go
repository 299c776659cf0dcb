package worker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terracast/terracast/internal/worker"
)

func TestParseSites(t *testing.T) {
	sites, err := worker.ParseSites(" Kochi:9.93,76.26 ; Pune:18.52, 73.85;")
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, worker.Site{Name: "Kochi", Lat: 9.93, Lon: 76.26}, sites[0])
	assert.Equal(t, worker.Site{Name: "Pune", Lat: 18.52, Lon: 73.85}, sites[1])
}

func TestParseSites_Empty(t *testing.T) {
	sites, err := worker.ParseSites("")
	require.NoError(t, err)
	assert.Empty(t, sites)
}

func TestParseSites_Invalid(t *testing.T) {
	tests := []string{
		"Kochi",
		":9.93,76.26",
		"Kochi:9.93",
		"Kochi:north,76.26",
		"Kochi:91,76.26",
		"Kochi:9.93,181",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := worker.ParseSites(input)
			assert.ErrorIs(t, err, worker.ErrInvalidSite)
		})
	}
}

func TestSiteList_Decode(t *testing.T) {
	var list worker.SiteList
	require.NoError(t, list.Decode("Delta:-33.9,18.4"))
	require.Len(t, list, 1)
	assert.Equal(t, -33.9, list[0].Lat)

	assert.Error(t, list.Decode("broken"))
	assert.Len(t, list, 1, "failed decode keeps the previous value")
}
