package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/occupancy/internal/dataset"
)

func TestRun_SingleSeasonToStdout(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, run([]string{"-n", "25", "-k", "3", "-seed", "7"}, &stdout))

	d, sites, err := dataset.ReadSingleSeasonCSV(&stdout)
	require.NoError(t, err)
	assert.Equal(t, 25, d.N)
	assert.Equal(t, 3, d.K)
	assert.Len(t, sites, 25)
}

func TestRun_DynamicFiles(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "sim.csv")
	truthPath := filepath.Join(dir, "truth.json")

	var stdout bytes.Buffer
	require.NoError(t, run([]string{
		"-model", "dynamic", "-n", "10", "-t", "3", "-k", "2", "-output", csvPath, "-truth", truthPath,
	}, &stdout))

	d, _, err := dataset.LoadMultiSeason(csvPath)
	require.NoError(t, err)
	assert.Equal(t, 10, d.N)
	assert.Equal(t, 3, d.T)
	assert.Equal(t, 2, d.R)

	_, err = os.Stat(truthPath)
	assert.NoError(t, err)

	jsonPath := filepath.Join(dir, "sim.json")
	require.NoError(t, run([]string{"-model", "dynamic", "-n", "4", "-output", jsonPath}, &stdout))
	d, _, err = dataset.LoadMultiSeason(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 4, d.N)
}

func TestRun_Errors(t *testing.T) {
	var stdout bytes.Buffer
	assert.Error(t, run([]string{"-model", "multistate"}, &stdout))
	assert.Error(t, run([]string{"-psi", "2"}, &stdout))
	assert.Error(t, run([]string{"-n", "0"}, &stdout))
	assert.Error(t, run([]string{"-output", filepath.Join(t.TempDir(), "sim.txt")}, &stdout))
}
