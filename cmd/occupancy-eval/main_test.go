package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataset(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseFlags(t *testing.T) {
	testCases := []struct {
		name      string
		args      []string
		expectErr bool
	}{
		{"defaults_need_data", nil, true},
		{"single", []string{"-data", "x.csv"}, false},
		{"dynamic", []string{"-data", "x.csv", "-model", "dynamic"}, false},
		{"bad_model", []string{"-data", "x.csv", "-model", "royle-nichols"}, true},
		{"version_without_data", []string{"-version"}, false},
		{"unknown_flag", []string{"-nope"}, true},
		{"profile_and_surface", []string{"-data", "x.csv", "-profile", "p", "-surface", "p,psi"}, true},
		{"plot_without_profile", []string{"-data", "x.csv", "-grid", "p=0.5", "-plot", "x.png"}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var stderr bytes.Buffer
			_, err := parseFlags(tc.args, &stderr)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRun_SingleSeasonWithProfile(t *testing.T) {
	data := writeDataset(t, "sites.csv", "site,s1,s2,s3\nA,1,0,1\nB,0,0,0\nC,1,1,1\nD,0,0,0\n")
	outDir := t.TempDir()
	csvPath := filepath.Join(outDir, "profile.csv")
	pngPath := filepath.Join(outDir, "profile.png")

	var stdout bytes.Buffer
	err := run(context.Background(), []string{
		"-data", data, "-p", "0.7", "-psi", "0.6", "-per-site",
		"-profile", "psi", "-range", "0.1:0.9:0.1", "-output", csvPath, "-plot", pngPath,
	}, &stdout)
	require.NoError(t, err)

	out := stdout.String()
	assert.Contains(t, out, "model=single N=4 K=3")
	assert.Contains(t, out, "log_likelihood=")
	assert.Contains(t, out, "site,detections,log_likelihood,p_occupied")
	assert.Contains(t, out, "C,3,")
	assert.Contains(t, out, "profile psi: max log_likelihood=")

	profile, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, 10, strings.Count(string(profile), "\n"), "header plus nine grid points")
	_, err = os.Stat(pngPath)
	assert.NoError(t, err)
}

func TestRun_Dynamic(t *testing.T) {
	data := writeDataset(t, "long.csv", `site,season,survey,detected
A,1,1,1
A,1,2,0
A,2,1,0
A,2,2,0
B,1,1,0
B,1,2,0
B,2,1,0
B,2,2,1
`)
	var stdout bytes.Buffer
	err := run(context.Background(), []string{
		"-data", data, "-model", "dynamic", "-psi1", "0.5", "-phi", "0.6", "-gamma", "0.2", "-p", "0.5", "-per-site",
	}, &stdout)
	require.NoError(t, err)

	out := stdout.String()
	assert.Contains(t, out, "model=dynamic N=2 T=2 R=2")
	assert.Contains(t, out, "psi_trajectory=0.500000,0.400000")
	assert.Contains(t, out, "equilibrium=0.333333")
	assert.Contains(t, out, "B,2,")
}

func TestRun_Surface(t *testing.T) {
	data := writeDataset(t, "sites.csv", "site,detections,surveys\nA,2,4\nB,0,4\nC,3,4\nD,0,4\n")
	csvPath := filepath.Join(t.TempDir(), "surface.csv")

	var stdout bytes.Buffer
	err := run(context.Background(), []string{
		"-data", data, "-surface", "p,psi", "-range", "0.2:0.8:0.2", "-range2", "0.25,0.5,1.25",
		"-top", "2", "-output", csvPath,
	}, &stdout)
	require.NoError(t, err)

	out := stdout.String()
	assert.Contains(t, out, "surface p,psi: 12 points, best 2:")
	assert.Contains(t, out, "\n1 p=")
	assert.Contains(t, out, "\n2 p=")
	assert.NotContains(t, out, "\n3 p=")
	assert.NotContains(t, out, "psi=1.25 log", "out-of-range points rank last")

	surface, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, 13, strings.Count(string(surface), "\n"))
}

func TestRun_Grid(t *testing.T) {
	data := writeDataset(t, "long.csv", `site,season,survey,detected
A,1,1,1
A,1,2,0
A,2,1,1
A,2,2,0
B,1,1,0
B,1,2,0
B,2,1,0
B,2,2,0
`)
	var stdout bytes.Buffer
	err := run(context.Background(), []string{
		"-data", data, "-model", "dynamic", "-grid", "phi=0.2,0.8; p=0.3:0.7:0.2", "-top", "10",
	}, &stdout)
	require.NoError(t, err)
	out := stdout.String()
	assert.Contains(t, out, "grid: 6 points, best 6:")
	assert.Contains(t, out, "psi1=0.5 phi=0.8 gamma=0.5 p=")

	assert.Error(t, run(context.Background(), []string{"-data", data, "-model", "dynamic", "-grid", "phi"}, &stdout))
	assert.Error(t, run(context.Background(), []string{"-data", data, "-model", "dynamic", "-grid", "omega=0.5"}, &stdout))
	assert.Error(t, run(context.Background(), []string{"-data", data, "-model", "dynamic", "-surface", "phi"}, &stdout))
}

func TestRun_Errors(t *testing.T) {
	data := writeDataset(t, "sites.csv", "site,s1\nA,1\n")

	var stdout bytes.Buffer
	assert.Error(t, run(context.Background(), []string{"-data", data, "-p", "1.5"}, &stdout))
	assert.Error(t, run(context.Background(), []string{"-data", data, "-profile", "omega"}, &stdout))
	assert.Error(t, run(context.Background(), []string{"-data", data, "-profile", "p", "-range", "0.1:0.2"}, &stdout))
	assert.Error(t, run(context.Background(), []string{"-data", filepath.Join(t.TempDir(), "missing.csv")}, &stdout))

	stdout.Reset()
	require.NoError(t, run(context.Background(), []string{"-version"}, &stdout))
	assert.True(t, strings.HasPrefix(stdout.String(), "occupancy-eval "))
}
