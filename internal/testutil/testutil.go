// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"testing"

	"github.com/banshee-data/occupancy/internal/occupancy"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertClose fails the test unless |got-want| <= tol. Equal infinities pass.
func AssertClose(t *testing.T, got, want, tol float64) {
	t.Helper()
	if math.IsInf(want, 0) && got == want {
		return
	}
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Errorf("got %v, want %v (tol %g)", got, want, tol)
	}
}

// SmallSingleSeason returns a ten-site, four-survey dataset with a mix of
// detected and undetected sites.
func SmallSingleSeason() occupancy.SingleSeason {
	return occupancy.SingleSeason{
		N: 10,
		K: 4,
		Y: []int{0, 2, 0, 1, 3, 0, 0, 4, 1, 0},
	}
}

// SmallMultiSeason returns a three-site, three-season, two-survey dataset.
func SmallMultiSeason() occupancy.MultiSeason {
	return occupancy.MultiSeason{
		N: 3,
		T: 3,
		R: 2,
		Y: [][][]int{
			{{1, 0}, {1, 1}, {0, 0}},
			{{0, 0}, {0, 0}, {0, 1}},
			{{0, 0}, {0, 0}, {0, 0}},
		},
	}
}
