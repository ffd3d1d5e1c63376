package testutil

import (
	"math"
	"testing"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()
	AssertNoError(t, nil)
}

func TestAssertClose(t *testing.T) {
	t.Parallel()
	AssertClose(t, 1.0000001, 1, 1e-6)
	AssertClose(t, math.Inf(-1), math.Inf(-1), 1e-6)
}

func TestFixturesAreValid(t *testing.T) {
	t.Parallel()
	AssertNoError(t, SmallSingleSeason().Validate())
	AssertNoError(t, SmallMultiSeason().Validate())
}
