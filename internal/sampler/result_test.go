package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func constantChain(id int, values ...float64) Chain {
	c := Chain{ID: id, Accepted: []int{0}, Proposed: []int{len(values)}}
	for _, v := range values {
		c.Draws = append(c.Draws, []float64{v})
	}
	return c
}

func TestRHat(t *testing.T) {
	mixed := &Result{Names: []string{"x"}, Chains: []Chain{
		constantChain(0, 0.1, 0.2, 0.3, 0.4),
		constantChain(1, 0.4, 0.3, 0.2, 0.1),
	}}
	assert.InDelta(t, math.Sqrt(0.75), mixed.RHat(0), 1e-12)

	apart := &Result{Names: []string{"x"}, Chains: []Chain{
		constantChain(0, 0.1, 0.2, 0.1, 0.2),
		constantChain(1, 0.8, 0.9, 0.8, 0.9),
	}}
	assert.Greater(t, apart.RHat(0), 2.0)

	flat := &Result{Names: []string{"x"}, Chains: []Chain{
		constantChain(0, 0.5, 0.5),
		constantChain(1, 0.5, 0.5),
	}}
	assert.True(t, math.IsNaN(flat.RHat(0)))
}

func TestSummarize(t *testing.T) {
	r := &Result{Names: []string{"x"}, Chains: []Chain{
		constantChain(0, 0.1, 0.2, 0.3),
		constantChain(1, 0.4, 0.5, 0.6),
	}}
	s := r.Summarize()[0]
	assert.Equal(t, "x", s.Name)
	assert.Equal(t, 6, s.Draws)
	assert.InDelta(t, 0.35, s.Mean, 1e-12)
	assert.Equal(t, 0.1, s.Q025)
	assert.Equal(t, 0.6, s.Q975)
	assert.Equal(t, 0, r.Index("x"))
	assert.Equal(t, -1, r.Index("y"))
}
