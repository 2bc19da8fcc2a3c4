package tracker

import (
	"math"

	"github.com/okian/footfall/internal/domain/geometry"
)

// forbidden stands in for an infinite cost in the assignment matrix.
const forbidden = 1e18

// HungarianMatcher solves the track/detection assignment optimally
// (minimum total centroid distance) with the Kuhn-Munkres algorithm.
// Pairs farther apart than maxDistance are never assigned.
type HungarianMatcher struct{}

// Assign implements Matcher.
func (HungarianMatcher) Assign(tracks, detections []geometry.Point, maxDistance float64) []int {
	cost := make([][]float64, len(tracks))
	for i, tp := range tracks {
		cost[i] = make([]float64, len(detections))
		for j, dp := range detections {
			d := geometry.Distance(tp, dp)
			if d > maxDistance {
				d = forbidden
			}
			cost[i][j] = d
		}
	}
	return hungarianAssign(cost)
}

// hungarianAssign solves the rectangular assignment problem for an n x m
// cost matrix and returns the column assigned to each row, or -1. Costs at
// or above forbidden are never selected.
func hungarianAssign(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	result := make([]int, n)
	for i := range result {
		result[i] = -1
	}
	if m == 0 {
		return result
	}

	// Padding cells cost nothing so they absorb the surplus side.
	dim := max(n, m)
	c := make([][]float64, dim)
	for i := range c {
		c[i] = make([]float64, dim)
		for j := range c[i] {
			if i < n && j < m {
				c[i][j] = cost[i][j]
			}
		}
	}

	// Potentials formulation, 1-indexed; column 0 is virtual.
	inf := math.MaxFloat64 / 2
	u := make([]float64, dim+1)
	v := make([]float64, dim+1)
	p := make([]int, dim+1)
	way := make([]int, dim+1)
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0
		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1

			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := c[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			if j1 < 0 {
				break
			}

			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	for j := 1; j <= dim; j++ {
		row := p[j] - 1
		col := j - 1
		if row < 0 || row >= n || col >= m {
			continue
		}
		if cost[row][col] < forbidden {
			result[row] = col
		}
	}
	return result
}
