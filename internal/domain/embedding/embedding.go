// Package embedding contains the vector math used to compare face embeddings.
package embedding

import (
	"gonum.org/v1/gonum/floats"
)

// Epsilon keeps cosine similarity finite for zero vectors.
const Epsilon = 1e-10

// Cosine returns dot(a, b) / (||a|| * ||b|| + Epsilon). Vectors of different
// or zero length have similarity 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	return floats.Dot(a, b) / (floats.Norm(a, 2)*floats.Norm(b, 2) + Epsilon)
}

// Normalize returns a unit-length copy of v.
func Normalize(v []float64) ([]float64, error) {
	if len(v) == 0 {
		return nil, ErrEmpty
	}
	n := floats.Norm(v, 2)
	if n < Epsilon {
		return nil, ErrZeroNorm
	}
	out := make([]float64, len(v))
	copy(out, v)
	floats.Scale(1/n, out)
	return out, nil
}

// Float32 converts an embedding for indexes that work in single precision.
func Float32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
