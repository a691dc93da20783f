package domain

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Normalize returns an L2-normalized copy of v. A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	n := Norm(v)
	if n == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of a and b, or 0 when either is empty,
// zero-length, or the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// ClampSimilarity maps a raw cosine value into the surfaced [0, 1] score range.
func ClampSimilarity(s float64) float64 {
	return min(1, max(0, s))
}

// Mean returns the component-wise average of vs. All vectors must share one dimensionality.
func Mean(vs [][]float32) ([]float32, error) {
	if len(vs) == 0 {
		return nil, nil
	}
	dim := len(vs[0])
	acc := make([]float64, dim)
	for i, v := range vs {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has %d dims, want %d: %w", i, len(v), dim, ErrVectorDimMismatch)
		}
		for j, x := range v {
			acc[j] += float64(x)
		}
	}
	out := make([]float32, dim)
	for j := range acc {
		out[j] = float32(acc[j] / float64(len(vs)))
	}
	return out, nil
}

// CheckDim returns ErrVectorDimMismatch when want is set and v has another length.
func CheckDim(v []float32, want int) error {
	if want > 0 && len(v) != want {
		return fmt.Errorf("got %d dims, want %d: %w", len(v), want, ErrVectorDimMismatch)
	}
	if len(v) == 0 {
		return fmt.Errorf("empty vector: %w", ErrVectorDimMismatch)
	}
	return nil
}

// EncodeVector packs v as little-endian FLOAT32, the layout the search index reads.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob of %d bytes is not a FLOAT32 array", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
