package hashing

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// SignProjectionBit derives a single deterministic projection-matrix sign
// bit for output dimension i, input dimension j, under seed. It reuses
// SHA-256(SHA-256(seed) ∥ i ∥ j) with big-endian 16-bit index encoding,
// fixed so that any implementation following the same byte ordering
// reproduces the identical projection matrix without ever materializing
// or storing it.
func SignProjectionBit(seed string, i, j int) int8 {
	seedSum := sha256.Sum256([]byte(seed))

	buf := make([]byte, len(seedSum)+4)
	n := copy(buf, seedSum[:])
	binary.BigEndian.PutUint16(buf[n:], uint16(i))
	binary.BigEndian.PutUint16(buf[n+2:], uint16(j))

	sum := sha256.Sum256(buf)
	if sum[0]&1 == 0 {
		return -1
	}
	return 1
}

// SignProject projects src (length d) to a vector of outDim dimensions
// using the deterministic sign-bit random projection keyed by seed:
// out[i] = sum_j src[j] * sign(seed, i, j) / sqrt(d).
//
// The projection is never materialized as a stored matrix; every
// coefficient is recomputed from the seed so that two implementations that
// agree on SignProjectionBit's byte ordering always agree on the output,
// a cross-implementation reproducibility requirement of the embedding
// design.
func SignProject(seed string, src []float32, outDim int) []float32 {
	d := len(src)
	out := make([]float32, outDim)
	if d == 0 {
		return out
	}

	scale := float32(1)
	if d > 1 {
		scale = float32(1 / math.Sqrt(float64(d)))
	}

	for i := 0; i < outDim; i++ {
		var acc float32
		for j := 0; j < d; j++ {
			sign := SignProjectionBit(seed, i, j)
			if sign > 0 {
				acc += src[j]
			} else {
				acc -= src[j]
			}
		}
		out[i] = acc * scale
	}
	return out
}
