package store

import (
	"encoding/binary"
	"math"
)

// encodeVector packs a float32 vector into a little-endian BLOB,
// 4 bytes per component.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector unpacks a little-endian BLOB produced by encodeVector.
// Returns nil if the payload length is not a multiple of 4.
func decodeVector(data []byte) []float32 {
	if len(data)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}

// normalizeVector returns a unit-length copy of vec. Zero vectors are
// returned as an all-zero copy so cosine distance degrades to 1.
func normalizeVector(vec []float32) []float32 {
	out := make([]float32, len(vec))
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, v := range vec {
		out[i] = float32(float64(v) * inv)
	}
	return out
}

// cosineDistance is 1 minus the cosine of the angle between a and b.
// 0 means identical direction, 1 orthogonal, 2 opposite. Zero-magnitude
// inputs get the maximum meaningful distance of 1.
func cosineDistance(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(magA)*math.Sqrt(magB))
}
