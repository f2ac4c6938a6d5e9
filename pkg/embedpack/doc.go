// Package embedpack packs and unpacks the 768-dimension span/edge
// embedding vectors into the wire representation stored in
// EmbeddingBlob: little-endian IEEE 754 binary16 (float16) samples,
// base64-encoded.
package embedpack
