// Package postgres provides a PostgreSQL implementation of the location
// tracker and match index, using the pgvector extension for nearest-neighbour
// search.
//
// Blocks live in knoba_blocks with a vector(N) embedding column and an HNSW
// cosine index. Mappings live in knoba_locations as text arrays. The schema is
// created on first use; the vector dimension is fixed at creation time and
// must match the embedding provider.
package postgres
