// Package l2blocks owns Layer 2 (Sub-blocks) of the particle-file decoder.
//
// Responsibilities: cut a record payload into its fixed-size sub-blocks,
// classify each one by the sentinel tag in its first word, and project the
// classified sub-block onto the fields the text format carries. Particle
// sub-blocks are further cut into per-particle chunks with zero padding
// dropped.
//
// Dependency rule: L2 depends only on the corsika layout package; it never
// touches I/O.
package l2blocks
