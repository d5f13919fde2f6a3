// Package pipeline runs a complete decode: it opens a particle file,
// transparently decompresses gzip or zstd archives, drives the record reader
// and sub-block decoder, and writes the text format.
//
// Dependency rule: pipeline sits above l1records, l2blocks and l3text and
// may use fsutil for file access. Nothing in the decoder layers imports it.
package pipeline
