// Package l1records owns Layer 1 (Records) of the particle-file decoder.
//
// Responsibilities: split a raw CORSIKA particle file into Fortran
// unformatted sequential records. Each record on disk is a 4-byte
// little-endian length marker, the payload, and a trailing copy of the
// marker. Records whose declared length is not the expected record size are
// skipped and counted; a stream that ends inside a record is fatal.
//
// Dependency rule: L1 depends only on the corsika layout package.
package l1records
