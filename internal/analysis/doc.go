// Package analysis computes the physics summaries drawn by the plotting
// package: lateral distribution functions and maps from decoded particle
// files, mean longitudinal profiles, Gaisser-Hillas parameter histograms and
// the X_max elongation rate per primary.
//
// Distances are in metres; decoded particle files store centimetres and are
// converted on load.
//
// Dependency rule: analysis reads the text formats through l3text and
// longitudinal and never touches the binary decoder.
package analysis
