// Package l3text owns Layer 3 (Text) of the particle-file decoder: the
// intermediate line-oriented format shared with the analysis tools.
//
// The format is:
//
//	READ DATA FROM FILE = <source>
//	RUNH
//	<6 wide fields>
//	<11 narrow fields>
//	EVTH
//	<6 wide fields>
//	<7 wide fields>      one line per particle, no header
//	...
//	EVTE
//	<6 wide fields>
//	RUNE
//	<2 wide fields>
//
// Writer produces it in a single buffered pass; Scanner reads it back.
package l3text
