// Package version carries the build identity printed by the -version
// flag.
package version

import (
	"fmt"
	"io"
)

const (
	MajorVersion int = 0
	MinorVersion int = 1
	PointVersion int = 0
)

// PrintVersion writes a human-readable version line to wtr.
func PrintVersion(wtr io.Writer) {
	fmt.Fprintf(wtr, "Version:\t%d.%d.%d\n", MajorVersion, MinorVersion, PointVersion)
}
