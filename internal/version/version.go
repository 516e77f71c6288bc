// Package version holds the kas release and configuration format versions.
// Version may be overridden at build time:
//
//	go build -ldflags "-X kas/internal/version.Version=4.7.1"
package version

import "fmt"

// Version is the kas release.
var Version = "4.7"

// FileVersion is the configuration format version written by this release.
const FileVersion = 17

// CompatibleFileVersion is the earliest configuration format version this
// release still reads.
const CompatibleFileVersion = 1

// String returns the text printed by --version for the program prog.
func String(prog string) string {
	return fmt.Sprintf("%s %s (configuration format version %d, earliest compatible version %d)",
		prog, Version, FileVersion, CompatibleFileVersion)
}
