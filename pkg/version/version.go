// Package version holds the build version, overridable with
// -ldflags "-X dronesim/pkg/version.Version=...".
package version

var Version = "v0.3.0"
