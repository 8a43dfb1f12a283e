// Package version reports the build of the filestream binary.
//
// Version, Commit and BuildTime are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/filestream/version.Version=1.4.0" ./cmd/filestream
//
// Unset values fall back to the VCS stamps Go embeds in module builds.
package version
