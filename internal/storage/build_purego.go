//go:build purego || !sqlite_cgo || !cgo

package storage

// Compiled by default. Uses the pure Go driver, so no C toolchain is needed:
//
//	CGO_ENABLED=0 go build ./...

import (
	"net/url"

	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)

// dsn adds the connection settings in modernc's _pragma syntax
func dsn(path string) string {
	if path == ":memory:" {
		return path
	}
	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	return path + "?" + params.Encode()
}
