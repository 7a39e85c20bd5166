//go:build cgo && sqlite_cgo && !purego

package storage

// Compiled with CGO_ENABLED=1 and the sqlite_cgo tag:
//
//	CGO_ENABLED=1 go build -tags sqlite_cgo ./...

import (
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)

// dsn adds the connection settings in go-sqlite3's parameter syntax
func dsn(path string) string {
	if path == ":memory:" {
		return path
	}
	params := url.Values{}
	params.Set("_busy_timeout", "5000")
	params.Set("_journal_mode", "WAL")
	return path + "?" + params.Encode()
}
