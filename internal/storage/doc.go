// Package storage provides a SQLite-backed document store.
//
// It serves MindMup files from a local database so the server can run
// without a remote object store. SQLiteStorage implements remote.Store.
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations (semver)
//   - documents: file metadata, raw content and a SHA-256 content hash
//
// # Drivers
//
// The driver is chosen by build tag. The default build uses the pure Go
// modernc.org/sqlite driver. Building with CGO and -tags sqlite_cgo switches
// to github.com/mattn/go-sqlite3. Both open file databases in WAL mode with a
// busy timeout.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.mindmup/documents.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	res, err := db.ImportFile(ctx, "plans/q3.mup", storage.ImportOptions{})
//	files, err := db.List(ctx, remote.Query{NameContains: "q3"})
//
// Imports parse the file before storing it, so malformed documents never
// reach the database. Re-importing unchanged content is a no-op.
package storage
