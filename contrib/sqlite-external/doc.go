// Package sqliteexternal provides the optional CGO SQLite driver.
//
// To use github.com/mattn/go-sqlite3 instead of the pure Go
// modernc.org/sqlite driver, build with:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./cmd/versecorpus
//
// core/sqlite picks the driver at compile time; callers always go through
// sqlite.Open and never name a driver themselves.
package sqliteexternal
