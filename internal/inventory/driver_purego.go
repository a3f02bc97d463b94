//go:build !cgo_sqlite

package inventory

import (
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

const (
	driverName    = "sqlite"
	driverType    = "purego"
	driverPackage = "modernc.org/sqlite"
)
