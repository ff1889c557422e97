//go:build cgo

package sqlite

import _ "github.com/mattn/go-sqlite3"

// DriverName is the database/sql driver the store opens. cgo builds use
// go-sqlite3.
const DriverName = "sqlite3"
