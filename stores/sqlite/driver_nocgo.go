//go:build !cgo

package sqlite

import _ "modernc.org/sqlite"

// DriverName is the database/sql driver the store opens. go-sqlite3 needs
// cgo, so cgo-free builds fall back to the pure Go driver.
const DriverName = "sqlite"
