// Package all registers every storage backend. Import it for side
// effects from binaries that select a backend at runtime.
package all

import (
	_ "jsonimport/internal/storage/mssql"
	_ "jsonimport/internal/storage/mysql"
	_ "jsonimport/internal/storage/postgres"
	_ "jsonimport/internal/storage/sqlite"
)
