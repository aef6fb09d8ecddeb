package storage

// BatchRows returns how many rows fit into one multi-row INSERT given the
// column count and the dialect's bound-parameter limit (2100 for MSSQL,
// 65535 for MySQL/Postgres, 32766 for SQLite).
//
// Always at least 1, so a single very wide row still produces a statement;
// exceeding the driver limit in that degenerate case surfaces as a storage
// error rather than an infinite loop.
func BatchRows(columns, maxArgs int) int {
	if columns <= 0 {
		return maxArgs
	}
	n := maxArgs / columns
	if n < 1 {
		return 1
	}
	return n
}
