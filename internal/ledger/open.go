package ledger

// Open selects the backend: Postgres when a database URL is configured,
// otherwise the local SQLite file.
func Open(databaseURL, sqlitePath string) (Store, error) {
	if databaseURL != "" {
		return NewPostgresStore(databaseURL)
	}
	return NewSQLiteStore(sqlitePath)
}
