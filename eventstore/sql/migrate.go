package sql

// Migrate the database
func (s *SQL) Migrate() error {
	sqlStmt := []string{
		`CREATE TABLE IF NOT EXISTS events (seq INTEGER PRIMARY KEY AUTOINCREMENT, event_id VARCHAR NOT NULL, id VARCHAR NOT NULL, version INTEGER, reason VARCHAR, type VARCHAR, timestamp VARCHAR, data BLOB, metadata BLOB);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS id_type_version ON events (id, type, version);`,
		`CREATE INDEX IF NOT EXISTS id_type ON events (id, type);`,
	}
	for _, stmt := range sqlStmt {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
