package domain

import "context"

// Database defines lifecycle operations and repository access for the
// underlying database. Each implementation (SQLite, Postgres) owns its own
// migration files and strategy, ensuring the entire backend is swappable.
type Database interface {
	Migrate(ctx context.Context) error
	Close() error
	Users() UserRepository
	Microposts() MicropostRepository
	Relationships() RelationshipRepository
}
