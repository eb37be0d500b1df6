package repository

import (
	"context"

	"familytasks/internal/database"
)

// Repositories groups the typed repositories bound to one querier
type Repositories struct {
	Users         *UserRepository
	Families      *FamilyRepository
	Tasks         *TaskRepository
	Outbox        *OutboxRepository
	Reassignments *ReassignmentRepository
}

func newRepositories(q database.Querier) Repositories {
	return Repositories{
		Users:         NewUserRepository(q),
		Families:      NewFamilyRepository(q),
		Tasks:         NewTaskRepository(q),
		Outbox:        NewOutboxRepository(q),
		Reassignments: NewReassignmentRepository(q),
	}
}

// Tx exposes the repositories bound to a single transaction
type Tx struct {
	Repositories
}

// Store is the transactional entry point to persistence. Its embedded
// repositories run outside any transaction and suit read-only queries.
type Store struct {
	Repositories
	db *database.DB
}

// NewStore creates a store over an open database
func NewStore(db *database.DB) *Store {
	return &Store{
		Repositories: newRepositories(db),
		db:           db,
	}
}

// RunTransaction runs fn atomically. fn may be invoked more than once when the
// transaction conflicts with a concurrent one, so it must not have side effects
// outside the store.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	return s.db.RunInTx(ctx, func(dbtx *database.Tx) error {
		return fn(ctx, &Tx{Repositories: newRepositories(dbtx)})
	})
}

// DB returns the underlying database handle
func (s *Store) DB() *database.DB {
	return s.db
}
