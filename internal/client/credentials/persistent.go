package credentials

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/dmitrijs2005/campusgive/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/campusgive/internal/common"
	"github.com/dmitrijs2005/campusgive/internal/dbx"
	"github.com/dmitrijs2005/campusgive/internal/logging"
)

// PersistentStore is a write-through Store backed by the auth_metadata table.
type PersistentStore struct {
	mu  sync.RWMutex
	c   Credential
	db  *sql.DB
	log logging.Logger
	now func() time.Time
}

// NewPersistentStore loads any previously saved credential from db.
// A read failure is logged and the store starts empty.
func NewPersistentStore(ctx context.Context, db *sql.DB, log logging.Logger) *PersistentStore {
	s := &PersistentStore{db: db, log: log.With("component", "credentials"), now: time.Now}

	value, err := metadata.NewSQLiteRepository(db).Get(ctx, common.CredentialMetadataKey)
	if err != nil {
		s.log.Warn(ctx, "could not load saved credential", "error", err)
		return s
	}
	s.c = Credential(value)
	return s
}

func (s *PersistentStore) Get(_ context.Context) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c, s.c != ""
}

// Set replaces the credential. The disk write happens under the same lock so
// the persisted value always matches the last Set.
func (s *PersistentStore) Set(ctx context.Context, c Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c = c
	if err := s.persist(ctx, c); err != nil {
		s.log.Error(ctx, "could not persist credential", "cleared", c == "", "error", err)
	}
}

func (s *PersistentStore) persist(ctx context.Context, c Credential) error {
	// the token must reach disk even when the caller's ctx was just cancelled
	ctx = context.WithoutCancel(ctx)

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var repo metadata.Repository = metadata.NewSQLiteRepository(tx)
		if c == "" {
			if err := repo.Delete(ctx, common.CredentialMetadataKey); err != nil {
				return err
			}
			return repo.Delete(ctx, common.CredentialUpdatedAtMetadataKey)
		}
		if err := repo.Set(ctx, common.CredentialMetadataKey, []byte(c)); err != nil {
			return err
		}
		stamp := s.now().UTC().Format(time.RFC3339)
		return repo.Set(ctx, common.CredentialUpdatedAtMetadataKey, []byte(stamp))
	})
}
