package backend

import (
	"context"
	"fmt"

	"cashflow/internal/adapters"
	"cashflow/internal/datasource"
	"cashflow/internal/datasource/google"
	"cashflow/internal/datasource/memory"
	"cashflow/internal/log"
	"cashflow/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	if config.SeedFile != "" {
		seeded, err := seedIfEmpty(ctx, repo, config.SeedFile)
		if err != nil {
			repo.Close()
			return nil, err
		}
		if seeded > 0 {
			f.logger.InfoContext(ctx, "Seeded empty database", "seed_file", config.SeedFile, "businesses", seeded)
		}
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{Store: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	ledger, err := google.New(ctx, config.Sheets)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	derived, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	adapter, err := adapters.NewLedgerAdapter(ctx, ledger, derived)
	if err != nil {
		derived.Close()
		return nil, err
	}

	f.logger.InfoContext(ctx, "Initialized Google Sheets backend",
		"spreadsheet_id", config.Sheets.SpreadsheetID,
		"derived_db_path", config.SQLiteDBPath)
	return &BackendResult{Store: adapter, Cleanup: derived.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := memory.NewFromFile(ctx, config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized memory backend", "seed_file", config.SeedFile)
	return &BackendResult{Store: store, Cleanup: store.Close}, nil
}

// seedIfEmpty applies the seed only when the store has no businesses yet,
// so restarts do not duplicate the ledger.
func seedIfEmpty(ctx context.Context, store datasource.Store, path string) (int, error) {
	existing, err := store.ListBusinesses(ctx)
	if err != nil {
		return 0, fmt.Errorf("check existing businesses: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	seed, err := datasource.LoadSeed(path)
	if err != nil {
		return 0, err
	}
	created, err := seed.Apply(ctx, store)
	if err != nil {
		return 0, fmt.Errorf("apply seed: %w", err)
	}
	return len(created), nil
}
