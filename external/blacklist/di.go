package blacklist

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/auth/credentials"
	"github.com/comzer-gov/casbot/internal/blacklist"
	"github.com/comzer-gov/casbot/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const storeInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (blacklist.Store, error) {
		cfg := do.MustInvoke[*config.Config](i)
		ctx, cancel := context.WithTimeout(context.Background(), storeInitTimeout)
		defer cancel()

		switch cfg.BlacklistBackend {
		case config.BlacklistBackendPostgres:
			return newPostgresStore(ctx, cfg.DatabaseURL)
		default:
			return newSheetsStore(ctx, cfg.GoogleCloudCredentialsJSON, cfg.GoogleSheetID, cfg.BlacklistSheetName)
		}
	})
	do.Provide(injector, func(i do.Injector) (*blacklist.Service, error) {
		return blacklist.NewService(do.MustInvoke[blacklist.Store](i)), nil
	})
}

func newPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	p, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := RunMigration(ctx, p); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to run migration: %w", err)
	}
	return NewPostgresStore(p), nil
}

func newSheetsStore(ctx context.Context, credentialsJSON, spreadsheetID, sheetName string) (*SheetsStore, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(credentialsJSON),
		Scopes:          []string{sheets.SpreadsheetsScope},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}
	svc, err := sheets.NewService(ctx, option.WithAuthCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return NewSheetsStore(svc, spreadsheetID, sheetName), nil
}
