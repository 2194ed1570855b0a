package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caprock-geo/gms-cli/internal/config"
	"github.com/caprock-geo/gms-cli/internal/fetch"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "gms-cli",
	Short: "Geotechnical data management CLI",
	Long:  "Imports boring logs and pavement surveys, derives terrain products from DEMs, and correlates surface distress with subsurface conditions in a PostGIS backend.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// gmsPool creates the pgxpool.Pool every database command talks through.
func gmsPool(ctx context.Context) (*pgxpool.Pool, error) {
	dsn := cfg.Database.URL
	if dsn == "" {
		return nil, eris.New("gms: no database url configured (set database.url or GMS_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "gms: create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "gms: ping database")
	}

	fmt.Println("Connected to database")
	return pool, nil
}

// fetchOptions maps the fetch config onto downloader options.
func fetchOptions() fetch.Options {
	return fetch.Options{
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		RatePerSec: cfg.Fetch.RatePerSec,
		Retries:    cfg.Fetch.Retries,
	}
}

// localPath resolves an argument to a local file, downloading it first when
// it is a URL. The cleanup removes any temp download.
func localPath(ctx context.Context, arg string) (string, func(), error) {
	if !fetch.IsRemote(arg) {
		return arg, func() {}, nil
	}
	tmp, err := fetch.Download(ctx, arg, fetchOptions())
	if err != nil {
		return "", nil, err
	}
	return tmp, func() { _ = os.Remove(tmp) }, nil
}
