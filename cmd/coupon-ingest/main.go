package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/go-faster/errors"

	"github.com/xenking/mishramart/internal/storage/postgres"
)

func main() {
	var (
		pattern     string
		databaseURL string
		workers     int
		expected    uint
	)

	flag.StringVar(&pattern, "files", "data/coupons*.csv.gz", "glob of gzip CSV files (code,type,value,min_order)")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", runtime.GOMAXPROCS(0), "files decoded concurrently")
	flag.UintVar(&expected, "expected-codes", defaultExpectedCodes, "expected number of distinct codes, sizes the bloom filter")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, pattern, databaseURL, workers, expected); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, pattern, databaseURL string, workers int, expected uint) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrapf(err, "glob %s", pattern)
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s", pattern)
	}
	sort.Strings(files)

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	in := newIngester(postgres.NewCouponRepository(pool), expected)
	stats, err := in.Run(ctx, files, workers)
	if err != nil {
		return err
	}

	slog.Info("ingest summary",
		slog.Int("files", len(files)),
		slog.Uint64("rows", stats.Rows),
		slog.Uint64("written", stats.Written),
		slog.Uint64("duplicates", stats.Duplicates),
		slog.Uint64("invalid", stats.Invalid),
	)

	return nil
}
