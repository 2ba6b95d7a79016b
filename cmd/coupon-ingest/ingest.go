package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/mishramart/internal/domain/coupon"
)

const (
	defaultExpectedCodes = 10_000_000
	bloomFPR             = 0.001
	progressEvery        = 100_000
	minCodeLen           = 4
	maxCodeLen           = 32
	rowBuffer            = 1024
)

var hundred = decimal.NewFromInt(100)

// row is one parsed CSV record together with where it came from.
type row struct {
	file string
	line int
	rule coupon.Rule
}

// Stats summarises an ingest run.
type Stats struct {
	Rows       uint64
	Written    uint64
	Duplicates uint64
	Invalid    uint64
}

// ingester streams coupon rows from many files into one repository. The
// first occurrence of a code wins; later rows with the same code are
// skipped.
type ingester struct {
	repo   coupon.Repository
	filter *bloom.BloomFilter
	stats  Stats
}

func newIngester(repo coupon.Repository, expected uint) *ingester {
	if expected == 0 {
		expected = defaultExpectedCodes
	}
	return &ingester{
		repo:   repo,
		filter: bloom.NewWithEstimates(expected, bloomFPR),
	}
}

// Run decodes files concurrently, at most workers at a time, and writes
// their rows from a single goroutine so that the bloom filter and the
// stats need no locking.
func (in *ingester) Run(ctx context.Context, files []string, workers int) (Stats, error) {
	if workers < 1 {
		workers = 1
	}

	rows := make(chan row, rowBuffer)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(rows)

		readers, rctx := errgroup.WithContext(ctx)
		readers.SetLimit(workers)
		for _, f := range files {
			readers.Go(func() error {
				invalid, err := streamFile(rctx, f, rows)
				if err != nil {
					return errors.Wrapf(err, "read %s", f)
				}
				if invalid > 0 {
					slog.Warn("skipped invalid rows", slog.String("file", f), slog.Int("count", invalid))
				}
				return nil
			})
		}
		return readers.Wait()
	})

	g.Go(func() error {
		for r := range rows {
			if err := in.write(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return in.stats, err
	}
	return in.stats, nil
}

func (in *ingester) write(ctx context.Context, r row) error {
	in.stats.Rows++
	if r.rule.Code == "" {
		in.stats.Invalid++
		return nil
	}
	if in.stats.Rows%progressEvery == 0 {
		slog.Info("ingest progress",
			slog.Uint64("rows", in.stats.Rows),
			slog.Uint64("written", in.stats.Written),
		)
	}

	if in.filter.TestAndAddString(r.rule.Code) {
		// Possibly seen before. Every earlier row has been written, so the
		// repository settles it.
		_, err := in.repo.FindByCode(ctx, r.rule.Code)
		switch {
		case err == nil:
			in.stats.Duplicates++
			return nil
		case !errors.Is(err, coupon.ErrInvalidCoupon):
			return errors.Wrapf(err, "look up %s", r.rule.Code)
		}
	}

	if err := in.repo.Upsert(ctx, &r.rule); err != nil {
		return errors.Wrapf(err, "%s:%d: upsert %s", r.file, r.line, r.rule.Code)
	}
	in.stats.Written++
	return nil
}

// streamFile decodes one gzip CSV file onto out. Rows that fail validation
// are sent with an empty code so they are counted, and also returned as a
// count for the per-file log line.
func streamFile(ctx context.Context, path string, out chan<- row) (invalid int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	cr := csv.NewReader(gz)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return invalid, nil
		}
		if err != nil {
			return invalid, errors.Wrapf(err, "line %d", line)
		}
		if line == 1 && isHeader(rec) {
			continue
		}

		r := row{file: path, line: line}
		rule, perr := parseRecord(rec)
		if perr != nil {
			invalid++
			slog.Debug("invalid row",
				slog.String("file", path),
				slog.Int("line", line),
				slog.String("error", perr.Error()),
			)
		} else {
			r.rule = rule
		}

		select {
		case out <- r:
		case <-ctx.Done():
			return invalid, ctx.Err()
		}
	}
}

func isHeader(rec []string) bool {
	return len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "code")
}

// parseRecord validates code,type,value[,min_order].
func parseRecord(rec []string) (coupon.Rule, error) {
	if len(rec) < 3 || len(rec) > 4 {
		return coupon.Rule{}, errors.Errorf("want 3 or 4 fields, got %d", len(rec))
	}

	code := strings.ToUpper(strings.TrimSpace(rec[0]))
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return coupon.Rule{}, errors.Errorf("code %q: length must be %d-%d", code, minCodeLen, maxCodeLen)
	}

	typ := coupon.DiscountType(strings.ToLower(strings.TrimSpace(rec[1])))
	if !typ.Valid() {
		return coupon.Rule{}, errors.Errorf("code %s: unknown discount type %q", code, rec[1])
	}

	value, err := decimal.NewFromString(strings.TrimSpace(rec[2]))
	if err != nil {
		return coupon.Rule{}, errors.Wrapf(err, "code %s: value", code)
	}
	if value.IsNegative() || (typ == coupon.DiscountPercentage && value.GreaterThan(hundred)) {
		return coupon.Rule{}, errors.Errorf("code %s: value %s out of range", code, value)
	}

	minOrder := decimal.Zero
	if len(rec) == 4 && strings.TrimSpace(rec[3]) != "" {
		minOrder, err = decimal.NewFromString(strings.TrimSpace(rec[3]))
		if err != nil {
			return coupon.Rule{}, errors.Wrapf(err, "code %s: min_order", code)
		}
		if minOrder.IsNegative() {
			return coupon.Rule{}, errors.Errorf("code %s: negative min_order", code)
		}
	}

	return coupon.Rule{
		Code:         code,
		DiscountType: typ,
		Value:        value,
		MinOrder:     minOrder,
		Description:  describe(typ, value, minOrder),
		Active:       true,
	}, nil
}

func describe(typ coupon.DiscountType, value, minOrder decimal.Decimal) string {
	var b strings.Builder
	switch typ {
	case coupon.DiscountPercentage:
		b.WriteString(value.String() + "% off")
	default:
		b.WriteString("₹" + value.StringFixed(2) + " off")
	}
	if minOrder.IsPositive() {
		b.WriteString(" on orders above ₹" + minOrder.StringFixed(2))
	}
	return b.String()
}
