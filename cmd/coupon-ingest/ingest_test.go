package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/mishramart/internal/domain/coupon"
)

type memRepo struct {
	mu      sync.Mutex
	rules   map[string]coupon.Rule
	upserts int
	failOn  string
}

func newMemRepo() *memRepo { return &memRepo{rules: map[string]coupon.Rule{}} }

func (r *memRepo) FindByCode(_ context.Context, code string) (*coupon.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[strings.ToUpper(code)]
	if !ok {
		return nil, coupon.ErrInvalidCoupon
	}
	return &rule, nil
}

func (r *memRepo) IncrementUses(context.Context, string) error { return nil }
func (r *memRepo) DecrementUses(context.Context, string) error { return nil }

func (r *memRepo) Upsert(_ context.Context, rule *coupon.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rule.Code == r.failOn {
		return errors.New("db down")
	}
	r.upserts++
	r.rules[rule.Code] = *rule
	return nil
}

func writeGz(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestIngester_Run(t *testing.T) {
	dir := t.TempDir()
	a := writeGz(t, dir, "a.csv.gz", "code,type,value,min_order\n"+
		"WELCOME10,percentage,10,\n"+
		"save200,fixed,200,999\n"+
		"BAD,fixed,1,0\n")
	b := writeGz(t, dir, "b.csv.gz", "DIWALI25,Percentage,25,1499\n"+
		"WELCOME10,percentage,50,0\n"+
		"HUGE100,percentage,150,0\n")

	repo := newMemRepo()
	in := newIngester(repo, 1000)
	stats, err := in.Run(context.Background(), []string{a, b}, 2)
	require.NoError(t, err)

	assert.Equal(t, Stats{Rows: 6, Written: 3, Duplicates: 1, Invalid: 2}, stats)
	assert.Equal(t, 3, repo.upserts)

	save := repo.rules["SAVE200"]
	assert.Equal(t, coupon.DiscountFixed, save.DiscountType)
	assert.True(t, save.MinOrder.Equal(decimal.NewFromInt(999)))
	assert.True(t, save.Active)

	diwali := repo.rules["DIWALI25"]
	assert.Equal(t, coupon.DiscountPercentage, diwali.DiscountType)
	assert.Equal(t, "25% off on orders above ₹1499.00", diwali.Description)

	assert.Contains(t, repo.rules, "WELCOME10")
}

func TestIngester_BloomFalsePositiveStillWritten(t *testing.T) {
	repo := newMemRepo()
	in := newIngester(repo, 1000)
	// Pre-load the filter so the first occurrence looks like a repeat.
	in.filter.AddString("FRESH123")

	require.NoError(t, in.write(context.Background(), row{rule: coupon.Rule{Code: "FRESH123", DiscountType: coupon.DiscountFixed}}))
	assert.Equal(t, uint64(1), in.stats.Written)
	assert.Zero(t, in.stats.Duplicates)
}

func TestIngester_WriteError(t *testing.T) {
	dir := t.TempDir()
	f := writeGz(t, dir, "a.csv.gz", "GOOD1234,fixed,10\nBROKEN12,fixed,10\nLATER123,fixed,10\n")

	repo := newMemRepo()
	repo.failOn = "BROKEN12"
	_, err := newIngester(repo, 100).Run(context.Background(), []string{f}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert BROKEN12")
}

func TestIngester_MissingFile(t *testing.T) {
	_, err := newIngester(newMemRepo(), 100).Run(context.Background(), []string{filepath.Join(t.TempDir(), "nope.gz")}, 1)
	require.Error(t, err)
}

func TestParseRecord(t *testing.T) {
	for _, tt := range []struct {
		name string
		rec  []string
		ok   bool
	}{
		{"Percentage", []string{"WELCOME10", "percentage", "10"}, true},
		{"FixedWithMin", []string{" save200 ", "FIXED", "200", "999"}, true},
		{"EmptyMin", []string{"SAVE200", "fixed", "200", ""}, true},
		{"ShortCode", []string{"ABC", "fixed", "1"}, false},
		{"UnknownType", []string{"BOGOFREE", "free_lowest", "0"}, false},
		{"BadValue", []string{"SAVE200", "fixed", "lots"}, false},
		{"Negative", []string{"SAVE200", "fixed", "-5"}, false},
		{"OverHundredPercent", []string{"SAVE200", "percentage", "101"}, false},
		{"NegativeMin", []string{"SAVE200", "fixed", "5", "-1"}, false},
		{"TooFewFields", []string{"SAVE200", "fixed"}, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := parseRecord(tt.rec)
			if !tt.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, strings.ToUpper(strings.TrimSpace(tt.rec[0])), rule.Code)
			assert.True(t, rule.Active)
		})
	}
}
