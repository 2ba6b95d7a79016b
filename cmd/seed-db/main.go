package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/mishramart/internal/domain/auth"
	"github.com/xenking/mishramart/internal/domain/coupon"
	"github.com/xenking/mishramart/internal/domain/product"
	"github.com/xenking/mishramart/internal/storage/postgres"
)

const devSessionTTL = 30 * 24 * time.Hour

type productJSON struct {
	ID          string          `json:"_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	SubCategory string          `json:"subCategory"`
	Price       decimal.Decimal `json:"price"`
	Sizes       []string        `json:"sizes"`
	Images      []string        `json:"images"`
	Bestseller  bool            `json:"bestseller"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type options struct {
	databaseURL  string
	productsFile string
	apiKey       string
	pepper       string
	devToken     string
	devUserID    string
	devEmail     string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&opts.apiKey, "api-key", "", "admin API key to seed (or MISHRAMART_SEED_API_KEY env)")
	flag.StringVar(&opts.pepper, "api-key-pepper", "", "HMAC pepper for key and token hashing (or MISHRAMART_API_KEY_PEPPER env)")
	flag.StringVar(&opts.devToken, "dev-session-token", "", "if set, seed a shopper session with this token")
	flag.StringVar(&opts.devUserID, "dev-user-id", "dev-user", "user id of the seeded shopper session")
	flag.StringVar(&opts.devEmail, "dev-email", "dev@mishramart.local", "email of the seeded shopper session")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.apiKey == "" {
		opts.apiKey = os.Getenv("MISHRAMART_SEED_API_KEY")
	}
	if opts.apiKey == "" {
		slog.Error("API key is required: set --api-key or MISHRAMART_SEED_API_KEY")
		os.Exit(1)
	}
	if opts.pepper == "" {
		opts.pepper = os.Getenv("MISHRAMART_API_KEY_PEPPER")
	}
	if opts.pepper == "" {
		slog.Error("pepper is required: set --api-key-pepper or MISHRAMART_API_KEY_PEPPER")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), opts.productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	pepper := []byte(opts.pepper)
	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), opts.apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	if opts.devToken != "" {
		if err := seedSession(ctx, pool, opts, pepper); err != nil {
			return errors.Wrap(err, "seed dev session")
		}
	}

	return nil
}

func seedProducts(ctx context.Context, repo product.Repository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	now := time.Now().UTC()
	for _, p := range products {
		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if err := repo.Upsert(ctx, &product.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Category:    p.Category,
			SubCategory: p.SubCategory,
			Price:       p.Price,
			Sizes:       p.Sizes,
			Images:      p.Images,
			Bestseller:  p.Bestseller,
			CreatedAt:   createdAt,
		}); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, repo coupon.Repository) error {
	slog.Info("seeding coupons")

	festiveEnd := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)
	coupons := []coupon.Rule{
		{
			Code:         "WELCOME10",
			DiscountType: coupon.DiscountPercentage,
			Value:        decimal.NewFromInt(10),
			MaxDiscount:  decimal.NewFromInt(200),
			Description:  "10% off your first order, up to ₹200",
			Active:       true,
		},
		{
			Code:         "SAVE200",
			DiscountType: coupon.DiscountFixed,
			Value:        decimal.NewFromInt(200),
			MinOrder:     decimal.NewFromInt(999),
			Description:  "₹200 off orders above ₹999",
			Active:       true,
		},
		{
			Code:         "FESTIVE25",
			DiscountType: coupon.DiscountPercentage,
			Value:        decimal.NewFromInt(25),
			MaxDiscount:  decimal.NewFromInt(500),
			MinOrder:     decimal.NewFromInt(1499),
			Description:  "Festive sale: 25% off, up to ₹500",
			ValidUntil:   &festiveEnd,
			MaxUses:      1000,
			Active:       true,
		},
	}

	for i := range coupons {
		c := &coupons[i]
		if err := repo.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("description", c.Description))
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo auth.Repository, apiKey string, pepper []byte) error {
	slog.Info("seeding admin API key")

	if err := repo.Upsert(ctx, &auth.APIKeyInfo{
		ID:      "admin",
		KeyHash: auth.Hash(pepper, apiKey),
		Name:    "Admin panel key",
		Scopes:  []string{auth.ScopeAdmin},
	}); err != nil {
		return errors.Wrap(err, "upsert admin API key")
	}

	slog.Info("upserted API key", slog.String("id", "admin"), slog.String("name", "Admin panel key"))

	return nil
}

func seedSession(ctx context.Context, pool *pgxpool.Pool, opts options, pepper []byte) error {
	expires := time.Now().Add(devSessionTTL).UTC()
	if err := postgres.NewSessionRepository(pool).CreateSession(ctx, &auth.Session{
		TokenHash: auth.Hash(pepper, opts.devToken),
		UserID:    opts.devUserID,
		Email:     opts.devEmail,
		ExpiresAt: expires,
	}); err != nil {
		return errors.Wrap(err, "create session")
	}

	slog.Info("created dev session",
		slog.String("user_id", opts.devUserID),
		slog.Time("expires_at", expires),
	)

	return nil
}
