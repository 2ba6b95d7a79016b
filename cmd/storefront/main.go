package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xenking/mishramart/internal/domain/pricing"
	"github.com/xenking/mishramart/internal/storage/redis"
	"github.com/xenking/mishramart/internal/storefront"
)

// config is the terminal storefront configuration (MISHRAMART_STOREFRONT_
// prefix, storefront.yaml).
type config struct {
	APIURL    string        `default:"http://localhost:8080" usage:"MishraMart API base URL" flag:"api-url"`
	RedisURL  string        `default:"" usage:"Redis URL for cart and preference storage; empty keeps state in memory" flag:"redis-url"`
	NotifyTTL time.Duration `default:"3s" usage:"How long notifications stay visible" flag:"notify-ttl"`
	Debug     bool          `default:"false" usage:"Log debug output to stderr"`
	Pricing   pricingConfig
	Timeouts  timeoutsConfig
}

type pricingConfig struct {
	DeliveryFee string `default:"50"   usage:"Flat delivery fee shown in the cart" flag:"delivery-fee"`
	TaxRate     string `default:"0.18" usage:"Tax rate shown in the cart" flag:"tax-rate"`
}

type timeoutsConfig struct {
	Catalog  time.Duration `default:"10s" usage:"Product list request timeout"`
	Coupon   time.Duration `default:"5s"  usage:"Coupon validation timeout"`
	Order    time.Duration `default:"30s" usage:"Order request timeout"`
	Wishlist time.Duration `default:"5s"  usage:"Wishlist request timeout"`
}

func loadConfig() (*config, error) {
	var cfg config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "MISHRAMART_STOREFRONT",
		Files:     []string{"storefront.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	return &cfg, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.OutputPaths = []string{"stderr"}
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}

// openRedis connects to url, or starts an in-process server when url is
// empty. The returned func releases both.
func openRedis(ctx context.Context, url string, lg *zap.Logger) (*goredis.Client, func(), error) {
	if url != "" {
		client, err := redis.NewClient(ctx, url)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, errors.Wrap(err, "start in-memory store")
	}
	lg.Debug("Using in-memory store", zap.String("addr", mr.Addr()))
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lg, err := newLogger(cfg.Debug)
	if err != nil {
		return errors.Wrap(err, "create logger")
	}
	defer func() { _ = lg.Sync() }()

	engine, err := parsePricing(cfg.Pricing)
	if err != nil {
		return err
	}

	rdb, closeStore, err := openRedis(ctx, cfg.RedisURL, lg)
	if err != nil {
		return err
	}
	defer closeStore()

	client := storefront.NewClient(storefront.ClientConfig{
		BaseURL: cfg.APIURL,
		Timeouts: storefront.Timeouts{
			Catalog:  cfg.Timeouts.Catalog,
			Coupon:   cfg.Timeouts.Coupon,
			Order:    cfg.Timeouts.Order,
			Wishlist: cfg.Timeouts.Wishlist,
		},
	})

	sh := newShell(bufio.NewScanner(os.Stdin), os.Stdout, client)
	session, err := storefront.Open(ctx, storefront.Options{
		API:       client,
		Store:     redis.NewCartStore(rdb),
		KV:        redis.NewKV(rdb),
		Engine:    engine,
		Widget:    &terminalWidget{sh: sh},
		NotifyTTL: cfg.NotifyTTL,
		Logger:    lg,
	})
	if err != nil {
		return errors.Wrap(err, "open session")
	}
	defer session.Close()

	sh.attach(session)
	return sh.Run(ctx)
}

func parsePricing(p pricingConfig) (pricing.Engine, error) {
	fee, err := parseAmount(p.DeliveryFee)
	if err != nil {
		return pricing.Engine{}, errors.Wrap(err, "delivery fee")
	}
	rate, err := parseAmount(p.TaxRate)
	if err != nil {
		return pricing.Engine{}, errors.Wrap(err, "tax rate")
	}
	return pricing.New(fee, rate), nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "storefront:", err)
		os.Exit(1)
	}
}
