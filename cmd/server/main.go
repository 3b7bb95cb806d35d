package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"insurelane/internal/idempotency"
	"insurelane/internal/journal"
	"insurelane/internal/ledger"
	"insurelane/internal/server"
	"insurelane/internal/webhooks"
	"insurelane/pkg/authn"
	"insurelane/pkg/db"

	"github.com/caarlos0/env/v11"
)

type config struct {
	Port          string        `env:"SERVICE_PORT" envDefault:"8080"`
	AdminToken    string        `env:"ADMIN_TOKEN,required"`
	DatabaseURL   string        `env:"DATABASE_URL"`
	WebhookURL    string        `env:"WEBHOOK_URL"`
	WebhookSecret string        `env:"WEBHOOK_SECRET"`
	RequestTTL    time.Duration `env:"REQUEST_TTL" envDefault:"720h"`
	DevFaucet     bool          `env:"DEV_FAUCET"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("parse env: %v", err)
	}

	ctx := context.Background()

	var sinks []ledger.Sink
	var jnl *journal.Journal
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		jnl = journal.New(pool)
		if err := jnl.EnsureSchema(ctx); err != nil {
			log.Fatalf("journal schema: %v", err)
		}
		sinks = append(sinks, jnl)
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, webhooks.NewDispatcher(cfg.WebhookURL, cfg.WebhookSecret))
	}

	l := ledger.New(ledger.Config{
		Admin:      authn.IdentityFromToken(cfg.AdminToken),
		RequestTTL: cfg.RequestTTL,
	}, sinks...)

	srv := server.New(l, jnl, idempotency.NewMemoryStore(), cfg.DevFaucet)

	log.Printf("insurance ledger listening on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, srv.Router()); err != nil {
		log.Fatal(err)
	}
}
