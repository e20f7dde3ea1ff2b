package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"

	"github.com/aussiebroadwan/dormant/internal/dormant/app"
	"github.com/aussiebroadwan/dormant/internal/dormant/directory"
	"github.com/aussiebroadwan/dormant/internal/dormant/service"
	"github.com/aussiebroadwan/dormant/internal/dormant/store"
	"github.com/aussiebroadwan/dormant/internal/dormant/store/drivers/flatfile"
	"github.com/aussiebroadwan/dormant/internal/dormant/store/drivers/sqlite"
)

// dormantctl mints action-link tokens so operators can mail confirmation
// links. It shares the service configuration through the same environment
// variables and secret file.
func main() {
	user := flag.String("user", "", "username to mint a token for (required)")
	baseURL := flag.String("base-url", "http://localhost:8080", "public base URL of the service")
	flag.Parse()

	if *user == "" {
		flag.Usage()
		os.Exit(2)
	}
	if !directory.ValidUsername(*user) {
		log.Fatalf("unsafe username %q", *user)
	}

	cfg := app.LoadConfig()

	secret, err := app.LoadSecret(cfg.SecretFile)
	if err != nil {
		log.Fatalf("failed to load secret: %v", err)
	}

	// The opaque strategy records issued tokens server-side, so it needs
	// the same store the service runs against.
	var tokenStore store.ActionTokens
	if cfg.TokenStrategy == "opaque" {
		st, err := openStore(cfg)
		if err != nil {
			log.Fatalf("failed to open store: %v", err)
		}
		defer st.Close()
		tokenStore = st.ActionTokens()
	}

	tokens, err := service.NewTokenStrategy(
		cfg.TokenStrategy, secret, cfg.TokenWindow, cfg.TokenFutureDrift, tokenStore,
	)
	if err != nil {
		log.Fatalf("failed to build token strategy: %v", err)
	}

	token, err := tokens.Issue(context.Background(), *user)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}

	q := url.Values{"user": {*user}, "token": {token}}
	fmt.Printf("token:   %s\n", token)
	fmt.Printf("confirm: %s/confirm?%s&response=yes\n", *baseURL, q.Encode())
	fmt.Printf("decline: %s/confirm?%s&response=no\n", *baseURL, q.Encode())
}

func openStore(cfg app.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "flatfile", "":
		return flatfile.NewStore(cfg.StateDir)
	case "sqlite":
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", cfg.DatabaseFile)
		st, err := sqlite.NewStore(dsn)
		if err != nil {
			return nil, err
		}
		if err := st.ApplyMigrations(); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
