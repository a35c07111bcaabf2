// Command token prints a signed API token for the given subject.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/spendtrack/internal/auth"
	"github.com/MrJamesThe3rd/spendtrack/internal/config"
)

func main() {
	subject := flag.String("sub", "", "subject recorded as the audit actor")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if !issuer.Enabled() {
		slog.Error("AUTH_JWT_SECRET is not set")
		os.Exit(1)
	}

	token, err := issuer.Issue(*subject)
	if err != nil {
		slog.Error("failed to issue token", "error", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
