// Command token issues bearer tokens for the history endpoints, signed with
// the configured JWT key.
//
//	token -sub ops-dashboard -ttl 720h
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/terracast/terracast/internal/auth"
	"github.com/terracast/terracast/internal/config"
)

func main() {
	subject := flag.String("sub", "", "token subject (required)")
	scopes := flag.String("scopes", auth.ScopeHistoryRead, "comma-separated scopes")
	ttl := flag.Duration("ttl", auth.DefaultTokenExpiry, "token lifetime")
	flag.Parse()

	if *subject == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load configuration")
	}

	svc := auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.Auth.SigningKey,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
	})

	token, expiresAt, err := svc.GenerateAccessToken(*subject, splitScopes(*scopes), *ttl)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to issue token")
	}

	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
	fmt.Println(token)
}

func splitScopes(s string) []string {
	var out []string
	for _, scope := range strings.Split(s, ",") {
		if scope = strings.TrimSpace(scope); scope != "" {
			out = append(out, scope)
		}
	}
	return out
}
