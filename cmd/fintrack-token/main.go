// Command fintrack-token mints a bearer token for local development against
// the JWT_SECRET the server is configured with.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/middleware/auth"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg)

	subject := flag.String("user", "", "user id placed in the sub claim (required)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *subject == "" {
		flag.Usage()
		os.Exit(2)
	}
	if len(cfg.JWTSecret) == 0 {
		logger.Error("JWT_SECRET is not set")
		os.Exit(1)
	}

	token, err := auth.SignToken([]byte(cfg.JWTSecret), *subject, cfg.JWTIssuer, *ttl, time.Now())
	if err != nil {
		logger.Error("Failed to sign token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
