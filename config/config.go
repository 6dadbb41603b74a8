package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

type Config struct {
	CockroachURL              string        `ff:"long: cockroach-url, default: postgresql://root@127.0.0.1:26257/defaultdb?sslmode=disable, usage: URL for the CockroachDB database"`
	Port                      uint32        `ff:"long: port, short: p, default: 4000, usage: Port for the HTTP API server"`
	RelayPort                 uint32        `ff:"long: relay-port, default: 4001, usage: Port for the websocket relay server"`
	NATSURL                   string        `ff:"long: nats-url, default: nats://127.0.0.1:4222, usage: URL for the NATS server"`
	TokenSecret               string        `ff:"long: token-secret, usage: Secret used to sign and verify access tokens"`
	AllowedOrigins            string        `ff:"long: allowed-origins, usage: Comma separated list of allowed websocket origins. Empty allows all"`
	RelayAllowUnauthenticated bool          `ff:"long: relay-allow-unauthenticated, default: false, usage: Accept websocket connections without a valid token"`
	BackgroundTimeout         time.Duration `ff:"long: background-timeout, default: 15s, usage: Timeout for background operations"`
}

func (cfg Config) AllowedOriginsList() []string {
	if cfg.AllowedOrigins == "" {
		return nil
	}

	var out []string
	for _, origin := range strings.Split(cfg.AllowedOrigins, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	fs := ff.NewFlagSetFrom("nebula", &cfg)
	err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("NEBULA"))
	if errors.Is(err, ff.ErrHelp) {
		fmt.Println(ffhelp.Flags(fs))
		os.Exit(0)
	}
	if err != nil {
		return cfg, err
	}

	if cfg.TokenSecret == "" {
		return cfg, errors.New("token secret is required")
	}

	return cfg, nil
}
