// Package config loads sequencer.toml plus MOJAVE_-prefixed environment
// overrides via koanf, the Go analogue of the source's clap/figment
// config layering and a direct port of the teacher's InitConfig.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

const envPrefix = "MOJAVE_"

// Load reads configPath as TOML, then layers MOJAVE_-prefixed
// environment variables over it (MOJAVE_RPC_PORT -> "rpc.port").
func Load(logger *zerolog.Logger, configPath string) (*koanf.Koanf, error) {
	ko := koanf.New(".")

	if err := ko.Load(file.Provider(configPath), toml.Parser()); err != nil {
		return nil, err
	}

	if err := ko.Load(env.Provider(envPrefix, ".", func(s string) string {
		trimmed := strings.TrimPrefix(s, envPrefix)
		return strings.Replace(strings.ToLower(trimmed), "_", ".", -1)
	}), nil); err != nil {
		logger.Warn().Err(err).Msg("failed to load environment variables")
	}

	logger.Info().Str("config_file", configPath).Msg("configuration loaded successfully")
	return ko, nil
}

// Node is the fully-resolved set of values cmd/sequencer needs, decoded
// out of the koanf tree once at startup so the rest of the process deals
// in typed fields instead of string-keyed lookups.
type Node struct {
	DataDir string

	RPCAddress string

	MetricsAddress string
	HealthAddress  string

	SequencerURLs []string
	FullNodeURLs  []string
	ProverURLs    []string

	SigningScheme string
	SigningKeyHex string

	BlockInterval time.Duration
	BatchInterval time.Duration

	PostgresDSN string

	NatsURL string

	ClusterMode bool
	Namespace   string
	LeaseName   string
	LeaseTTL    time.Duration

	ProverType string
	SelfURL    string

	LogLevel string
}

// FromKoanf decodes a Node out of the loaded configuration tree,
// applying the same defaults cmd/sequencer/main.go would otherwise
// sprinkle inline.
func FromKoanf(ko *koanf.Koanf) Node {
	n := Node{
		DataDir:        stringOr(ko, "node.datadir", "./data"),
		RPCAddress:     stringOr(ko, "rpc.address", ":8551"),
		MetricsAddress: stringOr(ko, "metrics.address", ":9090"),
		HealthAddress:  stringOr(ko, "health.address", ":8552"),
		SequencerURLs:  stringsOr(ko, "client.sequencer_urls"),
		FullNodeURLs:   stringsOr(ko, "client.fullnode_urls"),
		ProverURLs:     stringsOr(ko, "client.prover_urls"),
		SigningScheme:  stringOr(ko, "signing.scheme", "secp256k1"),
		SigningKeyHex:  ko.String("signing.key"),
		BlockInterval:  durationOr(ko, "block.interval", 1000*time.Millisecond),
		BatchInterval:  durationOr(ko, "batch.interval", 100*time.Second),
		PostgresDSN:    ko.String("postgres.dsn"),
		NatsURL:        stringOr(ko, "nats.url", "nats://127.0.0.1:4222"),
		ClusterMode:    ko.Bool("leader.cluster_mode"),
		Namespace:      stringOr(ko, "leader.namespace", "default"),
		LeaseName:      stringOr(ko, "leader.lease_name", "sequencer-leader"),
		LeaseTTL:       durationOr(ko, "leader.lease_ttl", 15*time.Second),
		ProverType:     stringOr(ko, "prover.type", "default"),
		SelfURL:        ko.String("rpc.self_url"),
		LogLevel:       stringOr(ko, "logging.level", "info"),
	}
	return n
}

func stringOr(ko *koanf.Koanf, key, fallback string) string {
	if v := ko.String(key); v != "" {
		return v
	}
	return fallback
}

func stringsOr(ko *koanf.Koanf, key string) []string {
	return ko.Strings(key)
}

func durationOr(ko *koanf.Koanf, key string, fallback time.Duration) time.Duration {
	if d := ko.Duration(key); d != 0 {
		return d
	}
	return fallback
}
