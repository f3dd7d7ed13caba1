package config

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "STAKEWATCH"

// Flag names double as viper keys; KebabToSnakeCase maps them to env vars
// under the STAKEWATCH prefix, e.g. database.host -> STAKEWATCH_DATABASE_HOST.
const (
	Debug = "debug"

	EventsFile        = "events.file"
	EventsBatchSize   = "events.batch-size"
	EventsStartHeight = "events.start-height"

	DatabaseHost       = "database.host"
	DatabasePort       = "database.port"
	DatabaseUser       = "database.user"
	DatabasePassword   = "database.password"
	DatabaseDbName     = "database.db_name"
	DatabaseSchemaName = "database.schema_name"

	DustCutoff    = "dust.cutoff"
	DustThreshold = "dust.threshold"

	IdentityEndpoint = "identity.endpoint"

	SeedFile = "seed.file"

	TokenomicBudgetPerBlock = "tokenomic.budget-per-block"
	TokenomicTreasuryRatio  = "tokenomic.treasury-ratio"
	TokenomicVMax           = "tokenomic.v-max"
	TokenomicRe             = "tokenomic.re"
	TokenomicK              = "tokenomic.k"
	TokenomicPhaRate        = "tokenomic.pha-rate"

	DataDogStatsdEnabled    = "datadog.statsd.enabled"
	DataDogStatsdUrl        = "datadog.statsd.url"
	DataDogStatsdSampleRate = "datadog.statsd.sample-rate"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"
)

func KebabToSnakeCase(str string) string {
	str = strings.ReplaceAll(str, "-", "_")
	str = strings.ReplaceAll(str, ".", "_")
	return str
}

type Config struct {
	Debug bool

	EventsConfig     EventsConfig
	DatabaseConfig   DatabaseConfig
	DustConfig       DustConfig
	IdentityConfig   IdentityConfig
	SeedConfig       SeedConfig
	TokenomicConfig  TokenomicConfig
	DataDogConfig    DataDogConfig
	PrometheusConfig PrometheusConfig
}

// TokenomicConfig carries the fallback tokenomic parameters, re-read whenever
// the chain announces a parameter change. Values are decimal strings.
type TokenomicConfig struct {
	BudgetPerBlock string
	TreasuryRatio  string
	VMax           string
	Re             string
	K              string
	PhaRate        string
}

type EventsConfig struct {
	// File is a newline-delimited JSON event dump in block order.
	File      string
	BatchSize int
	// StartHeight is the first block height to apply; earlier events in the
	// dump are skipped. Zero defers to the committed height in the database.
	StartHeight uint64
}

type DatabaseConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	DbName     string
	SchemaName string
}

type DustConfig struct {
	// Cutoff is RFC3339; empty disables the one-time dust compaction.
	Cutoff    string
	Threshold string
}

func (dc *DustConfig) ParseCutoff() (*time.Time, error) {
	if dc.Cutoff == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, dc.Cutoff)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (dc *DustConfig) ParseThreshold() (decimal.Decimal, error) {
	if dc.Threshold == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(dc.Threshold)
}

type IdentityConfig struct {
	Endpoint string
}

type SeedConfig struct {
	File string
}

type DataDogConfig struct {
	StatsdConfig StatsdConfig
}

type StatsdConfig struct {
	Enabled    bool
	Url        string
	SampleRate float64
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

func NewConfig() *Config {
	return &Config{
		Debug: viper.GetBool(KebabToSnakeCase(Debug)),

		EventsConfig: EventsConfig{
			File:        viper.GetString(KebabToSnakeCase(EventsFile)),
			BatchSize:   viper.GetInt(KebabToSnakeCase(EventsBatchSize)),
			StartHeight: viper.GetUint64(KebabToSnakeCase(EventsStartHeight)),
		},

		DatabaseConfig: DatabaseConfig{
			Host:       viper.GetString(KebabToSnakeCase(DatabaseHost)),
			Port:       viper.GetInt(KebabToSnakeCase(DatabasePort)),
			User:       viper.GetString(KebabToSnakeCase(DatabaseUser)),
			Password:   viper.GetString(KebabToSnakeCase(DatabasePassword)),
			DbName:     viper.GetString(KebabToSnakeCase(DatabaseDbName)),
			SchemaName: viper.GetString(KebabToSnakeCase(DatabaseSchemaName)),
		},

		DustConfig: DustConfig{
			Cutoff:    viper.GetString(KebabToSnakeCase(DustCutoff)),
			Threshold: viper.GetString(KebabToSnakeCase(DustThreshold)),
		},

		IdentityConfig: IdentityConfig{
			Endpoint: viper.GetString(KebabToSnakeCase(IdentityEndpoint)),
		},

		SeedConfig: SeedConfig{
			File: viper.GetString(KebabToSnakeCase(SeedFile)),
		},

		TokenomicConfig: TokenomicConfig{
			BudgetPerBlock: viper.GetString(KebabToSnakeCase(TokenomicBudgetPerBlock)),
			TreasuryRatio:  viper.GetString(KebabToSnakeCase(TokenomicTreasuryRatio)),
			VMax:           viper.GetString(KebabToSnakeCase(TokenomicVMax)),
			Re:             viper.GetString(KebabToSnakeCase(TokenomicRe)),
			K:              viper.GetString(KebabToSnakeCase(TokenomicK)),
			PhaRate:        viper.GetString(KebabToSnakeCase(TokenomicPhaRate)),
		},

		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled:    viper.GetBool(KebabToSnakeCase(DataDogStatsdEnabled)),
				Url:        viper.GetString(KebabToSnakeCase(DataDogStatsdUrl)),
				SampleRate: viper.GetFloat64(KebabToSnakeCase(DataDogStatsdSampleRate)),
			},
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(KebabToSnakeCase(PrometheusEnabled)),
			Port:    viper.GetInt(KebabToSnakeCase(PrometheusPort)),
		},
	}
}
