package cmd

import (
	"os"
	"strings"

	"github.com/poolhouse-labs/stakewatch/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "stakewatch",
	Short: "Stakewatch projects the staking economy's event stream into a queryable postgres model",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)

	rootCmd.PersistentFlags().String(config.EventsFile, "", `Path to the NDJSON event dump to project`)
	rootCmd.PersistentFlags().Int(config.EventsBatchSize, 5000, `Minimum events per batch; batches always extend to a block boundary`)
	rootCmd.PersistentFlags().Uint64(config.EventsStartHeight, 0, `First block height to apply; 0 resumes from the committed height`)

	rootCmd.PersistentFlags().String(config.DatabaseHost, "localhost", `PostgreSQL host`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, "stakewatch", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String(config.DatabaseDbName, "stakewatch", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String(config.DatabaseSchemaName, "", `PostgreSQL schema name (default "public")`)

	rootCmd.PersistentFlags().String(config.DustCutoff, "", `RFC3339 cutoff for the one-time stale withdrawal compaction; empty disables it`)
	rootCmd.PersistentFlags().String(config.DustThreshold, "0.01", `Withdrawing-share threshold below which a stale withdrawal counts as dust`)

	rootCmd.PersistentFlags().String(config.IdentityEndpoint, "", `Identity service endpoint; empty leaves identities unresolved`)

	rootCmd.PersistentFlags().String(config.SeedFile, "", `Seed dump to bootstrap an empty projection from`)

	rootCmd.PersistentFlags().String(config.TokenomicBudgetPerBlock, "720", `Initial budget per block`)
	rootCmd.PersistentFlags().String(config.TokenomicTreasuryRatio, "0.2", `Initial treasury ratio`)
	rootCmd.PersistentFlags().String(config.TokenomicVMax, "30000", `Initial vMax`)
	rootCmd.PersistentFlags().String(config.TokenomicRe, "1.5", `Initial re`)
	rootCmd.PersistentFlags().String(config.TokenomicK, "50", `Initial k`)
	rootCmd.PersistentFlags().String(config.TokenomicPhaRate, "1", `Initial pha rate`)

	rootCmd.PersistentFlags().Bool(config.DataDogStatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogStatsdUrl, "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Float64(config.DataDogStatsdSampleRate, 1.0, `The sample rate to use for statsd metrics`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runVersionCmd)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}
