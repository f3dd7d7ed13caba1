package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/poolhouse-labs/stakewatch/internal/config"
	"github.com/poolhouse-labs/stakewatch/internal/logger"
	"github.com/poolhouse-labs/stakewatch/internal/metrics"
	"github.com/poolhouse-labs/stakewatch/internal/metrics/prometheus"
	"github.com/poolhouse-labs/stakewatch/internal/shutdown"
	"github.com/poolhouse-labs/stakewatch/pkg/chain"
	"github.com/poolhouse-labs/stakewatch/pkg/events"
	"github.com/poolhouse-labs/stakewatch/pkg/identity"
	"github.com/poolhouse-labs/stakewatch/pkg/pipeline"
	"github.com/poolhouse-labs/stakewatch/pkg/postgres"
	"github.com/poolhouse-labs/stakewatch/pkg/postgres/migrations"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/aggregator"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/handlers"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/snapshots"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/store"
	"github.com/poolhouse-labs/stakewatch/pkg/seed"
	pgStorage "github.com/poolhouse-labs/stakewatch/pkg/storage/postgres"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Project the configured event dump into postgres",
	Run: func(cmd *cobra.Command, args []string) {
		initRunCmd(cmd)
		cfg := config.NewConfig()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		metricsClients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup metrics clients", zap.Error(err))
		}
		sink, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, metricsClients)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup metrics sink", zap.Error(err))
		}

		promShutdown := make(chan bool)
		if cfg.PrometheusConfig.Enabled {
			promServer := prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{
				Port: cfg.PrometheusConfig.Port,
			}, l)
			if err := promServer.Start(promShutdown); err != nil {
				l.Sugar().Fatalw("Failed to start prometheus server", zap.Error(err))
			}
		}

		pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
		pgConfig.CreateDbIfNotExists = true

		pg, err := postgres.NewPostgres(pgConfig)
		if err != nil {
			l.Fatal("Failed to setup postgres connection", zap.Error(err))
		}

		grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
		if err != nil {
			l.Fatal("Failed to create gorm instance", zap.Error(err))
		}

		migrator := migrations.NewMigrator(pg.Db, grm, l)
		if err = migrator.MigrateAll(); err != nil {
			l.Fatal("Failed to migrate", zap.Error(err))
		}

		persistence := pgStorage.NewPostgresPersistence(grm, l)
		ds, err := persistence.LoadDataset()
		if err != nil {
			l.Sugar().Fatalw("Failed to load dataset", zap.Error(err))
		}

		entityStore := store.NewEntityStore(l)
		entityStore.Hydrate(ds)

		if !entityStore.HasGlobalState() && cfg.SeedConfig.File != "" {
			dump, err := seed.Load(cfg.SeedConfig.File)
			if err != nil {
				l.Sugar().Fatalw("Failed to load seed dump", zap.Error(err))
			}
			if err := seed.Apply(entityStore, dump, l); err != nil {
				l.Sugar().Fatalw("Failed to apply seed dump", zap.Error(err))
			}
		}

		tokenomics, err := tokenomicReaderFromConfig(&cfg.TokenomicConfig)
		if err != nil {
			l.Sugar().Fatalw("Failed to parse tokenomic parameters", zap.Error(err))
		}

		dustCutoff, err := cfg.DustConfig.ParseCutoff()
		if err != nil {
			l.Sugar().Fatalw("Failed to parse dust cutoff", zap.Error(err))
		}
		dustThreshold, err := cfg.DustConfig.ParseThreshold()
		if err != nil {
			l.Sugar().Fatalw("Failed to parse dust threshold", zap.Error(err))
		}

		var identityClient identity.Client = identity.NoopClient{}
		if cfg.IdentityConfig.Endpoint != "" {
			identityClient = identity.NewHttpClient(cfg.IdentityConfig.Endpoint, l)
		}

		eventsFile, err := os.Open(cfg.EventsConfig.File)
		if err != nil {
			l.Sugar().Fatalw("Failed to open events file",
				zap.String("file", cfg.EventsConfig.File),
				zap.Error(err),
			)
		}
		defer eventsFile.Close()

		var latestSnap = ds.LatestGlobalStateSnapshot

		dispatcher := handlers.NewDispatcher(entityStore, tokenomics, l)
		dispatcher.StartFrom(cfg.EventsConfig.StartHeight)

		p := pipeline.NewPipeline(
			events.NewJSONLinesSource(eventsFile),
			entityStore,
			dispatcher,
			aggregator.NewAggregator(&aggregator.Config{
				DustCutoff:    dustCutoff,
				DustThreshold: dustThreshold,
			}, l),
			snapshots.NewScheduler(latestSnap, l),
			identityClient,
			persistence,
			sink,
			cfg.EventsConfig.BatchSize,
			l,
		)

		done := make(chan error, 1)
		go func() {
			done <- p.Run(ctx)
		}()

		l.Sugar().Info("Started stakewatch")

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()
		select {
		case sig := <-gracefulShutdown:
			l.Sugar().Infof("caught signal %v, shutting down", sig)
			cancel()
			<-done
		case err := <-done:
			if err != nil && err != context.Canceled {
				l.Sugar().Fatalw("Pipeline failed", zap.Error(err))
			}
		}
		if cfg.PrometheusConfig.Enabled {
			promShutdown <- true
		}
		time.Sleep(time.Second)
		l.Sugar().Info("Exiting")
	},
}

func tokenomicReaderFromConfig(tc *config.TokenomicConfig) (*chain.StaticTokenomicReader, error) {
	parse := func(s string) (decimal.Decimal, error) {
		if s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	}

	params := chain.TokenomicParameters{}
	var err error
	if params.BudgetPerBlock, err = parse(tc.BudgetPerBlock); err != nil {
		return nil, err
	}
	if params.TreasuryRatio, err = parse(tc.TreasuryRatio); err != nil {
		return nil, err
	}
	if params.VMax, err = parse(tc.VMax); err != nil {
		return nil, err
	}
	if params.Re, err = parse(tc.Re); err != nil {
		return nil, err
	}
	if params.K, err = parse(tc.K); err != nil {
		return nil, err
	}
	if params.PhaRate, err = parse(tc.PhaRate); err != nil {
		return nil, err
	}
	return &chain.StaticTokenomicReader{Params: params}, nil
}

func initRunCmd(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
