package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fnproject/rust-images/internal/buildrun"
	"github.com/fnproject/rust-images/internal/imagebuild"
	"github.com/fnproject/rust-images/internal/toolchain"
	"github.com/fnproject/rust-images/pkg/dockerhub"
	api "github.com/fnproject/rust-images/pkg/restapi"

	awsconf "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Listen to termination signals.
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Initialize config.
	config, err := LoadConfig()
	if err != nil {
		zlog.Fatal().Err(err).Msg("config cannot be loaded")
	}

	// Initialize logger.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if config.LogFormat == PrettyLogFormat {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	lvl, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid log level")
	}

	zlog.Logger = zlog.Logger.Level(lvl)
	logger := zlog.Logger

	// Initialize the toolchain tag cache.
	hubCli := dockerhub.NewClient(dockerhub.DockerHubURL, dockerhub.DefaultMaxRPS, dockerhub.Auth(config.Toolchain.Auth))
	tagStorage := toolchain.NewCache(ctx, toolchain.Config{
		Repositories:   config.Toolchain.Repositories,
		OS:             config.Toolchain.OS,
		Architecture:   config.Toolchain.Architecture,
		ExpirationTime: config.Toolchain.CacheExpirationTime,
	}, logger, hubCli)
	tagStorage.RunBackgroundUpdate()

	// Create the build pipeline.
	pcfg := imagebuild.DefaultConfig
	pcfg.Namespace = config.Namespace
	pcfg.ImagesRoot = config.ImagesRoot
	pcfg.DaemonURL = config.Docker.DaemonURL
	pcfg.BuildTimeout = config.Docker.BuildTimeout

	pipeline, err := imagebuild.NewPipeline(logger, pcfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to create the build pipeline")
	}

	// Initialize the REST server.
	runRepo := newRunRepository(ctx, config, logger)

	router := api.NewRouter(api.RouterOpts{
		Logger:          logger,
		Builder:         pipeline,
		TagStorage:      tagStorage,
		RunRepo:         runRepo,
		VerifyToolchain: config.Toolchain.Verify,
		Timeout:         config.API.ServerTimeout,
	})

	srv := &http.Server{
		Addr:              config.API.ListeningAddress,
		Handler:           router,
		ReadTimeout:       20 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zlog.Info().Str("address", config.API.ListeningAddress).Msg("starting the server")

		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("server listen failed")
		}
	}()

	// Export Prometheus metrics.
	go func() {
		zlog.Info().Str("address", config.PrometheusExportAddress).Msg("starting the prometheus exporter")

		metricSrv := &http.Server{
			Addr:              config.PrometheusExportAddress,
			Handler:           http.DefaultServeMux,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
		}

		http.DefaultServeMux.Handle("/metrics", promhttp.Handler())
		err := metricSrv.ListenAndServe()
		if err != nil {
			zlog.Error().Err(err).Msg("prometheus exporter failed")
		}
	}()

	<-stop
	cancel()

	shutdownCtx, shutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdown()

	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		zlog.Error().Err(err).Msg("server shutdown failed")
	}
}

func newRunRepository(ctx context.Context, config *Config, logger zerolog.Logger) buildrun.Repository {
	if config.AWS.BuildRunsTable == "" {
		logger.Info().Msg("aws.build_runs_table is not set, build runs are not recorded")
		return buildrun.NopRepository{}
	}

	// Load AWS credentials.
	var awsOpts []func(*awsconf.LoadOptions) error
	if config.AWS.AccessKeyID != "" {
		// Load AWS config with credentials when AccessKeyID is not empty.
		// Otherwise, we let SDK to pick credentials from available sources automatically.
		awsOpts = append(awsOpts, awsconf.WithCredentialsProvider(config))
	}

	awsOpts = append(awsOpts, awsconf.WithRegion(config.AWS.Region))

	awsConfig, err := awsconf.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load AWS config")
	}

	return buildrun.NewRepository(ctx, dynamodb.NewFromConfig(awsConfig), config.AWS.BuildRunsTable)
}
