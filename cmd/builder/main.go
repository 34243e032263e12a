package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fnproject/rust-images/internal/buildrun"
	"github.com/fnproject/rust-images/internal/imagebuild"
	"github.com/fnproject/rust-images/internal/toolchain"
	"github.com/fnproject/rust-images/pkg/dockerhub"

	awsconf "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	version := strings.TrimSpace(flag.Arg(0))
	if version == "" {
		printUsage()
		os.Exit(2)
	}

	// Listen to termination signals.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

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

	if config.Toolchain.Verify {
		verifyToolchainVersion(ctx, config, logger, version)
	}

	pcfg := imagebuild.DefaultConfig
	pcfg.Namespace = config.Namespace
	pcfg.ImagesRoot = config.ImagesRoot
	pcfg.DaemonURL = config.Docker.DaemonURL
	pcfg.BuildTimeout = config.Docker.BuildTimeout

	pipeline, err := imagebuild.NewPipeline(logger, pcfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to create the build pipeline")
	}

	run := buildrun.New(version)

	result, buildErr := pipeline.Run(ctx, version)
	if buildErr != nil {
		run.Finish(nil, buildErr)
	} else {
		run.Finish(result.ImageTags, nil)
	}

	saveRun(ctx, config, logger, run)

	if buildErr != nil {
		zlog.Fatal().Err(buildErr).Str("version", version).Msg("build failed")
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "usage: %s <rust-version>\n", filepath.Base(os.Args[0]))
}

// verifyToolchainVersion makes sure the requested version exists upstream
// before any image is built. Failures are fatal: building against
// a non-existing toolchain tag would fail midway anyway.
func verifyToolchainVersion(ctx context.Context, config *Config, logger zerolog.Logger, version string) {
	hubCli := dockerhub.NewClient(dockerhub.DockerHubURL, dockerhub.DefaultMaxRPS, dockerhub.Auth(config.Toolchain.Auth))
	tags := toolchain.NewCache(ctx, toolchain.Config{
		Repositories:   config.Toolchain.Repositories,
		OS:             config.Toolchain.OS,
		Architecture:   config.Toolchain.Architecture,
		ExpirationTime: config.Toolchain.CacheExpirationTime,
	}, logger, hubCli)

	err := tags.Refresh()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to fetch upstream toolchain tags")
	}

	if !tags.Exists(version) {
		zlog.Fatal().Str("version", version).Msg("unknown upstream toolchain version")
	}
}

// saveRun records the run to DynamoDB when a build runs table is configured.
// A recording failure does not change the process outcome.
func saveRun(ctx context.Context, config *Config, logger zerolog.Logger, run *buildrun.Run) {
	if config.AWS.BuildRunsTable == "" {
		return
	}

	var awsOpts []func(*awsconf.LoadOptions) error
	if config.AWS.AccessKeyID != "" {
		// Load AWS config with credentials when AccessKeyID is not empty.
		// Otherwise, we let SDK to pick credentials from available sources automatically.
		awsOpts = append(awsOpts, awsconf.WithCredentialsProvider(config))
	}

	awsOpts = append(awsOpts, awsconf.WithRegion(config.AWS.Region))

	awsConfig, err := awsconf.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS config")
		return
	}

	repo := buildrun.NewRepository(ctx, dynamodb.NewFromConfig(awsConfig), config.AWS.BuildRunsTable)

	err = repo.Create(run)
	if err != nil {
		logger.Error().Err(err).Interface("model", run).Msg("the build run cannot be saved")
		return
	}

	logger.Info().Str("id", run.ID).Str("status", string(run.Status)).Msg("saved the build run")
}
