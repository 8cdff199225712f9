package run

import (
	"bytes"
	"fmt"
	"os"
	"time"

	cachepkg "github.com/pictor-io/pictor/internal/cache"
	configpkg "github.com/pictor-io/pictor/internal/config"
	gatepkg "github.com/pictor-io/pictor/internal/gate"
	orchestratorpkg "github.com/pictor-io/pictor/internal/orchestrator"
	"github.com/pictor-io/pictor/internal/remote/gemini"
	retrypkg "github.com/pictor-io/pictor/internal/retry"
	serverpkg "github.com/pictor-io/pictor/internal/server"
	storepkg "github.com/pictor-io/pictor/internal/store"
	"github.com/pictor-io/pictor/internal/store/s3mirror"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Pictor server",
		RunE:  run,
	}

	cmd.Flags().StringVarP(&configPath, "file", "f", "",
		"configuration file path (e.g. /etc/pictor.yml)")

	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	if configPath == "" {
		return fmt.Errorf("configuration file path (-f or --file) needs to be specified")
	}

	// Parse the configuration file
	configBytes, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read configuration file at path %s: %w", configPath, err)
	}

	config, err := configpkg.Parse(bytes.NewReader(configBytes))
	if err != nil {
		return fmt.Errorf("failed to parse configuration file at path %s: %w", configPath, err)
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return fmt.Errorf("api-key needs to be specified in the configuration file " +
			"or via the GEMINI_API_KEY environment variable")
	}

	storeOpts := []storepkg.Option{
		storepkg.WithLogger(zap.S()),
	}

	if config.S3Mirror != nil {
		mirror, err := s3mirror.NewFromConfig(&s3mirror.Config{
			Endpoint:        config.S3Mirror.Endpoint,
			Region:          config.S3Mirror.Region,
			AccessKeyID:     config.S3Mirror.AccessKeyID,
			AccessKeySecret: config.S3Mirror.AccessKeySecret,
			Bucket:          config.S3Mirror.Bucket,
		})
		if err != nil {
			return err
		}

		storeOpts = append(storeOpts, storepkg.WithMirror(mirror))
	}

	store, err := storepkg.New(config.OutputDir, storeOpts...)
	if err != nil {
		return err
	}

	// Clean up temporary files that a previous run may have left behind
	if removed, err := store.CleanupTemp(24 * time.Hour); err == nil && removed != 0 {
		zap.S().Infof("removed %d stale temporary files", removed)
	}

	orchestrator := orchestratorpkg.New(
		gemini.New(apiKey, gemini.WithLogger(zap.S())),
		store,
		cachepkg.New(config.Cache.MaxEntries, time.Duration(config.Cache.TTL)),
		gatepkg.New(config.Gate.Capacity),
		retrypkg.New(config.Retry.MaxAttempts, time.Duration(config.Retry.BaseDelay),
			retrypkg.WithLogger(zap.S())),
		orchestratorpkg.WithLogger(zap.S()),
	)

	server, err := serverpkg.New(config.Addr, orchestrator,
		serverpkg.WithLogger(zap.S()),
		serverpkg.WithRequestTimeout(time.Duration(config.RequestTimeout)),
	)
	if err != nil {
		return err
	}

	return server.Run(cmd.Context())
}
