package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pictor-io/pictor/internal/config"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	configFile, err := os.Open(filepath.Join("testdata", "config.yaml"))
	require.NoError(t, err)

	actualConfig, err := config.Parse(configFile)
	require.NoError(t, err)
	require.Equal(t, &config.Config{
		Addr:           ":8085",
		APIKey:         "test-api-key",
		OutputDir:      "/var/lib/pictor/outputs",
		RequestTimeout: config.Duration(2 * time.Minute),
		Cache: config.Cache{
			MaxEntries: 128,
			TTL:        config.Duration(12 * time.Hour),
		},
		Gate: config.Gate{
			Capacity: 5,
		},
		Retry: config.Retry{
			MaxAttempts: 4,
			BaseDelay:   config.Duration(500 * time.Millisecond),
		},
		S3Mirror: &config.S3Mirror{
			Endpoint:        "http://127.0.0.1:9000",
			Region:          "us-east-1",
			Bucket:          "pictor-artifacts",
			AccessKeyID:     "minioadmin",
			AccessKeySecret: "minioadmin",
		},
	}, actualConfig)
}

func TestParseDefaults(t *testing.T) {
	actualConfig, err := config.Parse(strings.NewReader(`api-key: "k"`))
	require.NoError(t, err)

	require.Equal(t, ":8085", actualConfig.Addr)
	require.Equal(t, "./outputs", actualConfig.OutputDir)
	require.Equal(t, config.Duration(5*time.Minute), actualConfig.RequestTimeout)
	require.Equal(t, 256, actualConfig.Cache.MaxEntries)
	require.Equal(t, config.Duration(24*time.Hour), actualConfig.Cache.TTL)
	require.Equal(t, 3, actualConfig.Gate.Capacity)
	require.Equal(t, 3, actualConfig.Retry.MaxAttempts)
	require.Equal(t, config.Duration(time.Second), actualConfig.Retry.BaseDelay)
	require.Nil(t, actualConfig.S3Mirror)
}

func TestParseRejectsInvalidBounds(t *testing.T) {
	_, err := config.Parse(strings.NewReader("gate:\n  capacity: -1\n"))
	require.Error(t, err)

	_, err = config.Parse(strings.NewReader("retry:\n  max-attempts: -3\n"))
	require.Error(t, err)

	_, err = config.Parse(strings.NewReader("s3-mirror:\n  region: us-east-1\n"))
	require.Error(t, err)
}
