package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	serverID := uuid.New()

	tests := []struct {
		name     string
		args     []string
		expected *Config
	}{
		{
			name: "all flags",
			args: []string{"cmd",
				"-a", "127.0.0.1:9090", "-d", "postgres://db", "-s", "secret",
				"-i", serverID.String(), "-l", "5", "-t", "60",
				"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
			},
			expected: &Config{
				EndpointAddr:              "127.0.0.1:9090",
				DatabaseDSN:               "postgres://db",
				SecretKey:                 "secret",
				ServerID:                  serverID,
				ChallengeValidityDuration: 5 * time.Minute,
				SessionValidityDuration:   60 * time.Minute,
				S3RootUser:                "user",
				S3RootPassword:            "password",
				S3Bucket:                  "bucket",
				S3Region:                  "us-west-1",
				S3BaseEndpoint:            "http://endpoint",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}
			require.NotPanics(t, func() { parseFlags(config) })
			assert.Equal(t, tt.expected, config)
		})
	}
}

func TestParseFlags_UnknownFlagsIgnored(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	// Flags belonging to other components are filtered out, not rejected.
	os.Args = []string{"cmd", "-a", ":9999", "-config", "/tmp/cfg.json", "-x", "noise"}

	config := &Config{}
	require.NotPanics(t, func() { parseFlags(config) })
	assert.Equal(t, ":9999", config.EndpointAddr)
}
