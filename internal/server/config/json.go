package config

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/flagx"
	"github.com/passman-project/passman/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. It uses timex.Duration for interval fields, which allows parsing
// both string values such as "2m" and integer nanoseconds. After
// unmarshalling, its fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddr              string         `json:"endpoint_addr"`
	DatabaseDSN               string         `json:"database_dsn"`
	SecretKey                 string         `json:"secret_key"`
	ServerID                  string         `json:"server_id"`
	ChallengeValidityDuration timex.Duration `json:"challenge_validity_duration"`
	SessionValidityDuration   timex.Duration `json:"session_validity_duration"`
	S3RootUser                string         `json:"s3_root_user"`
	S3RootPassword            string         `json:"s3_root_password"`
	S3Bucket                  string         `json:"s3_bucket"`
	S3Region                  string         `json:"s3_region"`
	S3BaseEndpoint            string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; if neither is set, no JSON file is loaded. An unreadable or invalid
// file panics: a config file that is present but broken should stop startup.
func parseJson(config *Config) {
	fileName := flagx.JsonConfigFlags()
	if fileName == "" {
		return
	}

	data, err := os.ReadFile(fileName)
	if err != nil {
		panic(err)
	}

	jsonConfig := &JsonConfig{}
	if err := json.Unmarshal(data, jsonConfig); err != nil {
		panic(err)
	}

	if jsonConfig.EndpointAddr != "" {
		config.EndpointAddr = jsonConfig.EndpointAddr
	}
	if jsonConfig.DatabaseDSN != "" {
		config.DatabaseDSN = jsonConfig.DatabaseDSN
	}
	if jsonConfig.SecretKey != "" {
		config.SecretKey = jsonConfig.SecretKey
	}
	if jsonConfig.ServerID != "" {
		if parsed, err := uuid.Parse(jsonConfig.ServerID); err == nil {
			config.ServerID = parsed
		}
	}
	if jsonConfig.ChallengeValidityDuration.Duration != 0 {
		config.ChallengeValidityDuration = jsonConfig.ChallengeValidityDuration.Duration
	}
	if jsonConfig.SessionValidityDuration.Duration != 0 {
		config.SessionValidityDuration = jsonConfig.SessionValidityDuration.Duration
	}
	if jsonConfig.S3RootUser != "" {
		config.S3RootUser = jsonConfig.S3RootUser
	}
	if jsonConfig.S3RootPassword != "" {
		config.S3RootPassword = jsonConfig.S3RootPassword
	}
	if jsonConfig.S3Bucket != "" {
		config.S3Bucket = jsonConfig.S3Bucket
	}
	if jsonConfig.S3Region != "" {
		config.S3Region = jsonConfig.S3Region
	}
	if jsonConfig.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = jsonConfig.S3BaseEndpoint
	}
}
