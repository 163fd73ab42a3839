package app

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"

	envPrefix = "GRAPHCAT"
)

type envVars struct {
	Environment string `envconfig:"ENVIRONMENT" default:"dev"`

	ServerHost string `envconfig:"SERVER_HOST" default:"localhost"`
	ServerPort int    `envconfig:"SERVER_PORT" default:"8080"`

	// file backend
	FileRoot   string `envconfig:"FILE_ROOT" default:"./data/graphs"`
	FileFormat string `envconfig:"FILE_FORMAT" default:"arrow"`

	// relational backend
	SQLitePath string `envconfig:"SQLITE_PATH" default:"./data/graphs.db"`
	DDLRoot    string `envconfig:"DDL_ROOT" default:"./data/ddl"`
	IDStrategy string `envconfig:"ID_STRATEGY" default:"serialized"`
	DataSource string `envconfig:"DATA_SOURCE" default:"warehouse"`
	Database   string `envconfig:"DATABASE" default:"graphs"`
}

// loadEnv reads the process environment on top of the optional dotenv
// files. Variables already set in the environment win.
func loadEnv(files ...string) (envVars, error) {
	for _, file := range files {
		if file == "" {
			continue
		}

		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return envVars{}, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	var env envVars
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return envVars{}, fmt.Errorf("failed to process environment: %w", err)
	}

	return env, nil
}
