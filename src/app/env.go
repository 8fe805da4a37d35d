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
)

type envVars struct {
	Environment string `envconfig:"ENVIRONMENT" default:"dev"`

	ServerHost string `envconfig:"SERVER_HOST" default:"localhost"`
	ServerPort int    `envconfig:"SERVER_PORT" default:"8080"`

	DataDir string `envconfig:"DATA_DIR" default:"./data/pg_statistic_ext_data"`

	RaftID        string `envconfig:"RAFT_ID" default:"node1"`
	RaftAddr      string `envconfig:"RAFT_ADDR" default:"localhost:50051"`
	RaftBootstrap bool   `envconfig:"RAFT_BOOTSTRAP" default:"true"`

	ImportDir     string `envconfig:"IMPORT_DIR"`
	ImportWorkers int    `envconfig:"IMPORT_WORKERS" default:"4"`
}

// loadEnv reads the process environment, preloading variables from the
// given dotenv files when they exist.
func loadEnv(dotenvFiles ...string) (envVars, error) {
	for _, f := range dotenvFiles {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return envVars{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var env envVars

	if err := envconfig.Process("", &env); err != nil {
		return envVars{}, fmt.Errorf("failed to process env: %w", err)
	}

	if env.Environment != EnvDev && env.Environment != EnvProd {
		return envVars{}, fmt.Errorf("unknown environment %q", env.Environment)
	}

	return env, nil
}

func mustLoadEnv(dotenvFiles ...string) envVars {
	env, err := loadEnv(dotenvFiles...)
	if err != nil {
		panic(err)
	}

	return env
}
