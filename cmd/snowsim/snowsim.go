package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/lewisgf/snowclient/internal/pkg/application/tables"
	"github.com/lewisgf/snowclient/internal/pkg/infrastructure/router"
	"github.com/lewisgf/snowclient/internal/pkg/presentation/api/tableapi"
	"github.com/lewisgf/snowclient/internal/pkg/presentation/api/tableapi/auth"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
)

const appName string = "snowsim"

func main() {
	appVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), appName, appVersion, "json")
	defer cleanup()

	cfg, err := loadSeedConfig(ctx)
	if err != nil {
		log.Error("failed to load seed configuration", "err", err.Error())
		os.Exit(1)
	}

	policies, err := openPolicies(ctx)
	if err != nil {
		log.Error("failed to open authorization policies", "err", err.Error())
		os.Exit(1)
	}
	defer policies.Close()

	app := tables.New(cfg)
	r := router.New(appName)

	err = tableapi.RegisterHandlers(ctx, r, policies, app)
	if err != nil {
		log.Error("failed to register handlers", "err", err.Error())
		os.Exit(1)
	}

	port := env.GetVariableOrDefault(ctx, "SERVICE_PORT", "8080")
	log.Info("starting to listen for connections", "port", port)

	err = http.ListenAndServe(":"+port, r)
	if err != nil {
		log.Error("failed to listen for connections", "err", err.Error())
		os.Exit(1)
	}
}

func loadSeedConfig(ctx context.Context) (*tables.Config, error) {
	seedFile := env.GetVariableOrDefault(ctx, "SEED_FILE", "")
	if seedFile == "" {
		return nil, nil
	}

	f, err := os.Open(seedFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return tables.LoadConfiguration(f)
}

func openPolicies(ctx context.Context) (io.ReadCloser, error) {
	policiesFile := env.GetVariableOrDefault(ctx, "POLICIES_FILE", "")
	if policiesFile == "" {
		return io.NopCloser(strings.NewReader(auth.DefaultPolicy)), nil
	}

	return os.Open(policiesFile)
}
