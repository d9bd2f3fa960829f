package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/lewisgf/snowclient/pkg/servicenow/client"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
)

const appName string = "snowq"

func main() {
	appVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), appName, appVersion, "json")
	defer cleanup()

	tableName := flag.String("table", "incident", "name of the table to query")
	filter := flag.String("filter", "", "encoded query expression")
	fields := flag.String("fields", "", "comma separated list of fields to return")
	limit := flag.Int("limit", 0, "maximum number of records to return")
	connect := flag.Bool("connect", false, "verify the credentials before querying")
	debug := flag.Bool("debug", false, "dump requests and responses on failure")
	flag.Parse()

	instance := env.GetVariableOrDefault(ctx, "SN_INSTANCE", "")
	username := env.GetVariableOrDefault(ctx, "SN_USERNAME", "")
	password := env.GetVariableOrDefault(ctx, "SN_PASSWORD", "")

	if instance == "" || username == "" {
		log.Error("SN_INSTANCE and SN_USERNAME must be set")
		os.Exit(1)
	}

	c := client.New(instance, username, password, client.Debug(*debug))

	if *connect {
		err := c.Connect(ctx)
		if err != nil {
			log.Error("failed to connect", "err", err.Error())
			os.Exit(1)
		}
	}

	query := c.Table(*tableName).Query().Filter(*filter).Limit(*limit)
	if *fields != "" {
		query = query.Fields(*fields)
	}

	records, err := query.Run(ctx)
	if err != nil {
		log.Error("query failed", "table", *tableName, "err", err.Error())
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	err = enc.Encode(records)
	if err != nil {
		log.Error("failed to encode result", "err", err.Error())
		os.Exit(1)
	}
}
