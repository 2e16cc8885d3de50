// Command publish stores a model and parameter descriptor as the active
// snapshot in PostgreSQL, for servers running with ARTIFACT_SOURCE=postgres.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/stwalsh4118/houseprice/internal/artifacts"
	"github.com/stwalsh4118/houseprice/internal/config"
	"github.com/stwalsh4118/houseprice/internal/database"
	"github.com/stwalsh4118/houseprice/internal/logger"
	"github.com/stwalsh4118/houseprice/internal/models"
	"github.com/stwalsh4118/houseprice/internal/repository"
)

const publishTimeout = time.Minute

func main() {
	flags := pflag.NewFlagSet("publish", pflag.ExitOnError)
	modelPath := flags.String("model", "model.json", "path to the serialized regression model")
	paramsPath := flags.String("params", "params.json", "path to the parameter descriptor")
	modelKey := flags.String("key", "", "snapshot key (defaults to MODEL_KEY)")
	dryRun := flags.Bool("dry-run", false, "validate the artifacts without writing them")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *modelKey == "" {
		*modelKey = cfg.Artifacts.ModelKey
	}

	log := logger.NewWithOptions(logger.Options{
		Env:   cfg.Server.Env,
		Level: cfg.Server.LogLevel,
	})

	modelJSON, params, err := readArtifacts(*modelPath, *paramsPath)
	if err != nil {
		log.Fatal("Artifacts failed validation", err, map[string]interface{}{
			"model":  *modelPath,
			"params": *paramsPath,
		})
	}
	log.Info("Artifacts validated", map[string]interface{}{
		"key":       *modelKey,
		"locations": len(params.Columns),
	})

	if *dryRun {
		return
	}

	if err := cfg.Database.Validate(); err != nil {
		log.Fatal("Invalid database configuration", err, nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	repo := repository.NewSnapshotRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to prepare snapshot table", err, nil)
	}

	snap, err := repo.Publish(ctx, *modelKey, modelJSON, params)
	if err != nil {
		log.Fatal("Failed to publish snapshot", err, map[string]interface{}{
			"key": *modelKey,
		})
	}

	log.Info("Snapshot published", map[string]interface{}{
		"key":     snap.ModelKey,
		"version": snap.Version,
		"id":      snap.ID,
	})
}

// readArtifacts loads both files and checks them the same way the server
// does before anything is written. The model is re-encoded in canonical form.
func readArtifacts(modelPath, paramsPath string) ([]byte, models.ParameterDescriptor, error) {
	var empty models.ParameterDescriptor

	modelData, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, empty, fmt.Errorf("failed to read model: %w", err)
	}
	paramsData, err := os.ReadFile(paramsPath)
	if err != nil {
		return nil, empty, fmt.Errorf("failed to read params: %w", err)
	}

	model, err := artifacts.DecodeModel(modelData)
	if err != nil {
		return nil, empty, err
	}
	params, err := artifacts.DecodeParams(paramsData)
	if err != nil {
		return nil, empty, err
	}

	bundle, err := artifacts.NewBundle(model, params, artifacts.SourceFile, "")
	if err != nil {
		return nil, empty, err
	}

	canonical, err := artifacts.EncodeModel(model)
	if err != nil {
		return nil, empty, fmt.Errorf("failed to encode model: %w", err)
	}
	return canonical, bundle.Params, nil
}
