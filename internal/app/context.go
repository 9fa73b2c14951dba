package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskline/internal/config"
	"taskline/internal/repo"
)

// ResolveConfig loads the effective config for a workspace: the DB-stored
// config wins, a taskline.yml next to the workspace seeds it on first use,
// defaults otherwise.
func ResolveConfig(ctx context.Context, workspace string, r repo.Repo) (*config.Config, error) {
	cfg, err := r.GetConfig(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	cfg, err = config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := r.UpsertConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("seed config: %w", err)
	}
	return cfg, nil
}

// BootstrapActor makes sure the CLI caller exists as an instance so engine
// operations accept it.
func BootstrapActor(ctx context.Context, r repo.Repo, instanceID string) error {
	if instanceID == "" {
		instanceID = "local-user"
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	now := time.Now().UTC().Format(time.RFC3339)
	if err := r.EnsureInstance(ctx, tx, instanceID, "", now); err != nil {
		return fmt.Errorf("ensure instance: %w", err)
	}
	return tx.Commit()
}
