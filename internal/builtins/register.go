// ABOUTME: Registers every built-in tool group with a registry.
// ABOUTME: Groups whose backing store is absent are skipped.

package builtins

import (
	"fmt"
	"net/http"

	"github.com/2389/folio-gateway/internal/config"
	"github.com/2389/folio-gateway/internal/store"
	"github.com/2389/folio-gateway/internal/tools"
)

// Deps holds what the built-in groups need.
type Deps struct {
	SQL       store.SQLStore     // database group; nil skips it
	Profile   store.ProfileStore // profile group; nil skips it
	Database  DatabaseOptions
	System    SystemOptions
	Workflows []config.Workflow
	// HTTPClient is shared by check_url and the workflow tools.
	HTTPClient *http.Client
}

// DepsFromConfig maps tool configuration onto Deps. Stores and workflows are
// left for the caller.
func DepsFromConfig(cfg config.ToolsConfig) Deps {
	return Deps{
		Database: DatabaseOptions{
			AllowWrites: cfg.Database.AllowWrites,
			MaxRows:     cfg.Database.MaxRows,
		},
		System: SystemOptions{
			AllowedCommands: cfg.Shell.AllowedCommands,
			CommandTimeout:  cfg.Shell.Timeout,
			WorkDir:         cfg.Shell.WorkDir,
			AllowedDirs:     cfg.Files.AllowedDirs,
			MaxFileBytes:    cfg.Files.MaxBytes,
			NetworkTimeout:  cfg.Network.Timeout,
		},
	}
}

// RegisterAll registers the database, profile, system and workflow groups.
func RegisterAll(reg *tools.Registry, deps Deps) error {
	if deps.System.HTTPClient == nil {
		deps.System.HTTPClient = deps.HTTPClient
	}

	var groups []*tools.Group
	if deps.SQL != nil {
		groups = append(groups, DatabasePack(deps.SQL, deps.Database))
	}
	if deps.Profile != nil {
		groups = append(groups, ProfilePack(deps.Profile))
	}
	groups = append(groups,
		SystemPack(deps.System),
		WorkflowPack(deps.Workflows, deps.HTTPClient),
	)

	for _, g := range groups {
		if err := reg.RegisterGroup(g); err != nil {
			return fmt.Errorf("registering %s tools: %w", g.Category, err)
		}
	}
	return nil
}
