// Copyright 2026 The Maintly Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/maintly/maintly/internal/audit"
	"github.com/maintly/maintly/internal/authz"
	"github.com/maintly/maintly/internal/config"
	"github.com/maintly/maintly/internal/crypto"
	"github.com/maintly/maintly/internal/identity"
	"github.com/maintly/maintly/internal/observability/logger"
	"github.com/maintly/maintly/internal/ratelimit"
	"github.com/maintly/maintly/internal/store/postgres"
	"github.com/maintly/maintly/internal/vault"
)

var verbose bool

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "maintlyctl",
		Short: "Operator tasks for a Maintly deployment",
		Long: `maintlyctl works directly against the Maintly database using the same
environment configuration as the API server (DB_*, AUTH_*, .env).`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newSecretsCmd())
	root.AddCommand(newPermissionsCmd())
	return root
}

// env holds the services a command needs. Close releases the database.
type env struct {
	db       *postgres.DB
	profiles *identity.Service
	authz    *authz.Service
	vault    *vault.Service
}

func (e *env) Close() { e.db.Close() }

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	log := logger.InitLogger(logger.Config{
		Level:       level,
		Format:      "text",
		ServiceName: "maintlyctl",
		Output:      os.Stderr,
	})

	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Debug("connected to database")

	auditLogger := audit.NewSlogLogger(log)
	profiles := identity.NewService(postgres.NewProfileRepository(db.SQL()), auditLogger)
	secrets := postgres.NewSecretRepository(db.SQL())
	authzService := authz.NewService(postgres.NewGrantRepository(db.SQL()), auditLogger, nil)

	return &env{
		db:       db,
		profiles: profiles,
		authz:    authzService,
		vault:    vault.NewService(secrets, secrets, authzService, crypto.New(), ratelimit.New(), auditLogger),
	}, nil
}

// subjectFor resolves a provider user id to its permission subject.
func (e *env) subjectFor(ctx context.Context, userID string) (authz.Subject, error) {
	p, err := e.profiles.GetProfile(ctx, userID)
	if err != nil {
		return authz.Subject{}, fmt.Errorf("user %q: %w", userID, err)
	}
	return p.Subject(), nil
}
