// Package seed provisions the bootstrap admin account and the default
// access-control graph.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/warden-app/warden/internal/modules"
	"github.com/warden-app/warden/internal/platform/db"
	"github.com/warden-app/warden/internal/rbac"
)

const (
	adminUsername = "admin"
	adminEmail    = "admin@example.com"
	adminPassword = "admin123"

	adminGroup = "Administrators"
	adminRole  = "Super Admin"
)

var defaultModules = []struct {
	Name        string
	Description string
}{
	{"Users", "User account administration"},
	{"Groups", "Group membership administration"},
	{"Roles", "Role administration"},
	{"Modules", "Module administration"},
	{"Permissions", "Permission administration"},
}

// Run provisions the default modules, permissions, the Super Admin role
// with every grant, the Administrators group, and the admin account. It is
// idempotent: existing rows are left untouched.
func Run(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		var permissionIDs []int64
		for _, mod := range defaultModules {
			moduleID, err := upsertID(ctx, tx,
				`INSERT INTO modules (name, description) VALUES ($1, $2)
				 ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
				 RETURNING id`,
				mod.Name, mod.Description)
			if err != nil {
				return fmt.Errorf("seed module %s: %w", mod.Name, err)
			}
			for _, action := range rbac.Actions {
				permID, err := upsertID(ctx, tx,
					`INSERT INTO permissions (name, action, module_id) VALUES ($1, $2, $3)
					 ON CONFLICT (action, module_id) DO UPDATE SET name = EXCLUDED.name
					 RETURNING id`,
					modules.PermissionName(action, mod.Name), action, moduleID)
				if err != nil {
					return fmt.Errorf("seed permission %s on %s: %w", action, mod.Name, err)
				}
				permissionIDs = append(permissionIDs, permID)
			}
		}

		roleID, err := upsertID(ctx, tx,
			`INSERT INTO roles (name, description) VALUES ($1, $2)
			 ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
			 RETURNING id`,
			adminRole, "Unrestricted access to every module")
		if err != nil {
			return fmt.Errorf("seed role: %w", err)
		}
		for _, permID := range permissionIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO grants (role_id, permission_id) VALUES ($1, $2)
				 ON CONFLICT DO NOTHING`, roleID, permID); err != nil {
				return fmt.Errorf("seed grant: %w", err)
			}
		}

		groupID, err := upsertID(ctx, tx,
			`INSERT INTO groups (name, description) VALUES ($1, $2)
			 ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
			 RETURNING id`,
			adminGroup, "Members hold the Super Admin role")
		if err != nil {
			return fmt.Errorf("seed group: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO role_assignments (group_id, role_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, groupID, roleID); err != nil {
			return fmt.Errorf("seed role assignment: %w", err)
		}

		var userID int64
		err = tx.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, adminEmail).Scan(&userID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			hashed, err := bcrypt.GenerateFromPassword([]byte(adminPassword), 12)
			if err != nil {
				return err
			}
			err = tx.QueryRow(ctx,
				`INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3) RETURNING id`,
				adminUsername, adminEmail, string(hashed)).Scan(&userID)
			if err != nil {
				return fmt.Errorf("seed admin user: %w", err)
			}
			logger.Info("seeded admin account", slog.String("email", adminEmail))
		case err != nil:
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO memberships (user_id, group_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, userID, groupID); err != nil {
			return fmt.Errorf("seed membership: %w", err)
		}

		logger.Info("seed complete",
			slog.Int("modules", len(defaultModules)),
			slog.Int("permissions", len(permissionIDs)))
		return nil
	})
}

func upsertID(ctx context.Context, tx pgx.Tx, sql string, args ...any) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, sql, args...).Scan(&id)
	return id, err
}
