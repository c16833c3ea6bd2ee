package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/frahmantamala/thesis-repository/internal/core/datamodel/audit"
	"github.com/frahmantamala/thesis-repository/internal/core/datamodel/thesis"
	userDatamodel "github.com/frahmantamala/thesis-repository/internal/core/datamodel/user"
	"github.com/frahmantamala/thesis-repository/internal/core/password"
	"github.com/frahmantamala/thesis-repository/internal/core/role"
	"github.com/frahmantamala/thesis-repository/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	seedAdmin = AdminSeed{}

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Seed roles and the bootstrap administrator",
		Long:  `Create the fixed roles and, when a password is supplied, an initial ADMIN account.`,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig(configPath)
			if err != nil {
				log.Fatalf("failed to load config: %v", err)
			}

			db, err := initDB(cfg.Database)
			if err != nil {
				log.Fatalf("failed to init db: %v", err)
			}
			defer db.Close()

			gdb, err := initGorm(db)
			if err != nil {
				log.Fatalf("failed to init orm: %v", err)
			}

			if seedAdmin.Password == "" {
				seedAdmin.Password = os.Getenv("SEED_ADMIN_PASSWORD")
			}

			policy := password.NewPolicy(password.Config{
				HistoryLimit: cfg.Password.HistoryLimit,
				ExpiryDays:   cfg.Password.ExpiryDays,
				MinLength:    cfg.Password.MinLength,
				BCryptCost:   cfg.Security.BCryptCost,
			})

			if err := Seed(cmd.Context(), gdb, policy, seedAdmin, clearData); err != nil {
				log.Fatalf("seed: %v", err)
			}
		},
	}
)

func init() {
	seedCmd.Flags().StringVar(&seedAdmin.Username, "admin-username", "admin", "bootstrap administrator username")
	seedCmd.Flags().StringVar(&seedAdmin.Email, "admin-email", "admin@example.com", "bootstrap administrator email")
	seedCmd.Flags().StringVar(&seedAdmin.Password, "admin-password", "", "bootstrap administrator password (or SEED_ADMIN_PASSWORD)")
}

// AdminSeed describes the bootstrap administrator. An empty Password skips it.
type AdminSeed struct {
	Username string
	Email    string
	Password string
}

var roleDescriptions = map[role.Name]string{
	role.Student:   "Submits and maintains own theses",
	role.Professor: "Advises and reviews theses",
	role.Admin:     "Full administrative access",
}

// Seed is idempotent: existing roles and users are left untouched.
func Seed(ctx context.Context, db *gorm.DB, policy *password.Policy, admin AdminSeed, clear bool) error {
	lg := logger.From(ctx)

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if clear {
			// children first; thesis and audit_logs restrict user deletes
			for _, model := range []interface{}{
				&audit.AuditLog{},
				&thesis.Thesis{},
				&userDatamodel.PasswordHistory{},
				&userDatamodel.UserRole{},
				&userDatamodel.User{},
				&userDatamodel.Role{},
			} {
				if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
					return fmt.Errorf("clear %T: %w", model, err)
				}
			}
			lg.Info("cleared existing data")
		}

		for _, name := range []role.Name{role.Student, role.Professor, role.Admin} {
			r := userDatamodel.Role{Name: string(name), Description: roleDescriptions[name]}
			if err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).Create(&r).Error; err != nil {
				return fmt.Errorf("seed role %s: %w", name, err)
			}
		}
		lg.Info("seeded roles")

		if admin.Password == "" {
			lg.Warn("no admin password supplied, skipping bootstrap administrator")
			return nil
		}
		return seedAdminUser(tx, policy, admin)
	})
}

func seedAdminUser(tx *gorm.DB, policy *password.Policy, admin AdminSeed) error {
	lg := logger.From(tx.Statement.Context)

	var existing userDatamodel.User
	err := tx.Where("username = ?", admin.Username).First(&existing).Error
	if err == nil {
		lg.Info("admin user already exists", "username", admin.Username)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lookup admin: %w", err)
	}

	if err := policy.ValidateStrength(password.Candidate{
		Username:     admin.Username,
		Email:        admin.Email,
		Password:     admin.Password,
		Confirmation: admin.Password,
	}); err != nil {
		return fmt.Errorf("admin password rejected: %w", err)
	}

	hash, err := policy.Hash(admin.Password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	var adminRole userDatamodel.Role
	if err := tx.Where("name = ?", string(role.Admin)).First(&adminRole).Error; err != nil {
		return fmt.Errorf("lookup admin role: %w", err)
	}

	now := time.Now().UTC()
	u := userDatamodel.User{
		Username:           admin.Username,
		Email:              admin.Email,
		PasswordHash:       hash,
		IsActive:           true,
		LastPasswordChange: now,
	}
	if err := tx.Create(&u).Error; err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	if err := tx.Create(&userDatamodel.UserRole{UserID: u.ID, RoleID: adminRole.ID}).Error; err != nil {
		return fmt.Errorf("assign admin role: %w", err)
	}
	if err := tx.Create(&userDatamodel.PasswordHistory{UserID: u.ID, PasswordHash: hash}).Error; err != nil {
		return fmt.Errorf("record admin password: %w", err)
	}

	lg.Info("seeded admin user", "username", admin.Username, "email", admin.Email)
	return nil
}
