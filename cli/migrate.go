package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Marcosotoladev/DhermicaApp-sub000/config"
	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and seed roles",
	RunE: func(cmd *cobra.Command, args []string) error {
		config.LoadConfig()
		db, err := config.ConnectMySQL()
		if err != nil {
			return err
		}
		if err := migrate(db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "database migrated")
		return nil
	},
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := model.SeedRoles(db); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	return nil
}

var (
	adminEmail    string
	adminPassword string
	adminName     string
)

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create or reset an administrator account",
	Long: `Create an administrator account. When the email already belongs to a
user, that user is promoted to Admin and its password is replaced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config.LoadConfig()
		db, err := config.ConnectMySQL()
		if err != nil {
			return err
		}
		if err := migrate(db); err != nil {
			return err
		}
		user, created, err := seedAdmin(db, adminName, adminEmail, adminPassword)
		if err != nil {
			return err
		}
		verb := "updated"
		if created {
			verb = "created"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "admin %s %s (id %d)\n", user.Email, verb, user.ID)
		return nil
	},
}

func init() {
	seedAdminCmd.Flags().StringVar(&adminEmail, "email", "", "Admin email")
	seedAdminCmd.Flags().StringVar(&adminPassword, "password", "", "Admin password (min 8 characters)")
	seedAdminCmd.Flags().StringVar(&adminName, "name", "Administrador", "Admin display name")
	_ = seedAdminCmd.MarkFlagRequired("email")
	_ = seedAdminCmd.MarkFlagRequired("password")
}

const minAdminPassword = 8

var errWeakPassword = fmt.Errorf("password must be at least %d characters", minAdminPassword)

// seedAdmin stores an Admin user for email. created is false when an existing
// account was promoted.
func seedAdmin(db *gorm.DB, name, email, password string) (user model.User, created bool, err error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return user, false, errors.New("email is required")
	}
	if len(password) < minAdminPassword {
		return user, false, errWeakPassword
	}

	salt, err := util.GenerateSalt()
	if err != nil {
		return user, false, err
	}
	hash, err := util.HashPasswordArgon2(password, salt)
	if err != nil {
		return user, false, err
	}

	err = db.Where("email = ?", email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = model.User{
			Name:         util.NormalizeName(name),
			Email:        email,
			Password:     hash,
			PasswordSalt: salt,
			RoleID:       model.RoleAdmin,
		}
		if err := db.Create(&user).Error; err != nil {
			return user, false, fmt.Errorf("create admin: %w", err)
		}
		return user, true, nil
	case err != nil:
		return user, false, err
	}

	user.Password = hash
	user.PasswordSalt = salt
	user.RoleID = model.RoleAdmin
	user.FailedAttempts = 0
	user.LockedUntil = nil
	if err := db.Save(&user).Error; err != nil {
		return user, false, fmt.Errorf("update admin: %w", err)
	}
	// old sessions carry the previous role
	if err := db.Where("user_id = ?", user.ID).Delete(&model.Session{}).Error; err != nil {
		return user, false, err
	}
	return user, false, nil
}
