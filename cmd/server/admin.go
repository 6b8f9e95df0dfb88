package main

import (
	"context"
	"fmt"

	"github.com/campusconnect/backend/internal/audit"
	"github.com/campusconnect/backend/internal/database"
	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/services"
	"github.com/campusconnect/backend/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var adminFlags struct {
	username string
	email    string
	password string
	role     string
	college  string
}

// Admin accounts cannot be created through the public register endpoint.
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create a college_admin or system_admin account",
	RunE:  runCreateAdmin,
}

func init() {
	f := createAdminCmd.Flags()
	f.StringVar(&adminFlags.username, "username", "", "username (required)")
	f.StringVar(&adminFlags.email, "email", "", "email (required)")
	f.StringVar(&adminFlags.password, "password", "", "initial password, at least 8 characters (required)")
	f.StringVar(&adminFlags.role, "role", string(models.RoleSystemAdmin), "college_admin or system_admin")
	f.StringVar(&adminFlags.college, "college", "", "college, required for college_admin")
	for _, name := range []string{"username", "email", "password"} {
		createAdminCmd.MarkFlagRequired(name)
	}
	rootCmd.AddCommand(createAdminCmd)
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	role := models.Role(adminFlags.role)
	if !role.IsAdmin() {
		return fmt.Errorf("role must be %s or %s", models.RoleCollegeAdmin, models.RoleSystemAdmin)
	}
	if role.RequiresCollege() && adminFlags.college == "" {
		return fmt.Errorf("--college is required for %s", role)
	}
	if len(adminFlags.password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	db, err := database.InitDB(log)
	if err != nil {
		return err
	}
	defer db.Close()

	hash, err := services.NewPasswordHasher(cfg.Argon2).Hash(adminFlags.password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	ctx := context.Background()
	u := &models.User{
		Username:          adminFlags.username,
		Email:             models.NormalizeEmail(adminFlags.email),
		PasswordHash:      hash,
		Role:              role,
		College:           adminFlags.college,
		Interests:         []string{},
		NotificationPrefs: models.DefaultNotificationPrefs(),
		IsActive:          true,
	}
	if err := store.NewUserStore(db).Create(ctx, u); err != nil {
		return fmt.Errorf("creating %s: %w", role, err)
	}

	audit.NewRecorder(store.NewAuditStore(db), log).RecordBestEffort(ctx, audit.Event{
		Actor:          audit.Actor{Role: "cli"},
		Action:         audit.ActionCreateAdmin,
		TargetResource: "users",
		TargetID:       u.ID,
		Details:        map[string]string{"username": u.Username, "role": string(role), "college": u.College},
	})

	log.WithFields(logrus.Fields{"user_id": u.ID, "role": role}).Info("Admin account created")
	return nil
}
