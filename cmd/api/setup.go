package main

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tmanole/chatgate/internal/config"
	"github.com/tmanole/chatgate/internal/storage"
)

// ensureAdminPassword prompts for an admin password on first run.
func ensureAdminPassword(store storage.Store) error {
	hasPassword, err := store.HasAdminPassword()
	if err != nil {
		return fmt.Errorf("failed to check admin password: %w", err)
	}
	if hasPassword {
		return nil
	}

	fmt.Println()
	fmt.Println("First-time setup: no admin password configured.")
	fmt.Println("This password protects the admin API (grants, keys, usage).")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("Enter admin password (min 8 chars): ")
		password, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimSpace(password)

		if len(password) < 8 {
			fmt.Println("Password must be at least 8 characters.")
			fmt.Println()
			continue
		}

		fmt.Print("Confirm password: ")
		confirm, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if password != strings.TrimSpace(confirm) {
			fmt.Println("Passwords do not match. Please try again.")
			fmt.Println()
			continue
		}

		hash, err := storage.HashSecret(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		if err := store.SetAdminPasswordHash(hash); err != nil {
			return fmt.Errorf("failed to save password: %w", err)
		}

		fmt.Println()
		fmt.Println("Admin password saved.")
		fmt.Println()
		return nil
	}
}

// ensureJWTSecret fills in a random session-signing secret when none is
// configured. Admin sessions then do not survive a restart.
func ensureJWTSecret(cfg *config.Config, logger *slog.Logger) {
	if cfg.AdminJWTSecret != "" {
		return
	}
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	cfg.AdminJWTSecret = hex.EncodeToString(b)
	logger.Warn("ADMIN_JWT_SECRET not set; using a random secret, admin sessions reset on restart")
}
