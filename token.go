package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/discordsync/internal/auth"
	"github.com/devilmonastery/discordsync/internal/config"
	"github.com/devilmonastery/discordsync/internal/domain/entities"
	"github.com/devilmonastery/discordsync/internal/domain/repositories"
	"github.com/devilmonastery/discordsync/internal/infrastructure/database/postgres"
	"github.com/devilmonastery/discordsync/internal/pkg/idgen"
	"github.com/devilmonastery/discordsync/migrations"
)

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Bridge token management commands",
		Long:  "Commands for managing the tokens the game-server plugin uses to call the bridge API",
	}

	cmd.AddCommand(newCreateTokenCommand())
	cmd.AddCommand(newListTokensCommand())
	cmd.AddCommand(newRevokeTokenCommand())

	return cmd
}

func newCreateTokenCommand() *cobra.Command {
	var (
		name       string
		role       string
		expiryDays int
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a bridge API token",
		Long: `Create a JWT for the game-server plugin (role "bridge") or for lifecycle
control tooling (role "admin").

Only a digest of the token is stored, for revocation and audit; the token
itself is printed once and cannot be recovered.

Examples:
  # Token for the game-server plugin (1 year expiry)
  discordsync token create --name "survival-server" --role bridge --expiry-days 365

  # Admin token for ops automation (90 days expiry)
  discordsync token create --name "ops-automation" --role admin --expiry-days 90`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return createToken(configPath, name, role, expiryDays)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "token name/description (required)")
	cmd.Flags().StringVar(&role, "role", entities.TokenRoleBridge, "token role: 'bridge' or 'admin'")
	cmd.Flags().IntVar(&expiryDays, "expiry-days", 365, "token expiry in days")
	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/discordsync.yaml", "path to configuration file")

	cmd.MarkFlagRequired("name")

	return cmd
}

func newListTokensCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bridge tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listTokens(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/discordsync.yaml", "path to configuration file")

	return cmd
}

func newRevokeTokenCommand() *cobra.Command {
	var (
		tokenID    string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a bridge token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return revokeToken(configPath, tokenID)
		},
	}

	cmd.Flags().StringVar(&tokenID, "token-id", "", "token ID to revoke (required)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/discordsync.yaml", "path to configuration file")

	cmd.MarkFlagRequired("token-id")

	return cmd
}

func openTokenRepo(configPath string) (repositories.TokenRepository, *postgres.Connection, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Bridge.Secret == "" {
		return nil, nil, nil, fmt.Errorf("bridge.secret is required")
	}

	conn, err := postgres.NewConnection(cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.RunMigrations(migrations.FS); err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres.NewTokenRepository(conn.DB), conn, cfg, nil
}

func createToken(configPath, name, role string, expiryDays int) error {
	if role != entities.TokenRoleBridge && role != entities.TokenRoleAdmin {
		return fmt.Errorf("role must be %q or %q", entities.TokenRoleBridge, entities.TokenRoleAdmin)
	}

	repo, conn, cfg, err := openTokenRepo(configPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := idgen.Initialize(1); err != nil {
		return fmt.Errorf("failed to initialize id generator: %w", err)
	}
	tokenID := idgen.GenerateID()

	manager := auth.NewJWTManager(cfg.Bridge.Secret)
	tokenString, expiresAt, err := manager.GenerateToken(name, role, tokenID, time.Duration(expiryDays)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	digest := sha256.Sum256([]byte(tokenString))
	record := &entities.BridgeToken{
		ID:        tokenID,
		Name:      name,
		Role:      role,
		Digest:    hex.EncodeToString(digest[:]),
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	if err := repo.Create(context.Background(), record); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	fmt.Printf("Created %s token %q (id %s, expires %s)\n", role, name, tokenID, expiresAt.Format(time.RFC3339))
	fmt.Printf("\n%s\n\n", tokenString)
	fmt.Println("Store this token now; it is not recoverable.")
	return nil
}

func listTokens(configPath string) error {
	repo, conn, _, err := openTokenRepo(configPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	tokens, err := repo.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}

	if len(tokens) == 0 {
		fmt.Println("No tokens.")
		return nil
	}

	fmt.Printf("%-22s %-20s %-7s %-25s %s\n", "ID", "NAME", "ROLE", "EXPIRES", "STATE")
	for _, t := range tokens {
		state := "active"
		if t.RevokedAt != nil {
			state = "revoked"
		} else if !time.Now().Before(t.ExpiresAt) {
			state = "expired"
		}
		fmt.Printf("%-22s %-20s %-7s %-25s %s\n",
			t.ID, t.Name, t.Role, t.ExpiresAt.Format(time.RFC3339), state)
	}
	return nil
}

func revokeToken(configPath, tokenID string) error {
	repo, conn, _, err := openTokenRepo(configPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := repo.Revoke(context.Background(), tokenID); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	fmt.Printf("Revoked token %s\n", tokenID)
	return nil
}
