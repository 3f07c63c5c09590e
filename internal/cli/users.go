package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nutrigen/nutrigen/internal/daemon"
	"github.com/nutrigen/nutrigen/internal/domain"
	"github.com/nutrigen/nutrigen/internal/infra/sqlite"
)

// The users command works directly against the local database: profile
// creation is an operator action, not part of the serving API.

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersCreateCmd)
	usersCreateCmd.Flags().String("name", "", "Display name")
	usersCreateCmd.Flags().String("role", string(domain.RoleTrainee), "Role: trainee, coach, or admin")
	usersCreateCmd.Flags().String("language", "en", "Preferred language")
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user profiles",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create USER_ID",
	Short: "Create a user profile with the signup credit grant",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersCreate,
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	userID := args[0]
	name, _ := cmd.Flags().GetString("name")
	roleStr, _ := cmd.Flags().GetString("role")
	lang, _ := cmd.Flags().GetString("language")

	role := domain.Role(roleStr)
	switch role {
	case domain.RoleTrainee, domain.RoleCoach, domain.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", roleStr)
	}
	if name == "" {
		name = userID
	}

	cfg, err := daemon.Load()
	if err != nil {
		return err
	}

	home := daemon.Home()
	if err := os.MkdirAll(home, 0700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	db, err := sqlite.Open(home)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if _, err := db.GetProfile(ctx, userID); err == nil {
		return fmt.Errorf("profile %q already exists", userID)
	}
	err = db.UpsertProfile(ctx, domain.UserProfile{
		ID:          userID,
		DisplayName: name,
		Role:        role,
		Language:    lang,
	})
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}

	balance := int64(0)
	if cfg.Credits.InitialGrant > 0 {
		balance, err = db.GrantCredits(ctx, userID, cfg.Credits.InitialGrant, domain.TxGrant)
		if err != nil {
			return fmt.Errorf("signup grant: %w", err)
		}
	}

	fmt.Fprintf(os.Stdout, "✅ Profile %q created (%s, credits: %d)\n", userID, role, balance)
	return nil
}
