package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nutrigen/nutrigen/internal/domain"
)

func init() {
	rootCmd.AddCommand(creditsCmd)
	creditsCmd.AddCommand(creditsGrantCmd)
	creditsGrantCmd.Flags().String("to", "", "User ID to credit")
	creditsGrantCmd.Flags().Int64("amount", 0, "Number of credits to grant")
}

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Show credit balance and ledger",
	Long:  `Show the user's remaining AI generation credits and recent ledger entries.`,
	RunE:  runCredits,
}

func runCredits(cmd *cobra.Command, args []string) error {
	if _, err := requireUserFlag(cmd); err != nil {
		return err
	}

	var out struct {
		Remaining int64                `json:"remaining"`
		Ledger    []domain.LedgerEntry `json:"ledger"`
	}
	if err := callAPI(cmd, "GET", "/api/credits", nil, &out); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Credits remaining: %d\n", out.Remaining)
	if len(out.Ledger) == 0 {
		return nil
	}

	fmt.Fprintln(os.Stdout, "\nRecent activity:")
	for _, e := range out.Ledger {
		sign := "+"
		if e.EntryType == domain.EntryDebit {
			sign = "-"
		}
		fmt.Fprintf(os.Stdout, "  %s  %-7s %s%d  balance=%d  %s\n",
			e.Timestamp.Format("2006-01-02 15:04"), e.Type, sign, e.Amount, e.Balance, e.Description)
	}
	return nil
}

var creditsGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Grant credits to a user (admin)",
	Long:  `Top up a user's credit balance. The acting user must have the admin role.`,
	RunE:  runCreditsGrant,
}

func runCreditsGrant(cmd *cobra.Command, args []string) error {
	if _, err := requireUserFlag(cmd); err != nil {
		return err
	}

	to, _ := cmd.Flags().GetString("to")
	amount, _ := cmd.Flags().GetInt64("amount")
	if to == "" || amount <= 0 {
		return fmt.Errorf("both --to and a positive --amount are required")
	}

	var out struct {
		UserID    string `json:"user_id"`
		Remaining int64  `json:"remaining"`
	}
	err := callAPI(cmd, "POST", "/api/credits/grant", map[string]interface{}{
		"user_id": to,
		"amount":  amount,
	}, &out)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "✅ Granted %d credits to %s (balance: %d)\n", amount, to, out.Remaining)
	return nil
}
