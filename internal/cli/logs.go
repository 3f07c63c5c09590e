package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nutrigen/nutrigen/internal/domain"
)

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().IntP("limit", "n", 20, "Maximum number of logs to show")
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent generation logs",
	Long:  `Show the user's recent AI generation attempts, newest first.`,
	RunE:  runLogs,
}

func runLogs(cmd *cobra.Command, args []string) error {
	if _, err := requireUserFlag(cmd); err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")

	var out struct {
		Logs []domain.GenerationLog `json:"logs"`
	}
	if err := callAPI(cmd, "GET", fmt.Sprintf("/api/generations?limit=%d", limit), nil, &out); err != nil {
		return err
	}

	if len(out.Logs) == 0 {
		fmt.Fprintln(os.Stdout, "No generations yet.")
		return nil
	}

	for _, lg := range out.Logs {
		marker := "•"
		switch lg.Status {
		case domain.GenerationCompleted:
			marker = "✅"
		case domain.GenerationFailed:
			marker = "❌"
		}
		fmt.Fprintf(os.Stdout, "%s %s  %-20s %-9s %s\n",
			marker, lg.CreatedAt.Format("2006-01-02 15:04"), lg.Type, lg.Status, lg.ID)
		if lg.ErrorMessage != "" {
			fmt.Fprintf(os.Stdout, "     %s\n", lg.ErrorMessage)
		}
	}
	return nil
}
