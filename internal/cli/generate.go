package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nutrigen/nutrigen/internal/app/orchestrator"
	"github.com/nutrigen/nutrigen/internal/domain"
)

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringP("preferences", "p", "", "Preferences as inline JSON")
	generateCmd.Flags().StringP("language", "l", "", "Response language override")
}

var generateCmd = &cobra.Command{
	Use:   "generate FEATURE",
	Short: "Run one AI generation",
	Long: fmt.Sprintf(`Run one credit-gated AI generation against the server.

Available features:
  %s`, strings.Join(featureNames(), "\n  ")),
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func featureNames() []string {
	var names []string
	for _, t := range domain.GenerationTypes() {
		names = append(names, string(t))
	}
	return names
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if _, err := requireUserFlag(cmd); err != nil {
		return err
	}

	feature := args[0]
	prefs, _ := cmd.Flags().GetString("preferences")
	lang, _ := cmd.Flags().GetString("language")

	body := map[string]interface{}{}
	if prefs != "" {
		if !json.Valid([]byte(prefs)) {
			return fmt.Errorf("--preferences must be valid JSON")
		}
		body["preferences"] = json.RawMessage(prefs)
	}
	if lang != "" {
		body["language"] = lang
	}

	fmt.Fprintf(os.Stdout, "Generating %s...\n", feature)

	status, data, err := callAPIRaw(cmd, "POST", "/api/generations/"+feature, body)
	if err != nil {
		return err
	}

	var out orchestrator.Outcome
	if jsonErr := json.Unmarshal(data, &out); jsonErr != nil || out.Status == "" {
		// Not an outcome body: an auth, routing, or server error.
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%s", apiErr.Error.Message)
		}
		return fmt.Errorf("server returned status %d", status)
	}

	switch out.Status {
	case orchestrator.OutcomeCompleted:
		fmt.Fprintf(os.Stdout, "✅ %s\n", out.Message)
		fmt.Fprintf(os.Stdout, "   Log: %s\n", out.LogID)
		fmt.Fprintf(os.Stdout, "   Credits remaining: %d\n", out.Remaining)
		if len(out.Result) > 0 {
			fmt.Fprintf(os.Stdout, "%s\n", out.Result)
		}
		return nil
	case orchestrator.OutcomeDenied:
		return fmt.Errorf("%s", out.Message)
	default:
		fmt.Fprintf(os.Stdout, "❌ %s\n", out.Message)
		if out.LogID != "" {
			fmt.Fprintf(os.Stdout, "   Log: %s\n", out.LogID)
		}
		if status == http.StatusBadGateway {
			return fmt.Errorf("generation failed")
		}
		return fmt.Errorf("generation ended with status %q", out.Status)
	}
}
