package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nutrigen/nutrigen/internal/daemon"
)

// ─── Client helpers ─────────────────────────────────────────────────────────
// The generate, credits, and logs commands talk to a running server over
// its HTTP API rather than opening the database directly, so they behave
// the same against a local or remote deployment.

// serverURL resolves the target server from the --server flag or config.
func serverURL(cmd *cobra.Command) string {
	if addr, _ := cmd.Flags().GetString("server"); addr != "" {
		return "http://" + addr
	}
	cfg, err := daemon.Load()
	if err != nil {
		cfg = daemon.DefaultConfig()
	}
	return fmt.Sprintf("http://%s:%d", cfg.API.Host, cfg.API.Port)
}

// requireUserFlag returns the --user value or an error.
func requireUserFlag(cmd *cobra.Command) (string, error) {
	uid, _ := cmd.Flags().GetString("user")
	if uid == "" {
		return "", fmt.Errorf("user ID required: pass --user <id>")
	}
	return uid, nil
}

// callAPIRaw performs one JSON request and returns the raw status and body.
func callAPIRaw(cmd *cobra.Command, method, path string, body interface{}) (int, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, nil, err
		}
	}

	req, err := http.NewRequestWithContext(cmd.Context(), method, serverURL(cmd)+path, &buf)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if uid, _ := cmd.Flags().GetString("user"); uid != "" {
		req.Header.Set("X-User-ID", uid)
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("cannot reach server at %s (is 'nutrigen serve' running?): %w", serverURL(cmd), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, data, nil
}

// callAPI performs one JSON request against the server and decodes the
// response into out. Non-2xx responses surface the server's error message.
func callAPI(cmd *cobra.Command, method, path string, body, out interface{}) error {
	status, data, err := callAPIRaw(cmd, method, path, body)
	if err != nil {
		return err
	}

	if status >= 400 {
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

	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}
