package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/invoice-overlay/internal/observability"
)

var kindStyles = map[string]lipgloss.Style{
	observability.KindRemoteCall: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")),
	observability.KindDom:        lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")),
	observability.KindRuntime:    lipgloss.NewStyle().Foreground(lipgloss.Color("#6E9CD2")),
}

// DiagOptions defines the flags of the diag command.
type DiagOptions struct {
	// BaseURL is the operator API used to list recent failures.
	BaseURL    string
	HTTPClient *http.Client
	// Redis and Channel are used when Follow is set.
	Redis      *redis.Client
	Channel    string
	Follow     bool
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// DiagCommand prints the recent failures of a running engine, or streams
// new ones from Redis when following. It returns the process exit code.
func DiagCommand(ctx context.Context, opts DiagOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	emit := func(f observability.Failure) {
		if err := WriteFailure(opts.Stdout, f, opts.JSONOutput); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "diag: write: %v\n", err)
		}
	}

	if opts.Follow {
		if opts.Redis == nil {
			_, _ = fmt.Fprintln(opts.Stderr, "diag: --follow needs REDIS_ADDR")
			return 1
		}
		if err := observability.Follow(ctx, opts.Redis, opts.Channel, emit); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "diag: follow: %v\n", err)
			return 1
		}
		return 0
	}

	failures, err := fetchRecent(ctx, opts)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "diag: %v\n", err)
		return 1
	}
	for _, f := range failures {
		emit(f)
	}
	return 0
}

func fetchRecent(ctx context.Context, opts DiagOptions) ([]observability.Failure, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	base := opts.BaseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/diagnostics", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get diagnostics: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get diagnostics: unexpected status %d", resp.StatusCode)
	}
	var body struct {
		Failures []observability.Failure `json:"failures"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode diagnostics: %w", err)
	}
	return body.Failures, nil
}

// WriteFailure prints one failure as a styled line or a JSON object.
func WriteFailure(w io.Writer, f observability.Failure, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(f)
	}
	style, ok := kindStyles[f.Kind]
	if !ok {
		style = labelStyle
	}
	_, err := fmt.Fprintf(w, "%s %s %s %s\n",
		labelStyle.Render(f.At.Format(time.RFC3339)),
		style.Render(f.Kind),
		valueStyle.Render(f.Op),
		f.Message)
	return err
}
