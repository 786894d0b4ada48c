package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/internal/config"
	"github.com/hupe1980/impromptu/model"
)

func newChatCmd() *cobra.Command {
	var timezone string

	cmd := &cobra.Command{
		Use:   "chat <request>",
		Short: "Run one request and print the event list as JSON",
		Example: `  impromptu chat "Schedule a team sync tomorrow at 10 AM" --timezone Europe/Berlin`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			// Metrics are not scraped from a one-shot process.
			cfg.Server.Metrics = false
			return runChat(cmd.Context(), cfg, nil, strings.Join(args, " "), timezone, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA time zone of the user (e.g. Europe/Berlin)")
	return cmd
}

func runChat(ctx context.Context, cfg *config.Config, llm model.Model, input, timezone string, out, logOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := buildApp(ctx, cfg, llm, logOut)
	if err != nil {
		return err
	}
	defer func() { _ = app.Shutdown(context.Background()) }()

	events := app.Assistant.ChatInterface(ctx, input, timezone)
	if err := writeEvents(out, events); err != nil {
		return err
	}
	if n := len(events); n > 0 {
		if ev, ok := events[n-1].(core.AgentErrorEvent); ok {
			return fmt.Errorf("run failed: %s", ev.Message)
		}
	}
	return nil
}

func writeEvents(w io.Writer, events []core.AgentEvent) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}
