package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/tripmesh"
	"github.com/hupe1980/tripmesh/core"
)

var sessionKey string

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Run one turn and print its events as JSON lines",
	Long: `Runs a single turn for the given session and prints every turn event
as one JSON object per line. Use the sqlite store to keep the conversation
across invocations.

Example:
  tripmesh chat --session demo "부산 2박 3일 여행 계획 세워줘"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored events of a session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		mesh, cleanup, err := buildMesh(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup.Close()

		if err := mesh.ClearSession(cmd.Context(), sessionKey); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "session %s cleared\n", sessionKey)

		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{chatCmd, clearCmd} {
		c.Flags().StringVarP(&sessionKey, "session", "s", "cli", "session key")
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	mesh, cleanup, err := buildMesh(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup.Close()

	mesh.Start(ctx)
	defer func() {
		// Wait for a triggered mail delivery before the process exits.
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Delivery.JobTimeout)
		defer cancel()
		if err := mesh.Close(closeCtx); err != nil {
			logger.Warn("pending deliveries abandoned", "error", err)
		}
	}()

	return chat(ctx, mesh, cmd.OutOrStdout(), sessionKey, strings.Join(args, " "))
}

type chatLine struct {
	Status  core.Status `json:"status"`
	Handler string      `json:"handler,omitempty"`
	Message string      `json:"message,omitempty"`
	Result  any         `json:"result,omitempty"`
	Time    string      `json:"time"`
}

func chat(ctx context.Context, mesh *tripmesh.TripMesh, out io.Writer, key, message string) error {
	_, events, err := mesh.Invoke(ctx, key, message)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	for ev := range events {
		if err := enc.Encode(chatLine{
			Status:  ev.Status,
			Handler: ev.Handler,
			Message: ev.Message,
			Result:  ev.Result,
			Time:    time.Now().Format(time.RFC3339),
		}); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
	}

	return nil
}
