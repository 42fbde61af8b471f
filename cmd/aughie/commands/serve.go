package commands

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/aughie/pkg/aughie/access"
	"github.com/jholhewres/aughie/pkg/aughie/bot"
	"github.com/jholhewres/aughie/pkg/aughie/storage"
)

// newServeCmd creates the `aughie serve` command that runs the
// assistant as a long-lived service.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant as a service",
		Long: `Run Aughie as a long-lived service: messages arrive on stdin, one
per line, as "<session> <user> <text>". Lines starting with the
configured trigger (default "@aughie") are also accepted and routed to
a shared session. State is checkpointed on the configured schedule and
flushed on shutdown.

Examples:
  aughie serve
  aughie serve --config ./config.yaml`,
		RunE: runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := buildLogger(cmd, cfg)

	assistant, store, err := newAssistant(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	checkpointer := storage.NewCheckpointer(store, assistant, logger)
	if err := checkpointer.Start(cfg.Storage.CheckpointSchedule); err != nil {
		return fmt.Errorf("starting checkpointer: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	logger.Info("aughie running, ctrl+c to stop",
		"name", cfg.Name,
		"trigger", cfg.Trigger,
		"storage", cfg.Storage.Type,
	)

	go serveStdin(ctx, cfg.Trigger, assistant, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping")
	cancel()

	// Graceful shutdown with timeout; Stop flushes dirty sessions.
	done := make(chan struct{})
	go func() {
		checkpointer.Stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}
	return nil
}

// serveStdin reads line-framed messages until EOF or cancellation.
// Frame: "<session> <user> <text>"; a trigger-prefixed line maps to
// session "conv_shared" and user "stdin".
func serveStdin(ctx context.Context, trigger string, assistant *bot.Assistant, logger *slog.Logger) {
	assistant.RegisterUser("stdin", "", access.RoleDeveloper)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		sessionID, userID, text := parseFrame(line, trigger)
		if text == "" {
			continue
		}

		reply, err := assistant.HandleMessage(ctx, sessionID, userID, text)
		if err != nil {
			logger.Error("message handling failed", "session", sessionID, "err", err)
			continue
		}
		fmt.Println(reply)
	}
}

func parseFrame(line, trigger string) (sessionID, userID, text string) {
	if trigger != "" && strings.HasPrefix(line, trigger) {
		return "conv_shared", "stdin", strings.TrimSpace(strings.TrimPrefix(line, trigger))
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 3 {
		return "conv_shared", "stdin", line
	}
	return parts[0], parts[1], parts[2]
}
