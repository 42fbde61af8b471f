package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jholhewres/aughie/pkg/aughie/access"
	"github.com/jholhewres/aughie/pkg/aughie/bot"
)

// newChatCmd creates the `aughie chat` command for conversations.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant",
		Long: `Start a conversation with the assistant. Pass a message for a
single-shot answer, or no arguments for the interactive REPL.

Examples:
  aughie chat "show my jira tickets"
  aughie chat  # interactive`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}

	cmd.Flags().StringP("session", "s", "", "session id to continue (default: new for single-shot, stable per user for the REPL)")
	cmd.Flags().String("role", "developer", "role to run as (admin, developer, stakeholder, default)")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
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

	userID := currentUserID()
	roleName, _ := cmd.Flags().GetString("role")
	assistant.RegisterUser(userID, cfg.FallbackEmail, access.RoleFromString(strings.ToUpper(roleName)))

	sessionID, _ := cmd.Flags().GetString("session")

	if len(args) > 0 {
		if sessionID == "" {
			sessionID = "conv_" + uuid.NewString()[:8]
		}
		reply, err := assistant.HandleMessage(cmd.Context(), sessionID, userID, args[0])
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	}

	if sessionID == "" {
		sessionID = "conv_cli_" + userID
	}
	return runREPL(cmd.Context(), assistant, sessionID, userID)
}

// runREPL is the interactive loop. /clear wipes the conversation,
// /exit (or Ctrl+D) leaves.
func runREPL(ctx context.Context, assistant *bot.Assistant, sessionID, userID string) error {
	rl, err := readline.New("aughie> ")
	if err != nil {
		return fmt.Errorf("starting readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("Interactive mode. /clear resets the conversation, /exit leaves.")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		text := strings.TrimSpace(line)
		switch text {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/clear":
			if err := assistant.ClearSession(sessionID); err != nil {
				fmt.Printf("clear failed: %v\n", err)
				continue
			}
			fmt.Println("Conversation cleared.")
			continue
		}

		reply, err := assistant.HandleMessage(ctx, sessionID, userID, text)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Println(reply)
	}
}

func currentUserID() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "local"
}
