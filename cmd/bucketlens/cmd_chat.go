package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yairfalse/bucketlens/internal/agent"
	"github.com/yairfalse/bucketlens/internal/format"
)

var (
	chatMode    string
	chatQuery   string
	chatSurface string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions about your buckets",
	Long: `Ask natural-language questions about your S3 buckets.

Without --query an interactive session starts; type "exit" to leave and
"clear" to drop cached reports.`,
	Example: `  bucketlens chat                                   # Interactive session
  bucketlens chat -q "which bucket is the largest?" # One question
  bucketlens chat --mode classifier                 # Classifier-routed agent`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVarP(&chatMode, "mode", "m", "", "Agent mode: classifier or tools (default from config)")
	chatCmd.Flags().StringVarP(&chatQuery, "query", "q", "", "Ask one question and exit")
	chatCmd.Flags().StringVar(&chatSurface, "surface", format.SurfaceText, "Answer formatting: "+strings.Join(format.Surfaces(), ", "))
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg.Agent.Surface = chatSurface

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	svc, err := a.service(chatMode)
	if err != nil {
		return err
	}

	if chatQuery != "" {
		answer, err := svc.Chat(ctx, chatQuery)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), answer)
		return nil
	}
	return repl(ctx, svc, os.Stdin, cmd.OutOrStdout())
}

// session is the part of agent.Service the interactive loop needs.
type session interface {
	Ask(ctx context.Context, query string) (agent.Outcome, error)
	ClearCache(ctx context.Context) error
}

// repl reads one question per line until EOF, "exit" or "quit".
func repl(ctx context.Context, s session, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Ask about your S3 buckets. Type \"exit\" to quit.")
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "clear":
			if err := s.ClearCache(ctx); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			} else {
				fmt.Fprintln(out, "Cache cleared.")
			}
			continue
		}

		outcome, err := s.Ask(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, outcome.Answer)
	}
}
