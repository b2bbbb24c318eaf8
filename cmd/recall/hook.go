package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/recall/pkg/config"
	"github.com/odvcencio/recall/pkg/hooks"
	"github.com/odvcencio/recall/pkg/logging"
	"github.com/odvcencio/recall/pkg/paths"
	"github.com/odvcencio/recall/pkg/session"
)

// maxHookStdinBytes caps stdin reads. Hook payloads are small JSON
// objects; 1 MB is generous headroom against unbounded allocation.
const maxHookStdinBytes = 1 << 20

func newHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Hook handlers invoked by the host agent",
		Args:  cobra.NoArgs,
	}

	// Handler subcommands are called by the host's hook system, not by
	// people. Hidden to keep the help surface small.
	for _, sub := range []*cobra.Command{
		newHookSessionStartCmd(),
		newHookUserPromptCmd(),
		newHookPreCompactCmd(),
		newHookSessionEndCmd(),
	} {
		sub.Hidden = true
		cmd.AddCommand(sub)
	}
	return cmd
}

// readHookInput parses the host's stdin payload. A malformed payload
// degrades to an empty input; the pipelines fall back to the process
// working directory.
func readHookInput() hooks.Input {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, maxHookStdinBytes))
	if err != nil {
		return hooks.Input{}
	}
	var in hooks.Input
	_ = json.Unmarshal(data, &in)
	if in.CWD == "" {
		in.CWD, _ = os.Getwd()
	}
	return in
}

// hookEnv is the shared setup every handler performs.
type hookEnv struct {
	input  hooks.Input
	runner *hooks.Runner
	logger *logging.Logger
}

func setupHook(eventName string) (*hookEnv, error) {
	in := readHookInput()

	cfg, err := config.Load(in.CWD)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// Diagnostics are best effort: a broken log dir must not block the
	// host, so a failed open just leaves the logger nil.
	logger, err := logging.NewLogger(paths.LogsDir(), session.GenerateRunID(eventName))
	if err != nil {
		logger = nil
	}

	return &hookEnv{
		input:  in,
		runner: hooks.New(cfg, logger),
		logger: logger,
	}, nil
}

func (e *hookEnv) close() {
	if e.logger != nil {
		_ = e.logger.Close()
	}
}

func newHookSessionStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "session-start",
		Short:         "SessionStart handler: emits the memory context block",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setupHook("session-start")
			if err != nil {
				return err
			}
			defer env.close()

			out, err := env.runner.SessionStart(cmd.Context(), env.input)
			if err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return nil
		},
	}
}

func newHookUserPromptCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "user-prompt",
		Short:         "UserPromptSubmit handler: queues the prompt, emits light context",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setupHook("user-prompt")
			if err != nil {
				return err
			}
			defer env.close()

			out, err := env.runner.UserPrompt(cmd.Context(), env.input)
			if err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return nil
		},
	}
}

func newHookPreCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "pre-compact",
		Short:         "PreCompact handler: emits the memory anchor",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setupHook("pre-compact")
			if err != nil {
				return err
			}
			defer env.close()

			out, err := env.runner.PreCompact(cmd.Context(), env.input)
			if err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return nil
		},
	}
}

func newHookSessionEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "session-end",
		Short:         "SessionEnd handler: regenerates the work log, uploads the queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setupHook("session-end")
			if err != nil {
				return err
			}
			defer env.close()

			return env.runner.SessionEnd(cmd.Context(), env.input)
		},
	}
}
