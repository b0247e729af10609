package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/isdmx/e2bbox/actions"
	"github.com/isdmx/e2bbox/intent"
	"github.com/isdmx/e2bbox/sandbox"
)

const stopTimeout = 30 * time.Second

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "e2bbox",
		Short: "Run agent code in remote E2B sandboxes, one sandbox per user",
		Long: `e2bbox exposes code execution and sandbox file access as MCP tools.
Each user gets one remote E2B sandbox which is reused across requests and
closed when the server stops.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(configPath)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newExecCmd(&configPath),
		newListCmd(&configPath),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on the configured transport",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	app := fx.New(serverOptions(configPath))
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func newExecCmd(configPath *string) *cobra.Command {
	var language, owner string

	cmd := &cobra.Command{
		Use:   "exec [code | -]",
		Short: "Run one code snippet in the owner's sandbox and print the response",
		Long: `Run one code snippet and print the response text. The code is taken from
the argument, or from stdin when the argument is "-" or missing. Fenced
blocks are unwrapped. The sandbox is closed when the command exits.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, err := sandbox.LookupLanguage(language)
			if err != nil {
				return err
			}
			code, err := readCode(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			var plugin *actions.Plugin
			return withApp(cmd.Context(), *configPath, func(ctx context.Context) error {
				content, err := plugin.Dispatch(ctx, actions.CodeActionName(lang), actions.Message{
					Text:   code,
					Source: &actions.Source{ID: owner},
				}, nil)
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), content.Text)
				if content.Outcome != actions.OutcomeSuccess {
					return fmt.Errorf("code action ended with %s", content.Outcome)
				}
				return nil
			}, fx.Populate(&plugin))
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", sandbox.LanguagePython, "language of the code (python, javascript, bash, java, r)")
	cmd.Flags().StringVarP(&owner, "owner", "o", intent.DefaultOwner, "owner whose sandbox runs the code")
	return cmd
}

func readCode(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}

	raw, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read code from stdin: %w", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", errors.New("no code given")
	}
	return string(raw), nil
}

func newListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sandboxes known to the sandbox service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var registry *sandbox.Registry
			return withApp(cmd.Context(), *configPath, func(ctx context.Context) error {
				infos, err := registry.ListAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderSandboxes(infos))
				return nil
			}, fx.Populate(&registry))
		},
	}
}

// withApp starts the core application, runs fn and stops the application,
// closing any sandbox fn opened.
func withApp(ctx context.Context, configPath string, fn func(ctx context.Context) error, opts ...fx.Option) error {
	if ctx == nil {
		ctx = context.Background()
	}

	app := fx.New(append([]fx.Option{coreOptions(configPath)}, opts...)...)
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}

	runErr := fn(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func renderSandboxes(infos []sandbox.Info) string {
	if len(infos) == 0 {
		return "No sandboxes found."
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		started := "-"
		if !info.StartedAt.IsZero() {
			started = info.StartedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{
			info.SandboxID,
			info.TemplateID,
			info.State,
			info.Metadata[sandbox.MetadataOwnerKey],
			started,
		})
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TEMPLATE", "STATE", "OWNER", "STARTED").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	return t.String()
}
