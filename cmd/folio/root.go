package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"folio/pkg/chat"
	"folio/pkg/config"
	"folio/pkg/flowise"
	"folio/pkg/logging"
	"folio/pkg/version"
)

// app holds the process wiring. Tests swap the IO and the factories.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	lookupEnv    func(string) (string, bool)
	isTerminal   func() bool
	newTransport func(cfg config.FlowiseConfig, logger *slog.Logger) (chat.Transport, error)
	runProgram   func(ctx context.Context, model tea.Model) error

	// flags
	configPath string
	apiHost    string
	chatflowID string
	apiKey     string
	timeout    int
	verbose    bool

	cfg    config.Config
	logger *slog.Logger
}

func newApp() *app {
	return &app{
		in:        os.Stdin,
		out:       os.Stdout,
		errOut:    os.Stderr,
		lookupEnv: os.LookupEnv,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		},
		newTransport: func(cfg config.FlowiseConfig, logger *slog.Logger) (chat.Transport, error) {
			client, err := flowise.New(cfg, flowise.WithLogger(logger))
			if err != nil {
				return nil, err
			}
			logger.Debug("flowise_client_ready", "endpoint", client.Endpoint(), "header_timeout", client.Timeout())
			return client, nil
		},
		runProgram: func(ctx context.Context, model tea.Model) error {
			_, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
			return err
		},
		logger: slog.Default(),
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "folio",
		Short: "Chat with the portfolio assistant from your terminal",
		Long: `folio talks to a Flowise chatflow and renders the conversation in the
terminal. Without a subcommand it opens the interactive chat.`,
		Version:       version.Summary(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          a.runChat,
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ~/.folio/config.json)")
	flags.StringVar(&a.apiHost, "api-host", "", "Flowise base URL, e.g. https://flowise.example.com")
	flags.StringVar(&a.chatflowID, "chatflow-id", "", "Flowise chatflow id")
	flags.StringVar(&a.apiKey, "api-key", "", "Flowise API key sent as a bearer token")
	flags.IntVar(&a.timeout, "timeout", 0, "request timeout in seconds")
	flags.BoolVar(&a.verbose, "verbose", false, "also write logs to stderr")

	root.AddCommand(newChatCmd(a))
	root.AddCommand(newAskCmd(a))
	root.AddCommand(newConfigCmd(a))
	root.AddCommand(newVersionCmd(a))
	return root
}

func (a *app) resolvedConfigPath() string {
	if a.configPath != "" {
		return a.configPath
	}
	return config.GetConfigPath()
}

// setup loads the config file, then env, then flags, and starts logging.
// requireFlowise additionally validates the endpoint settings.
func (a *app) setup(cmd *cobra.Command, requireFlowise bool) error {
	path := a.resolvedConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(a.lookupEnv); err != nil {
		return err
	}
	a.applyFlags(cmd, &cfg)

	if requireFlowise {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("%w (config: %s)", err, path)
		}
	}

	var stderr io.Writer
	if a.verbose {
		stderr = a.errOut
	}
	logger, err := logging.Init(cfg, logging.Options{Stderr: stderr})
	if err != nil {
		fmt.Fprintf(a.errOut, "Warning: file logging disabled: %v\n", err)
	}

	a.cfg = cfg
	a.logger = logger
	a.logger.Debug("config_loaded",
		"config_path", path,
		"endpoint_host", cfg.Flowise.APIHost,
		"chatflow_id", cfg.Flowise.ChatflowID,
		"authenticated", cfg.Flowise.APIKey != "",
		"timeout_seconds", cfg.Flowise.TimeoutSeconds,
	)
	return nil
}

func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("api-host") {
		cfg.Flowise.APIHost = a.apiHost
	}
	if flags.Changed("chatflow-id") {
		cfg.Flowise.ChatflowID = a.chatflowID
	}
	if flags.Changed("api-key") {
		cfg.Flowise.APIKey = a.apiKey
	}
	if flags.Changed("timeout") {
		cfg.Flowise.TimeoutSeconds = a.timeout
	}
}

func (a *app) transport() (chat.Transport, error) {
	tr, err := a.newTransport(a.cfg.Flowise, a.logger)
	if err != nil {
		return nil, fmt.Errorf("create flowise client: %w", err)
	}
	return tr, nil
}
