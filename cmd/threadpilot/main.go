// Command threadpilot is a terminal chat client for a remote thread-based
// assistant. Configuration is read from a YAML file (default
// ~/.threadpilot.yaml) and can be overridden with flags.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/threadpilot/threadpilot"
	"github.com/threadpilot/threadpilot/core"
	"github.com/threadpilot/threadpilot/logging"
)

const version = "0.3.0"

type config struct {
	APIKey      string `yaml:"api_key"`
	AssistantID string `yaml:"assistant_id"`
	BaseURL     string `yaml:"base_url"`
	PollTimeout string `yaml:"poll_timeout"` // Go duration string, e.g. "2m"
}

func (c config) pollTimeout() (time.Duration, error) {
	if c.PollTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.PollTimeout)
}

var (
	flagConfig    string
	flagAPIKey    string
	flagAssistant string
	flagBaseURL   string
	flagVerbose   bool
	flagSession   int64
)

func main() {
	root := &cobra.Command{
		Use:           "threadpilot",
		Short:         "Chat with a remote thread-based assistant",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.threadpilot.yaml)")
	root.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "API credential (overrides config)")
	root.PersistentFlags().StringVar(&flagAssistant, "assistant", "", "assistant id (overrides config)")
	root.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "API base URL (overrides config)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE:  runChat,
	}
	chatCmd.Flags().Int64Var(&flagSession, "session", 1, "session id; distinct ids keep distinct conversations")

	assistantsCmd := &cobra.Command{
		Use:   "assistants",
		Short: "List the assistants available to the configured credential",
		RunE:  runAssistants,
	}

	root.AddCommand(chatCmd, assistantsCmd)

	if err := root.Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func loadConfig() (config, error) {
	cfg := config{}

	path := flagConfig
	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, ".threadpilot.yaml")
		}
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return cfg, err
		}
	}

	if env := os.Getenv("OPENAI_API_KEY"); cfg.APIKey == "" {
		cfg.APIKey = env
	}
	if flagAPIKey != "" {
		cfg.APIKey = flagAPIKey
	}
	if flagAssistant != "" {
		cfg.AssistantID = flagAssistant
	}
	if flagBaseURL != "" {
		cfg.BaseURL = flagBaseURL
	}

	if cfg.APIKey == "" {
		return cfg, errors.New("no API credential: set api_key in the config file, OPENAI_API_KEY, or --api-key")
	}
	return cfg, nil
}

func newClient(cfg config) (*threadpilot.Threadpilot, error) {
	pollTimeout, err := cfg.pollTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid poll_timeout: %w", err)
	}
	logger := logging.Logger(logging.NoOpLogger{})
	if flagVerbose {
		logger = logging.NewSlogLogger(logging.LogLevelDebug, "text", false)
	}
	tp := threadpilot.New(func(o *threadpilot.Options) {
		o.Logger = logger
		if cfg.BaseURL != "" {
			o.BaseURL = cfg.BaseURL
		}
		if pollTimeout > 0 {
			o.EngineConfig.PollTimeout = pollTimeout
		}
	})
	tp.Configure(cfg.APIKey, cfg.AssistantID)
	return tp, nil
}

func runAssistants(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tp, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	assistants, err := tp.ListAssistants(ctx)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	for _, a := range assistants {
		bold.Printf("%s", a.ID)
		fmt.Printf("  %s", a.Name)
		if a.Model != "" {
			color.New(color.FgHiBlack).Printf("  (%s)", a.Model)
		}
		fmt.Println()
		if a.Description != "" {
			fmt.Printf("    %s\n", a.Description)
		}
	}
	return nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.AssistantID == "" {
		return errors.New("no assistant id: set assistant_id in the config file or --assistant (see `threadpilot assistants`)")
	}
	tp, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userLabel := color.New(color.FgCyan, color.Bold)
	assistantLabel := color.New(color.FgGreen, color.Bold)
	dim := color.New(color.FgHiBlack)

	dim.Println("commands: /context <file>  attach a file to the next turn")
	dim.Println("          /clear           start a fresh conversation")
	dim.Println("          /quit            exit")

	var pendingContext *core.ContextPayload
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		userLabel.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			return nil
		case line == "/clear":
			if err := tp.ClearSession(ctx, flagSession); err != nil {
				return err
			}
			pendingContext = nil
			dim.Println("conversation cleared")
			continue
		case strings.HasPrefix(line, "/context "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/context "))
			content, err := os.ReadFile(path)
			if err != nil {
				color.Red("cannot read %s: %v", path, err)
				continue
			}
			pendingContext = &core.ContextPayload{Key: filepath.Base(path), Content: string(content)}
			dim.Printf("attached %s (%d bytes)\n", path, len(content))
			continue
		}

		reply, err := tp.SubmitTurn(ctx, flagSession, line, pendingContext)
		pendingContext = nil
		switch {
		case errors.Is(err, core.ErrNoReply):
			dim.Println("(the assistant produced no reply)")
		case errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			color.Red("turn failed: %v", err)
		default:
			assistantLabel.Print("assistant> ")
			fmt.Println(reply)
		}
	}
}
