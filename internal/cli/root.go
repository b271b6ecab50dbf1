package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/yashward001/finchat/internal/agent"
	"github.com/yashward001/finchat/internal/chart"
	"github.com/yashward001/finchat/internal/config"
	"github.com/yashward001/finchat/internal/llm"
	"github.com/yashward001/finchat/internal/market"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "finchat",
		Short: "Terminal-first market analysis agent",
		Long: `finchat is a CLI agent for stock market research.

It answers questions about prices, trends and news by calling market data
tools, and renders the results (tables, charts) directly in the terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return fmt.Errorf("interactive terminal required: use 'finchat ask <question>' for non-interactive use")
			}

			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}

			ag, err := buildAgent(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer ag.Close()

			return RunREPL(ag, 0)
		},
	}

	askCmd = &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}

			ag, err := buildAgent(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer ag.Close()

			events, err := ag.ChatWithEvents(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			for _, e := range events {
				switch e.Type {
				case "tool_result":
					fmt.Println(RenderObservation(100, e.Content))
				case "content":
					fmt.Println(e.Content)
				}
			}
			return nil
		},
	}

	modelsCmd = &cobra.Command{
		Use:   "models",
		Short: "List available models for the configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			provider, err := newProvider(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			fmt.Printf("Models for %s:\n", provider.Name())
			for _, m := range provider.Models() {
				marker := "  "
				if m.ID == provider.DefaultModel() {
					marker = "▸ "
				}
				fmt.Printf("%s%-32s %s\n", marker, m.ID, m.Name)
			}
			return nil
		},
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.finchat/config.yaml)")
	rootCmd.PersistentFlags().String("provider", "", "LLM provider to use (anthropic, openai, gemini)")
	rootCmd.PersistentFlags().String("model", "", "Model ID to use")
	_ = viper.BindPFlag("provider", rootCmd.PersistentFlags().Lookup("provider"))
	_ = viper.BindPFlag("model", rootCmd.PersistentFlags().Lookup("model"))

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(modelsCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		configDir := filepath.Join(home, ".finchat")
		if err := os.MkdirAll(configDir, 0700); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config directory: %v\n", err)
		}

		viper.AddConfigPath(configDir)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.AutomaticEnv()

	// Silently ignore missing config file - it's optional
	_ = viper.ReadInConfig()
}

// newLogger writes structured logs to a file in the config directory so log
// lines never interleave with the TUI. Falls back to a silent logger.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var w io.Writer = io.Discard
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".finchat", "finchat.log")
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600); err == nil {
			w = f
		}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// newProvider builds the configured LLM provider.
func newProvider(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	id, key, err := cfg.ResolveProvider()
	if err != nil {
		return nil, err
	}

	switch id {
	case llm.ProviderAnthropic:
		return llm.NewAnthropicProvider(key, cfg.Model)
	case llm.ProviderOpenAI:
		return llm.NewOpenAIProvider(key, cfg.Model, "")
	case llm.ProviderGemini:
		return llm.NewGeminiProvider(ctx, key, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown provider: %s", id)
	}
}

// buildAgent wires the provider, market data layer and tools together.
func buildAgent(ctx context.Context, cfg *config.Config) (*agent.Agent, error) {
	logger := newLogger(cfg.LogLevel)

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	source := market.NewHTTPSource(cfg.DataBaseURL, cfg.DataAPIKey, http.DefaultClient)
	cache := market.NewSeriesCache(source, cfg.CacheSize, cfg.CacheTTL)

	var uploader chart.Uploader
	if cfg.ImgurClientID != "" {
		uploader = chart.NewImgurUploader(cfg.ImgurClientID, "", nil)
	}

	registry := agent.NewRegistry()
	tools := []agent.Tool{
		&agent.PriceHistoryTool{Cache: cache},
		&agent.ChartAnalysisTool{Cache: cache, Renderer: chart.LineRenderer{}, Uploader: uploader},
		&agent.NewsSentimentTool{News: source},
		&agent.MarketMoversTool{Movers: source},
	}
	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			return nil, err
		}
	}

	interceptor := agent.NewInterceptor(registry, cfg.ToolTimeout, logger)
	ag, err := agent.New(provider, registry, interceptor, logger)
	if err != nil {
		return nil, err
	}

	if home, err := os.UserHomeDir(); err == nil {
		if err := ag.StartSessionLog(filepath.Join(home, ".finchat")); err != nil {
			logger.Warn("session log disabled", "error", err)
		}
	}
	return ag, nil
}
