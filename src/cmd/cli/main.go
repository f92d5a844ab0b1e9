package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"typofix/src/config"
	"typofix/src/llm"
	"typofix/src/logutil"
)

const (
	maxInputSizeMB = 1
	maxInputSize   = maxInputSizeMB * 1024 * 1024
)

type cliOptions struct {
	settingsPath string
	jsonOutput   bool
	verbose      bool
	text         string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"typofix-cli"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "typofix-cli",
		Short:         "Fix typos with Gemini from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.settingsPath, "settings-path", "", "Path to settings.json (overrides SETTINGS_PATH)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")

	fix := &cobra.Command{
		Use:   "fix",
		Short: "Correct --text, or stdin when --text is empty, and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFix(cmd.Context(), *opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	fix.Flags().StringVar(&opts.text, "text", "", "Text to correct")

	models := &cobra.Command{
		Use:   "models",
		Short: "List Gemini models that support content generation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModels(cmd.Context(), *opts, cmd.OutOrStdout())
		},
	}

	settings := &cobra.Command{
		Use:   "settings",
		Short: "Print the effective settings with the API key redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettings(*opts, cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(fix, models, settings)
	return cmd
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"settings-path", "json", "verbose", "text"} {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}

	return normalized
}

type environment struct {
	cfg      *config.Config
	settings config.Settings
	log      *zap.SugaredLogger
}

// load configures logging BEFORE anything else, then reads config and settings.
func load(opts cliOptions) (*environment, error) {
	var log *zap.SugaredLogger
	if opts.verbose {
		log = logutil.Setup(false, "")
	} else {
		log = logutil.Discard()
	}

	cfg, err := config.LoadWithOptions(config.LoadOptions{SettingsPathOverride: opts.settingsPath})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	st, err := config.NewStore(cfg.SettingsPath).Load()
	if err != nil {
		log.Warnw("Settings file unreadable, using defaults", "path", cfg.SettingsPath, "error", err)
	}
	log.Debugw("Config loaded", "settings", cfg.SettingsPath, "model", st.Model, "api_key", logutil.RedactKey(st.APIKey))
	return &environment{cfg: cfg, settings: st, log: log}, nil
}

func (e *environment) client() (*llm.Client, error) {
	if e.settings.APIKey == "" {
		return nil, fmt.Errorf("no API key in %s; set it in the settings UI", e.cfg.SettingsPath)
	}
	return llm.New(llm.Config{
		APIKey:  e.settings.APIKey,
		Model:   e.settings.Model,
		BaseURL: e.cfg.GeminiBaseURL,
		Timeout: e.cfg.RequestTimeout(),
	}), nil
}

type FixResult struct {
	Text        string  `json:"text"`
	Model       string  `json:"model"`
	Timestamp   string  `json:"timestamp"`
	Duration    float64 `json:"duration_seconds"`
	InputChars  int     `json:"input_chars"`
	OutputChars int     `json:"output_chars"`
}

func runFix(ctx context.Context, opts cliOptions, in io.Reader, out io.Writer) error {
	env, err := load(opts)
	if err != nil {
		return err
	}
	client, err := env.client()
	if err != nil {
		return err
	}

	text := opts.text
	if text == "" {
		text, err = readInput(in)
		if err != nil {
			return err
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	fixed, err := client.FixText(ctx, env.settings.Preprompt, text)
	elapsed := time.Since(start)
	if err != nil {
		env.log.Debugw("Fix failed", "elapsed", elapsed, "error", err)
		return fmt.Errorf("fix failed: %w", err)
	}
	env.log.Debugw("Fix completed", "elapsed", elapsed, "chars", utf8.RuneCountInString(fixed))

	if !opts.jsonOutput {
		_, err := fmt.Fprint(out, fixed)
		return err
	}
	return writeJSON(out, FixResult{
		Text:        fixed,
		Model:       env.settings.Model,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Duration:    elapsed.Seconds(),
		InputChars:  utf8.RuneCountInString(text),
		OutputChars: utf8.RuneCountInString(fixed),
	})
}

func readInput(in io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(in, maxInputSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	if len(data) > maxInputSize {
		return "", fmt.Errorf("input exceeds maximum size of %d MB", maxInputSizeMB)
	}
	if len(data) == 0 {
		return "", errors.New("no input: pass --text or pipe text on stdin")
	}
	return string(data), nil
}

func runModels(ctx context.Context, opts cliOptions, out io.Writer) error {
	env, err := load(opts)
	if err != nil {
		return err
	}
	client, err := env.client()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	models, err := client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	if opts.jsonOutput {
		return writeJSON(out, models)
	}
	for _, m := range models {
		fmt.Fprintln(out, m)
	}
	return nil
}

type settingsView struct {
	Path             string `json:"path"`
	APIKey           string `json:"api_key"`
	Preprompt        string `json:"preprompt"`
	Model            string `json:"model"`
	TurboMode        bool   `json:"turbo_mode"`
	ShowDuck         bool   `json:"show_duck"`
	ShowNotification bool   `json:"show_notification"`
}

func runSettings(opts cliOptions, out io.Writer) error {
	env, err := load(opts)
	if err != nil {
		return err
	}
	st := env.settings
	view := settingsView{
		Path:             env.cfg.SettingsPath,
		Preprompt:        st.Preprompt,
		Model:            st.Model,
		TurboMode:        st.TurboMode,
		ShowDuck:         st.ShowDuck,
		ShowNotification: st.ShowNotification,
	}
	if st.APIKey != "" {
		view.APIKey = logutil.RedactKey(st.APIKey)
	}
	if opts.jsonOutput {
		return writeJSON(out, view)
	}
	fmt.Fprintf(out, "path:              %s\n", view.Path)
	fmt.Fprintf(out, "api_key:           %s\n", view.APIKey)
	fmt.Fprintf(out, "preprompt:         %q\n", view.Preprompt)
	fmt.Fprintf(out, "model:             %s\n", view.Model)
	fmt.Fprintf(out, "turbo_mode:        %t\n", view.TurboMode)
	fmt.Fprintf(out, "show_duck:         %t\n", view.ShowDuck)
	fmt.Fprintf(out, "show_notification: %t\n", view.ShowNotification)
	return nil
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}
