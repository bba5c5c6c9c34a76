package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"outlookmcp/internal/config"
	"outlookmcp/internal/oauth"
	"outlookmcp/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates the identity has no valid token record.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the provider rejected a token request.
	ExitCodeAuthFailed = 3
	// ExitCodeConfig indicates invalid or incomplete configuration.
	ExitCodeConfig = 4
)

// errAuthRequired is returned by commands that found no usable token record.
var errAuthRequired = errors.New("authentication required")

var (
	configPath string
	logLevel   string
	logFormat  string

	// loadedConfig is populated by the root command's PersistentPreRunE.
	loadedConfig config.Config
)

// rootCmd represents the base command for outlook-mcp.
var rootCmd = &cobra.Command{
	Use:   "outlook-mcp",
	Short: "Microsoft Outlook assistant for MCP clients",
	Long: `outlook-mcp connects AI assistants to Microsoft Outlook through the
Model Context Protocol. It signs users in with Microsoft using the OAuth2
authorization-code flow and keeps one token record per user.

Run 'outlook-mcp serve' for the authentication server that receives the
provider callback, and 'outlook-mcp mcp' as the stdio server your MCP client
launches.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits with a semantic exit code on error.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "outlook-mcp version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if errors.Is(err, errAuthRequired) ||
		errors.Is(err, oauth.ErrNoRecord) ||
		errors.Is(err, oauth.ErrNoRefreshToken) {
		return ExitCodeAuthRequired
	}

	var exchangeErr *oauth.TokenExchangeError
	if errors.As(err, &exchangeErr) {
		return ExitCodeAuthFailed
	}
	var providerErr *oauth.ProviderError
	if errors.As(err, &providerErr) {
		return ExitCodeAuthFailed
	}

	var configErr config.ConfigurationError
	var validationErrs config.ValidationErrors
	if errors.Is(err, oauth.ErrConfigurationMissing) ||
		errors.As(err, &configErr) ||
		errors.As(err, &validationErrs) {
		return ExitCodeConfig
	}

	return ExitCodeError
}

// skipConfigAnnotation marks commands that run without configuration.
const skipConfigAnnotation = "outlook-mcp/skip-config"

// loadConfig builds loadedConfig from defaults, config.yaml and the
// environment, applies the logging flags, validates the result and
// initialises logging.
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipConfigAnnotation] == "true" {
		return nil
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Logging.Format = logFormat
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	// stdout belongs to the MCP stdio transport.
	logging.Init(logging.Options{
		Level:  level,
		Format: logging.Format(cfg.Logging.Format),
		Output: os.Stderr,
	})

	loadedConfig = cfg
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "", "Configuration directory or config.yaml (default ~/.config/outlook-mcp)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(newVersionCmd())
}
