package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OhSeongHyeon/mocktalkfront/config"
	"github.com/OhSeongHyeon/mocktalkfront/internal/logutil"
)

var (
	cfgFile       string
	contextName   string
	overrideURL   string
	overrideLogin string
	outputFormat  string
	logLevel      string

	appConfig *Config
	envConfig *config.Config
)

// Execute runs the CLI.
func Execute() error {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

var rootCmd = &cobra.Command{
	Use:   "mocktalk",
	Short: "Terminal client for the mocktalk board server",
	Long: `mocktalk signs in to a board server, browses boards and notifications,
and watches realtime board and notification streams.
The password is read from MOCKTALK_PASSWORD or prompted; it is never saved.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envConfig = config.Load()
		level := logLevel
		if level == "" {
			level = envConfig.LogLevel
		}
		logutil.SetLevel(level)
		// Config commands load/save the file manually.
		if strings.HasPrefix(cmd.CommandPath(), "mocktalk config") {
			return nil
		}
		if appConfig == nil {
			var err error
			appConfig, err = LoadConfig(cfgFile)
			if err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath(), "Path to the mocktalk config file")
	rootCmd.PersistentFlags().StringVar(&contextName, "context", "", "Context name to use (overrides current)")
	rootCmd.PersistentFlags().StringVar(&overrideURL, "server", "", "Override API base URL, e.g. https://host/api")
	rootCmd.PersistentFlags().StringVar(&overrideLogin, "login-id", "", "Override login id")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table|json|yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error (default from LOG_LEVEL)")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(boardsCmd)
	rootCmd.AddCommand(articlesCmd)
	rootCmd.AddCommand(commentsCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(meCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
}

// resolvedContext merges the config file, environment and flag overrides.
// Without any configured context the environment alone is used.
func resolvedContext() (*Context, error) {
	if appConfig == nil || envConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	ctxName := contextName
	if ctxName == "" {
		ctxName = appConfig.CurrentContext
	}
	cur := Context{Name: "env"}
	if ctxName != "" {
		found, ok := appConfig.Contexts[ctxName]
		if !ok {
			return nil, fmt.Errorf("context %q not found; use 'mocktalk config set-context'", ctxName)
		}
		cur = found
	}
	if overrideURL != "" {
		cur.Server = overrideURL
	}
	if overrideLogin != "" {
		cur.LoginID = overrideLogin
	}
	if cur.Server == "" {
		cur.Server = envConfig.APIBaseURL
	}
	if cur.FileBaseURL == "" {
		cur.FileBaseURL = envConfig.FileBaseURL
	}
	cur.Server = strings.TrimRight(cur.Server, "/")
	return &cur, nil
}
