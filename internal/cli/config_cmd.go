package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
}

var configSetContextCmd = &cobra.Command{
	Use:   "set-context <name>",
	Short: "Create or update a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		server, _ := cmd.Flags().GetString("api")
		loginID, _ := cmd.Flags().GetString("login")
		fileBase, _ := cmd.Flags().GetString("file-base-url")
		boards, _ := cmd.Flags().GetInt64Slice("board")
		makeCurrent, _ := cmd.Flags().GetBool("current")

		cfg, err := LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		ctx, exists := cfg.Contexts[name]
		if !exists && server == "" {
			return fmt.Errorf("--api is required for a new context")
		}
		ctx.Name = name
		if server != "" {
			ctx.Server = server
		}
		if cmd.Flags().Changed("login") {
			ctx.LoginID = loginID
		}
		if cmd.Flags().Changed("file-base-url") {
			ctx.FileBaseURL = fileBase
		}
		if cmd.Flags().Changed("board") {
			ctx.Boards = boards
		}
		setContext(cfg, ctx, makeCurrent)
		if err := SaveConfig(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Context %q updated.\n", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Switch the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if err := ensureContextExists(cfg, args[0]); err != nil {
			return err
		}
		cfg.CurrentContext = args[0]
		if err := SaveConfig(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q.\n", args[0])
		return nil
	},
}

var configCurrentContextCmd = &cobra.Command{
	Use:   "current-context",
	Short: "Print the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No context configured.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.CurrentContext)
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show the configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd, cfg.Contexts); handled {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", cfgFile)
		names := make([]string, 0, len(cfg.Contexts))
		for name := range cfg.Contexts {
			names = append(names, name)
		}
		sort.Strings(names)
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintf(tw, "CURRENT\tNAME\tSERVER\tLOGIN\tBOARDS\n")
		for _, name := range names {
			ctx := cfg.Contexts[name]
			current := ""
			if cfg.CurrentContext == name {
				current = "*"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\n", current, name, ctx.Server, ctx.LoginID, ctx.Boards)
		}
		flushTable(tw)
		return nil
	},
}

func init() {
	configSetContextCmd.Flags().String("api", "", "API base URL, e.g. https://host/api")
	configSetContextCmd.Flags().String("login", "", "Login id used by commands that sign in")
	configSetContextCmd.Flags().String("file-base-url", "", "Base URL for uploaded files")
	configSetContextCmd.Flags().Int64Slice("board", nil, "Board ids watched by default")
	configSetContextCmd.Flags().Bool("current", true, "Set as current context")
	configCmd.AddCommand(configSetContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configCurrentContextCmd)
	configCmd.AddCommand(configViewCmd)
}
