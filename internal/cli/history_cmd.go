package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/OhSeongHyeon/mocktalkfront/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show locally recorded session and realtime history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		event, _ := cmd.Flags().GetString("event")
		if envConfig == nil {
			return fmt.Errorf("configuration not loaded")
		}
		hist, err := store.Open(envConfig.HistoryPath)
		if err != nil {
			return err
		}
		defer hist.Close()
		entries, err := hist.ListHistory(limit, event)
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd, entries); handled {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No history recorded.")
			return nil
		}
		now := time.Now()
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintf(tw, "WHEN\tEVENT\tSCOPE\tDETAILS\n")
		for _, e := range entries {
			scope := e.Scope
			if scope == "" {
				scope = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", untilTime(now, e.CreatedAt), e.Event, scope, formatMetadata(e.Metadata))
		}
		flushTable(tw)
		return nil
	},
}

func formatMetadata(md map[string]interface{}) string {
	if len(md) == 0 {
		return ""
	}
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, md[k]))
	}
	return truncate(strings.Join(parts, " "), 80)
}

func init() {
	historyCmd.Flags().Int("limit", 50, "Maximum entries to show")
	historyCmd.Flags().String("event", "", "Only entries of this event type")
}
