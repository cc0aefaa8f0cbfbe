package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printYAML(w io.Writer, data interface{}) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// writeOutput prints data for the structured formats and reports whether
// it did. Table output is left to the caller.
func writeOutput(cmd *cobra.Command, data interface{}) (bool, error) {
	switch strings.ToLower(outputFormat) {
	case "json":
		return true, printJSON(cmd.OutOrStdout(), data)
	case "yaml", "yml":
		return true, printYAML(cmd.OutOrStdout(), data)
	case "table", "":
		return false, nil
	default:
		return true, fmt.Errorf("unsupported output format %q", outputFormat)
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func flushTable(tw *tabwriter.Writer) {
	_ = tw.Flush()
}

func humanDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	units := []struct {
		Dur  time.Duration
		Name string
	}{
		{time.Hour, "h"},
		{time.Minute, "m"},
		{time.Second, "s"},
	}
	var parts []string
	remainder := d
	for _, unit := range units {
		if remainder >= unit.Dur {
			value := remainder / unit.Dur
			remainder -= value * unit.Dur
			parts = append(parts, fmt.Sprintf("%d%s", value, unit.Name))
			if len(parts) == 2 {
				break
			}
		}
	}
	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, " ")
}

func untilTime(now, t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	diff := t.Sub(now)
	if diff < 0 {
		return humanDuration(diff) + " ago"
	}
	return "in " + humanDuration(diff)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func readLine(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// lockedWriter serializes lines written from channel goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Printf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format, args...)
}
