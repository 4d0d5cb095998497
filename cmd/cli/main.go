// Command taxagent is the operator CLI: validate fixtures, file and transmit
// submissions, inspect tracked status and manage the schema.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "taxagent",
		Short:         "Operate the 1099-NEC filing agent",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "path to YAML config (env TAXAGENT_* overrides)")

	root.AddCommand(
		validateCmd(a),
		fileCmd(a),
		transmitCmd(a),
		statusCmd(a),
		submissionsCmd(a),
		migrateCmd(a),
		versionCmd(),
	)
	return root
}

// readAll reads p, or stdin when p is "-".
func readAll(stdin io.Reader, p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(p)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
