package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alexjbarnes/wordswipe-sync/internal/app"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the local study data",
	Long: `Print the studied words and daily stats held in the local store.
Nothing is fetched from or sent to the document service.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("format", formatJSON, "Output format: json or yaml")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != formatJSON && format != formatYAML {
		return fmt.Errorf("unknown format %q", format)
	}

	c, err := loadComponents(true)
	if err != nil {
		return err
	}
	defer c.Close()

	snap, err := c.app.Snapshot()
	if err != nil {
		return fmt.Errorf("reading local data: %w", err)
	}

	return writeSnapshot(cmd.OutOrStdout(), snap, format)
}

// writeSnapshot renders snap in format. YAML goes through the generic
// JSON form so records keep the field names other clients wrote.
func writeSnapshot(w io.Writer, snap app.Snapshot, format string) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	if format == formatJSON {
		_, err := fmt.Fprintln(w, string(data))
		return err
	}

	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}

	return enc.Close()
}
