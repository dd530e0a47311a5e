package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/registry"
)

var (
	toolsCategory string
	toolsJSON     bool
	toolsLimit    int
)

var toolsCmd = &cobra.Command{
	Use:   "tools [query]",
	Short: "List the tool catalog, optionally ranked by a fuzzy query",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		found := registry.New().Search(query, toolsCategory, toolsLimit)
		return printTools(cmd.OutOrStdout(), found, toolsJSON)
	},
}

func printTools(w io.Writer, found []registry.Tool, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(found)
	}
	if len(found) == 0 {
		_, err := fmt.Fprintln(w, "no matching tools")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCATEGORY\tREQUIRED\tDESCRIPTION")
	for _, t := range found {
		required := strings.Join(t.Required, ",")
		if required == "" {
			required = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Name, t.Category, required, t.Description)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().StringVar(&toolsCategory, "category", "", "only list tools in this category")
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "print JSON instead of a table")
	toolsCmd.Flags().IntVar(&toolsLimit, "limit", 0, "maximum number of tools (0 for all)")
}
