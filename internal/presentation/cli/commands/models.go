package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/webdistill/internal/presentation/cli/output"
)

// ModelEntry is one catalog row.
type ModelEntry struct {
	ID          string   `json:"id"`
	Provider    string   `json:"provider"`
	MaxTokens   int      `json:"max_tokens"`
	InputPer1K  *float64 `json:"input_per_1k,omitempty"`
	OutputPer1K *float64 `json:"output_per_1k,omitempty"`
	Available   bool     `json:"available"`
}

// NewModelsCmd creates the models command.
func NewModelsCmd() *cobra.Command {
	var providerName string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List known models and their context windows",
		Long: `List the model catalog: built-in models plus the custom entries from the
configuration. A model is available when its provider is enabled and,
for hosted providers, has an API key.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listModels(GetFormatter(), providerName)
		},
	}

	cmd.Flags().StringVarP(&providerName, "provider", "p", "", "only show models of this provider")
	return cmd
}

func listModels(formatter *output.Formatter, providerName string) error {
	container := GetContainer()
	if container == nil {
		return fmt.Errorf("application not initialized")
	}

	var entries []ModelEntry
	for _, m := range container.Catalog().Models() {
		if providerName != "" && m.Provider != providerName {
			continue
		}
		e := ModelEntry{
			ID:        m.ID,
			Provider:  m.Provider,
			MaxTokens: m.MaxTokens,
			Available: container.ProviderRegistry().Get(m.Provider) != nil,
		}
		if rate, ok := container.Prices().Rate(m.ID); ok {
			in, out := rate.Input, rate.Output
			e.InputPer1K, e.OutputPer1K = &in, &out
		}
		entries = append(entries, e)
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		price := "-"
		if e.InputPer1K != nil {
			price = fmt.Sprintf("$%.5f / $%.5f", *e.InputPer1K, *e.OutputPer1K)
		}
		avail := "no"
		if e.Available {
			avail = "yes"
		}
		rows = append(rows, []string{e.ID, e.Provider, strconv.Itoa(e.MaxTokens), price, avail})
	}

	return formatter.Render(entries, output.TableData{
		Columns: []output.TableColumn{
			{Header: "MODEL"},
			{Header: "PROVIDER"},
			{Header: "CONTEXT", Align: output.AlignRight},
			{Header: "PRICE IN/OUT PER 1K"},
			{Header: "AVAILABLE"},
		},
		Rows: rows,
	})
}
