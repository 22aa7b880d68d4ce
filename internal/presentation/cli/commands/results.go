package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
	"github.com/jbctechsolutions/webdistill/internal/domain/page"
	"github.com/jbctechsolutions/webdistill/internal/presentation/cli/output"
)

type resultsFlags struct {
	db     string
	runID  string
	model  string
	url    string
	since  time.Duration
	limit  int
	offset int
}

// NewResultsCmd creates the results command.
func NewResultsCmd() *cobra.Command {
	var flags resultsFlags

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Inspect records stored in the sqlite sink",
		Long: `Inspect records written with --sink sqlite. The database is the configured
storage path when the configured sink is sqlite, ~/.webdistill/results.db
otherwise, or the file given with --db.`,
	}

	cmd.PersistentFlags().StringVar(&flags.db, "db", "", "sqlite database path")

	filterFlags := func(c *cobra.Command) {
		c.Flags().StringVar(&flags.runID, "run", "", "filter by run id")
		c.Flags().StringVar(&flags.model, "model", "", "filter by model")
		c.Flags().StringVar(&flags.url, "url", "", "filter by url substring")
		c.Flags().DurationVar(&flags.since, "since", 0, "only records newer than this (e.g. 24h)")
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List records, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(flags.db, func(store ports.ResultStoragePort) error {
				recs, err := store.List(cmd.Context(), flags.filter())
				if err != nil {
					return err
				}
				return printRecords(GetFormatter(), recs)
			})
		},
	}
	filterFlags(list)
	list.Flags().IntVarP(&flags.limit, "limit", "n", 20, "maximum records to show")
	list.Flags().IntVar(&flags.offset, "offset", 0, "records to skip")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(flags.db, func(store ports.ResultStoragePort) error {
				rec, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printRecord(GetFormatter(), rec)
			})
		},
	}

	summary := &cobra.Command{
		Use:   "summary",
		Short: "Aggregate token usage and cost by model",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(flags.db, func(store ports.ResultStoragePort) error {
				s, err := store.Summary(cmd.Context(), flags.filter())
				if err != nil {
					return err
				}
				return printResultSummary(GetFormatter(), s)
			})
		},
	}
	filterFlags(summary)

	cmd.AddCommand(list, get, summary)
	return cmd
}

func (f resultsFlags) filter() ports.ResultFilter {
	filter := ports.ResultFilter{
		RunID:  f.runID,
		Model:  f.model,
		URL:    f.url,
		Limit:  f.limit,
		Offset: f.offset,
	}
	if f.since > 0 {
		filter.Since = time.Now().Add(-f.since)
	}
	return filter
}

func withStore(path string, fn func(ports.ResultStoragePort) error) error {
	container := GetContainer()
	if container == nil {
		return fmt.Errorf("application not initialized")
	}
	store, err := container.OpenResultStore(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func printRecords(formatter *output.Formatter, recs []page.Record) error {
	if recs == nil {
		recs = []page.Record{}
	}
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Model,
			string(r.Strategy),
			strconv.Itoa(r.TotalTokens),
			truncateText(r.URL, 60),
		})
	}
	return formatter.Render(recs, output.TableData{
		Columns: []output.TableColumn{
			{Header: "ID"},
			{Header: "CREATED"},
			{Header: "MODEL"},
			{Header: "STRATEGY"},
			{Header: "TOKENS", Align: output.AlignRight},
			{Header: "URL"},
		},
		Rows: rows,
	})
}

func printRecord(formatter *output.Formatter, rec *page.Record) error {
	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(rec)
	}

	formatter.Header(rec.URL)
	formatter.Item("ID", rec.ID)
	formatter.Item("Run", rec.RunID)
	formatter.Item("Model", rec.Model)
	formatter.Item("Strategy", fmt.Sprintf("%s (%d chunks)", rec.Strategy, rec.ChunkCount))
	formatter.Item("Tokens", fmt.Sprintf("%d content, %d prompt, %d completion, %d total",
		rec.ContentTokens, rec.Usage.PromptTokens, rec.Usage.CompletionTokens, rec.TotalTokens))
	if rec.CostUSD > 0 {
		formatter.Item("Cost", fmt.Sprintf("$%.4f", rec.CostUSD))
	}
	if rec.LimitExceeded {
		formatter.Item("Limit", "exceeded")
	}
	formatter.Item("Created", rec.CreatedAt.Local().Format(time.RFC3339))
	formatter.Println("")
	return formatter.Println("%s", rec.Answer)
}

func printResultSummary(formatter *output.Formatter, s *ports.ResultSummary) error {
	rows := make([][]string, 0, len(s.ByModel)+1)
	for _, m := range s.ByModel {
		rows = append(rows, []string{
			m.Model,
			strconv.Itoa(m.Pages),
			strconv.Itoa(m.TotalTokens),
			fmt.Sprintf("$%.4f", m.CostUSD),
			strconv.Itoa(m.LimitExceeded),
		})
	}
	rows = append(rows, []string{"total", strconv.Itoa(s.Pages), strconv.Itoa(s.TotalTokens), fmt.Sprintf("$%.4f", s.CostUSD), ""})

	return formatter.Render(s, output.TableData{
		Columns: []output.TableColumn{
			{Header: "MODEL"},
			{Header: "PAGES", Align: output.AlignRight},
			{Header: "TOKENS", Align: output.AlignRight},
			{Header: "COST", Align: output.AlignRight},
			{Header: "OVER LIMIT", Align: output.AlignRight},
		},
		Rows: rows,
	})
}

func truncateText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
