package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/webdistill/internal/application"
	"github.com/jbctechsolutions/webdistill/internal/application/crawl"
	"github.com/jbctechsolutions/webdistill/internal/domain/page"
	"github.com/jbctechsolutions/webdistill/internal/presentation/cli/output"
)

type runFlags struct {
	model            string
	policy           string
	instructions     string
	instructionsFile string
	format           string
	sink             string
	out              string
	listFile         string
	local            []string
	concurrency      int
	continueOnAuth   bool
}

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run [url|path...]",
		Short: "Run instructions over a list of pages",
		Long: `Fetch every page, convert it and run the instructions on it.

Sources are http(s) URLs or paths to saved pages. They can be given as
arguments, read from a list file (one per line, # starts a comment, "-"
reads standard input) or matched with --local glob patterns.

Pages larger than the model context are handled by --policy:
  skip      drop the page, no record is written
  truncate  keep the leading part that fits
  split     process every chunk and join the answers`,
		Example: `  # Summarize two pages with the configured model
  webdistill run https://example.com/a https://example.com/b -i "Summarize the page."

  # Split long pages, read URLs from a file, write records to sqlite
  webdistill run --file urls.txt --policy split --sink sqlite --out results.db

  # Process saved HTML files
  webdistill run --local 'pages/*.html' --instructions-file prompt.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPages(cmd, args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.model, "model", "m", "", "model id (overrides config)")
	cmd.Flags().StringVarP(&flags.policy, "policy", "p", "", "oversize policy: "+page.PolicyNames())
	cmd.Flags().StringVarP(&flags.instructions, "instructions", "i", "", "instruction text")
	cmd.Flags().StringVar(&flags.instructionsFile, "instructions-file", "", "read instructions from a file")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "", "content format: markdown, text, html")
	cmd.Flags().StringVar(&flags.sink, "sink", "", "record sink: jsonl, sqlite, none")
	cmd.Flags().StringVar(&flags.out, "out", "", `sink path ("-" writes jsonl to stdout)`)
	cmd.Flags().StringVar(&flags.listFile, "file", "", "read sources from a file")
	cmd.Flags().StringSliceVar(&flags.local, "local", nil, "glob patterns of local html files")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "pages processed at once (overrides config)")
	cmd.Flags().BoolVar(&flags.continueOnAuth, "continue-on-auth-error", false, "keep going after a credential failure")

	return cmd
}

func runPages(cmd *cobra.Command, args []string, flags runFlags) error {
	container := GetContainer()
	if container == nil {
		return fmt.Errorf("application not initialized")
	}
	formatter := GetFormatter()

	sources, err := collectSources(args, flags.listFile, flags.local, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources given: pass URLs or paths, --file or --local")
	}

	instructions := flags.instructions
	if flags.instructionsFile != "" {
		data, err := os.ReadFile(flags.instructionsFile)
		if err != nil {
			return fmt.Errorf("failed to read instructions file: %w", err)
		}
		instructions = strings.TrimSpace(string(data))
	}

	run, err := container.NewRun(application.RunOptions{
		Model:               flags.model,
		Policy:              flags.policy,
		Instructions:        instructions,
		Format:              flags.format,
		Sink:                flags.sink,
		OutputPath:          flags.out,
		PageConcurrency:     flags.concurrency,
		ContinueOnAuthError: flags.continueOnAuth,
	})
	if err != nil {
		return err
	}

	summary, runErr := run.Runner.Run(cmd.Context(), sources)
	if err := run.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to close sink: %w", err)
	}

	if err := printSummary(formatter, run, summary); err != nil {
		return err
	}
	return runErr
}

// collectSources merges positional sources, the list file and local globs,
// dropping duplicates while keeping first-seen order.
func collectSources(args []string, listFile string, patterns []string, stdin io.Reader) ([]string, error) {
	var sources []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || strings.HasPrefix(s, "#") || seen[s] {
			return
		}
		seen[s] = true
		sources = append(sources, s)
	}

	for _, a := range args {
		add(a)
	}

	if listFile != "" {
		r := stdin
		if listFile != "-" {
			f, err := os.Open(listFile)
			if err != nil {
				return nil, fmt.Errorf("failed to open source list: %w", err)
			}
			defer f.Close()
			r = f
		}
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			add(sc.Text())
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("failed to read source list: %w", err)
		}
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad --local pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("--local pattern %q matched no files", pattern)
		}
		for _, m := range matches {
			add(m)
		}
	}

	return sources, nil
}

func printSummary(formatter *output.Formatter, run *application.Run, summary *crawl.Summary) error {
	if summary == nil {
		return nil
	}
	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(summary)
	}

	formatter.Header("Run " + summary.RunID)
	formatter.Item("Model", summary.Model)
	formatter.Item("Policy", string(run.Policy))
	formatter.Item("Pages", fmt.Sprintf("%d processed, %d skipped, %d failed", summary.Processed, summary.Skipped, summary.Failed))
	formatter.Item("Tokens", strconv.Itoa(summary.TotalTokens))
	if summary.CostUSD > 0 {
		formatter.Item("Cost", fmt.Sprintf("$%.4f", summary.CostUSD))
	}
	formatter.Item("Duration", summary.Duration.Round(time.Millisecond).String())
	formatter.Println("")

	rows := make([][]string, 0, len(summary.Pages))
	for _, p := range summary.Pages {
		chunks, tokens, limit := "-", "-", ""
		if p.Record != nil {
			chunks = strconv.Itoa(p.Record.ChunkCount)
			tokens = strconv.Itoa(p.Record.TotalTokens)
			if p.Record.LimitExceeded {
				limit = "exceeded"
			}
		}
		note := limit
		if p.Error != "" {
			note = p.Error
		}
		rows = append(rows, []string{p.Location, string(p.Status), string(p.Strategy), chunks, tokens, note})
	}
	if err := formatter.Table(output.TableData{
		Columns: []output.TableColumn{
			{Header: "SOURCE"},
			{Header: "STATUS"},
			{Header: "STRATEGY"},
			{Header: "CHUNKS", Align: output.AlignRight},
			{Header: "TOKENS", Align: output.AlignRight},
			{Header: "NOTE"},
		},
		Rows: rows,
	}); err != nil {
		return err
	}

	if summary.Aborted {
		formatter.Warning("run stopped after a credential failure")
	}
	return nil
}
