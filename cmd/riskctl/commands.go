package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/riskintel/backend/internal/app"
	"github.com/riskintel/backend/internal/ingestion"
	"github.com/riskintel/backend/internal/oracle"
	"github.com/riskintel/backend/internal/service"
	"github.com/riskintel/backend/internal/storage/models"
	"github.com/riskintel/backend/pkg/config"
	"github.com/riskintel/backend/pkg/logger"
	"github.com/riskintel/backend/pkg/utils"
)

const (
	closeTimeout = 30 * time.Second
	clauseWidth  = 60
)

type rootOptions struct {
	logLevel string
	cfg      *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "riskctl",
		Short:         "Crawl intelligence sources and scan contracts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return logger.Init(opts.logLevel, "console", "stderr")
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newScanCmd(opts), newCrawlCmd(opts), newSourcesCmd(opts))
	return root
}

func newScanCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <file>",
		Short: "Run the local contract rules over a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			contracts := service.NewContracts(nil, nil, opts.cfg.Contract.MinTextLength)
			res, err := contracts.Scan(filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			renderScan(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newCrawlCmd(opts *rootOptions) *cobra.Command {
	var browser bool

	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Register a source if needed and crawl it once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts.cfg, app.Options{Browser: browser}, func(a *app.Application) error {
				src, res, err := a.Sources.CrawlNow(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				renderCrawl(cmd.OutOrStdout(), src, res)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&browser, "browser", true, "render configured dynamic sites in a headless browser")
	return cmd
}

func newSourcesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List registered sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts.cfg, app.Options{}, func(a *app.Application) error {
				sources, err := a.Sources.List(cmd.Context())
				if err != nil {
					return err
				}
				renderSources(cmd.OutOrStdout(), sources)
				return nil
			})
		},
	}
}

func withApp(ctx context.Context, cfg *config.Config, o app.Options, fn func(*app.Application) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, o)
	if err != nil {
		return err
	}

	runErr := fn(a)

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := a.Close(closeCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown: %w", err)
	}
	return runErr
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderScan(w io.Writer, res *service.ScanResult) {
	fmt.Fprintf(w, "%s: %d characters, overall risk %s\n", res.Filename, res.Characters, res.OverallRiskLevel)
	if len(res.Risks) == 0 {
		fmt.Fprintln(w, "No rule matched.")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Category", "Level", "Clause"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: clauseWidth, Transformer: wrapClause},
	})
	for i, r := range res.Risks {
		t.AppendRow(table.Row{i + 1, r.RiskCategory, levelLabel(r), r.ClauseText})
	}
	t.Render()
}

func renderCrawl(w io.Writer, src *models.Source, res ingestion.Result) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Source", "Status", "Candidates", "Accepted", "Inserted", "Message"})
	t.AppendRow(table.Row{src.URL, src.Status, res.Candidates, res.Accepted, res.Inserted, deref(src.ErrorMessage)})
	t.Render()
}

func renderSources(w io.Writer, sources []models.Source) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "URL", "Status", "Last crawled", "Error"})
	for _, s := range sources {
		last := "-"
		if s.LastCrawledAt != nil {
			last = s.LastCrawledAt.Local().Format("2006-01-02 15:04")
		}
		t.AppendRow(table.Row{s.ID, s.URL, s.Status, last, deref(s.ErrorMessage)})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(sources)})
	t.Render()
}

func levelLabel(r oracle.RiskFinding) string {
	switch r.RiskLevel {
	case models.RiskHigh:
		return text.FgRed.Sprint(r.RiskLevel)
	case models.RiskMedium:
		return text.FgYellow.Sprint(r.RiskLevel)
	default:
		return r.RiskLevel
	}
}

func wrapClause(val interface{}) string {
	s, _ := val.(string)
	return utils.TruncateRunes(s, clauseWidth*3)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
