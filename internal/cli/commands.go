package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyike/CortexTrader/config"
	"github.com/dyike/CortexTrader/internal/agents/trader"
	"github.com/dyike/CortexTrader/internal/debug"
	"github.com/dyike/CortexTrader/internal/display"
	"github.com/dyike/CortexTrader/models"
	"github.com/dyike/CortexTrader/pkg/app"
	"github.com/dyike/CortexTrader/pkg/logger"
	"github.com/dyike/CortexTrader/pkg/utils"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

// newEngineBuilder is replaced in tests to avoid real models and market data.
var newEngineBuilder = app.NewEngineBuilder

type rootOptions struct {
	configPath string
	debug      bool
	einoDebug  bool
	errOut     io.Writer
}

// loadConfig opens the config file and applies environment and flag overrides. The
// manager keeps the file contents, without the overrides.
func (o *rootOptions) loadConfig() (*config.Manager, config.Config, error) {
	var opts []config.ManagerOption
	if o.configPath != "" {
		opts = append(opts, config.WithConfigPath(o.configPath))
	}
	mgr, err := config.NewManager(opts...)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := o.prepare(mgr.Get())
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, config.Config{}, fmt.Errorf("failed to create directories: %w", err)
	}
	return mgr, cfg, nil
}

func (o *rootOptions) prepare(cfg config.Config) config.Config {
	cfg.ApplyEnv()
	if o.debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	if o.einoDebug {
		cfg.EinoDebugEnabled = true
	}
	return cfg
}

func (o *rootOptions) logger(cfg config.Config) *logger.Logger {
	return logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: o.errOut})
}

func (o *rootOptions) buildEngine(ctx context.Context, cfg config.Config, approver trader.Approver) (*app.Engine, error) {
	log := o.logger(cfg)
	if err := debug.NewEinoDebugger(&cfg, log).Initialize(ctx); err != nil {
		log.WithError(err).Warn("eino debugger unavailable")
	}
	return newEngineBuilder(app.WithLogger(log), app.WithApprover(approver))(cfg)
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	root := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "cortextrader",
		Short: "CortexTrader - multi-agent trading analysis",
		Long: `CortexTrader runs a ticker through a desk of language-model agents: four analysts,
a bull/bear research debate, a CIO decision, an iterative trader and a three-way risk review.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			root.errOut = cmd.ErrOrStderr()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInteractiveMode(cmd.Context(), cmd.OutOrStdout(), root, NewPrompter())
		},
	}

	rootCmd.AddCommand(newAnalyzeCmd(root))
	rootCmd.AddCommand(newScheduleCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&root.configPath, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&root.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&root.einoDebug, "eino-debug", false, "Start the eino visual debugger")

	return rootCmd
}

type analyzeOptions struct {
	capital     float64
	risk        string
	portfolio   string
	symbolsFile string
	noTrade     bool
	autoApprove bool
	details     bool
	reportDir   string
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze [TICKER...]",
		Short: "Run the trading pipeline for one or more tickers",
		Example: `  cortextrader analyze AAPL
  cortextrader analyze AAPL MSFT --capital 50000 --risk conservative --no-trade
  cortextrader analyze --symbols-file watchlist.txt --report-dir ./reports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tickers := args
			if opts.symbolsFile != "" {
				fromFile, err := LoadSymbolsFromFile(opts.symbolsFile)
				if err != nil {
					return err
				}
				tickers = append(tickers, fromFile...)
			}
			if len(tickers) == 0 {
				return errors.New("at least one ticker is required")
			}
			valid, invalid := ValidateSymbols(tickers)
			if len(invalid) > 0 {
				return fmt.Errorf("invalid ticker symbols: %s", strings.Join(invalid, ", "))
			}
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), root, opts, valid, cmd.Flags().Changed("capital"))
		},
	}

	cmd.Flags().Float64Var(&opts.capital, "capital", 0, "Available capital (defaults to default_capital)")
	cmd.Flags().StringVar(&opts.risk, "risk", "", "Risk tolerance: conservative, moderate or aggressive")
	cmd.Flags().StringVar(&opts.portfolio, "portfolio", "", "YAML file with existing positions")
	cmd.Flags().StringVar(&opts.symbolsFile, "symbols-file", "", "File with one ticker per line")
	cmd.Flags().BoolVar(&opts.noTrade, "no-trade", false, "Stop after the CIO decision")
	cmd.Flags().BoolVar(&opts.autoApprove, "auto-approve", false, "Approve every order that needs human approval")
	cmd.Flags().BoolVar(&opts.details, "details", false, "Show every intermediate stage")
	cmd.Flags().StringVar(&opts.reportDir, "report-dir", "", "Write a markdown report per ticker to this directory")

	return cmd
}

func runAnalyze(ctx context.Context, out io.Writer, root *rootOptions, opts *analyzeOptions, tickers []string, capitalSet bool) error {
	_, cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	var portfolio models.Portfolio
	if opts.portfolio != "" {
		if portfolio, err = LoadPortfolio(opts.portfolio); err != nil {
			return err
		}
	}

	var approver trader.Approver = NewSurveyApprover(out)
	if opts.autoApprove {
		approver = autoApprover
	}
	engine, err := root.buildEngine(ctx, cfg, approver)
	if err != nil {
		return err
	}
	defer engine.Close()

	s := &session{out: out, engine: engine, details: opts.details, reportDir: opts.reportDir}
	var (
		errs    []error
		results []*models.RunResult
	)
	for _, ticker := range tickers {
		req := engine.Request(ticker)
		if capitalSet {
			req.AvailableCapital = opts.capital
		}
		if opts.risk != "" {
			req.RiskTolerance = models.RiskTolerance(strings.ToLower(opts.risk))
		}
		req.Portfolio = portfolio
		if opts.noTrade {
			req.EnableTrading = false
		}

		display.DisplayInfo(out, fmt.Sprintf("Starting analysis for %s", ticker))
		details, err := s.analyze(ctx, req)
		if err != nil {
			display.DisplayError(out, err, ticker)
			errs = append(errs, fmt.Errorf("%s: %w", ticker, err))
			continue
		}
		results = append(results, details.Result)
	}

	if len(tickers) > 1 {
		displayBatchSummary(out, results)
	}
	return errors.Join(errs...)
}

// session runs requests on one engine and reports each result.
type session struct {
	out       io.Writer
	engine    *app.Engine
	details   bool
	reportDir string
}

func (s *session) analyze(ctx context.Context, req models.RunRequest) (*models.RunDetails, error) {
	details, err := s.engine.Pipeline.RunWithDetails(ctx, req)
	if err != nil {
		return nil, err
	}
	display.NewResultsDisplay(s.out, s.details).Show(details)

	if s.reportDir != "" {
		path, err := writeReport(s.reportDir, details)
		if err != nil {
			return details, err
		}
		display.DisplaySuccess(s.out, "Report written to "+path)
	}
	return details, nil
}

func writeReport(dir string, details *models.RunDetails) (string, error) {
	res := details.Result
	return utils.WriteMarkdown(dir, utils.ReportFileName(res.Ticker, res.FinishedAt), display.Markdown(details))
}

func displayBatchSummary(out io.Writer, results []*models.RunResult) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render("📋 Batch summary"))
	fmt.Fprintf(out, "%-10s %-12s %-18s %s\n", "Ticker", "Action", "Status", "Errors")
	for _, r := range results {
		fmt.Fprintf(out, "%-10s %-12s %-18s %d\n", r.Ticker, r.Decision.Action, r.Status, len(r.Errors))
	}
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cortextrader %s\n", Version)
		},
	}
}
