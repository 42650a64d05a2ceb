package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyike/CortexTrader/config"
	"github.com/dyike/CortexTrader/internal/agents/trader"
	"github.com/dyike/CortexTrader/internal/display"
	"github.com/dyike/CortexTrader/internal/metrics"
	"github.com/dyike/CortexTrader/internal/scheduler"
	"github.com/dyike/CortexTrader/models"
	"github.com/dyike/CortexTrader/pkg/app"
	"github.com/dyike/CortexTrader/pkg/logger"
)

type scheduleOptions struct {
	cron        string
	watchlist   []string
	metricsAddr string
	reportDir   string
	autoApprove bool
	noTrade     bool
	runNow      bool
	jobTimeout  time.Duration
}

func newScheduleCmd(root *rootOptions) *cobra.Command {
	opts := &scheduleOptions{}
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the watchlist on a cron schedule and serve /metrics",
		Long: `Runs the pipeline for every watchlist ticker on schedule_cron (six fields, seconds first).
The engine is rebuilt whenever the config file changes. Orders that need approval stay
pending unless --auto-approve is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSchedule(ctx, cmd.OutOrStdout(), root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.cron, "cron", "", "Cron expression with seconds (defaults to schedule_cron)")
	cmd.Flags().StringSliceVar(&opts.watchlist, "watchlist", nil, "Tickers to run (defaults to watchlist)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Address for /metrics (defaults to metrics_addr, \"off\" disables)")
	cmd.Flags().StringVar(&opts.reportDir, "report-dir", "", "Directory for run reports (defaults to results_dir)")
	cmd.Flags().BoolVar(&opts.autoApprove, "auto-approve", false, "Approve every order that needs human approval")
	cmd.Flags().BoolVar(&opts.noTrade, "no-trade", false, "Stop after the CIO decision")
	cmd.Flags().BoolVar(&opts.runNow, "run-now", false, "Run the watchlist once at startup")
	cmd.Flags().DurationVar(&opts.jobTimeout, "job-timeout", 30*time.Minute, "Upper bound for one watchlist pass")

	return cmd
}

func runSchedule(ctx context.Context, out io.Writer, root *rootOptions, opts *scheduleOptions) error {
	mgr, cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	cronExpr := firstNonEmpty(opts.cron, cfg.ScheduleCron)
	watchlist := opts.watchlist
	if len(watchlist) == 0 {
		watchlist = cfg.Watchlist
	}
	tickers, invalid := ValidateSymbols(watchlist)
	if len(invalid) > 0 {
		return fmt.Errorf("invalid ticker symbols: %s", strings.Join(invalid, ", "))
	}
	if len(tickers) == 0 {
		return errors.New("watchlist is empty: set watchlist in the config or pass --watchlist")
	}

	log := root.logger(cfg)
	var approver trader.Approver
	if opts.autoApprove {
		approver = autoApprover
	}
	build := newEngineBuilder(app.WithLogger(log), app.WithApprover(approver))
	rt, err := app.NewRuntime(mgr,
		app.WithBuilder(func(c config.Config) (*app.Engine, error) { return build(root.prepare(c)) }),
		app.WithRuntimeLogger(log))
	if err != nil {
		return err
	}
	defer rt.Close()

	reportDir := firstNonEmpty(opts.reportDir, cfg.ResultsDir)
	template := models.RunRequest{
		AvailableCapital: cfg.DefaultCapital,
		RiskTolerance:    models.RiskTolerance(cfg.DefaultRiskTolerance),
		EnableTrading:    cfg.EnableTrading && !opts.noTrade,
	}
	job := scheduler.NewWatchlistJob(cronExpr, tickers, template, scheduler.RunnerFunc(rt.Run),
		scheduler.OnResult(func(res *models.RunResult) {
			path, err := writeReport(reportDir, &models.RunDetails{Result: res})
			if err != nil {
				log.WithError(err).WithField("ticker", res.Ticker).Warn("failed to write report")
				return
			}
			log.WithField("path", path).Info("report written")
		}),
		scheduler.WithJobLogger(log))

	sched := scheduler.New(log, scheduler.WithJobTimeout(opts.jobTimeout))
	if err := sched.AddJob(job); err != nil {
		return err
	}

	if addr := firstNonEmpty(opts.metricsAddr, cfg.MetricsAddr); addr != "off" {
		srv := serveMetrics(addr, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		display.DisplayInfo(out, "Metrics at http://"+addr+"/metrics")
	}

	sched.Start()
	defer sched.Stop()

	display.DisplayInfo(out, fmt.Sprintf("Watching %s on %q", strings.Join(tickers, ", "), cronExpr))
	if next, ok := sched.NextRun(job.Name()); ok && !next.IsZero() {
		display.DisplayInfo(out, "Next run at "+next.Format(time.RFC1123))
	}
	if opts.runNow {
		go func() {
			if _, err := sched.RunNow(job.Name()); err != nil {
				log.WithError(err).Error("run-now failed")
			}
		}()
	}

	<-ctx.Done()
	display.DisplayInfo(out, "Shutting down scheduler")
	return nil
}

func serveMetrics(addr string, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(nil))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).WithField("addr", addr).Error("metrics server failed")
		}
	}()
	return srv
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
