package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/entitylock/internal/config"
	"github.com/Iron-Ham/entitylock/internal/entitylock"
	"github.com/Iron-Ham/entitylock/internal/errors"
	"github.com/Iron-Ham/entitylock/internal/event"
	"github.com/Iron-Ham/entitylock/internal/metrics"
	"github.com/Iron-Ham/entitylock/internal/stress"
)

var stressCmd = &cobra.Command{
	Use:   "stress [scenario...]",
	Short: "Run concurrency scenarios against the lock coordinator",
	Long: `Run concurrency scenarios against the lock coordinator and check that the
counters they guard come out exact.

Scenarios (all run when none are named):
  mutual-exclusion    - many owners increment one entity's counter
  parallel-keys       - owners on distinct entities hold at the same time
  timed-wait          - a bounded wait gives up while the entity is held
  global-exclusivity  - a global section races per-entity sections

Sizes come from the stress section of the config file and can be
overridden with flags or ENTITYLOCK_STRESS_* environment variables.`,
	ValidArgs: stress.Scenarios(),
	Args:      cobra.OnlyValidArgs,
	RunE:      runStress,
}

var (
	stressJSON    bool // Output results as JSON
	stressMetrics bool // Dump Prometheus metrics after the run
)

func init() {
	stressCmd.Flags().BoolVar(&stressJSON, "json", false, "Output results as JSON")
	stressCmd.Flags().BoolVar(&stressMetrics, "metrics", false, "Print lock metrics in Prometheus text format after the run")

	stressCmd.Flags().Int("workers", 0, "concurrent workers per scenario")
	stressCmd.Flags().Int("increments", 0, "critical sections per counting scenario")
	stressCmd.Flags().Int("keys", 0, "distinct entities in the parallel-keys scenario")
	stressCmd.Flags().Int("hold-ms", 0, "how long holders keep a lock, in milliseconds")
	stressCmd.Flags().Int("timeout-ms", 0, "contender bound in the timed-wait scenario, in milliseconds (0 uses locker.default_timeout_ms)")
	for flag, key := range map[string]string{
		"workers":    "stress.workers",
		"increments": "stress.increments",
		"keys":       "stress.keys",
		"hold-ms":    "stress.hold_ms",
		"timeout-ms": "stress.timeout_ms",
	} {
		_ = viper.BindPFlag(key, stressCmd.Flags().Lookup(flag))
	}

	rootCmd.AddCommand(stressCmd)
}

func runStress(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	bus := event.NewBus(event.WithBusLogger(logger))
	collector := metrics.NewCollector()
	collector.Attach(bus)
	defer collector.Detach()

	registry := prometheus.NewRegistry()
	if err := registry.Register(collector); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	runner := stress.NewRunner(stress.ParamsFromConfig(cfg),
		stress.WithLogger(logger),
		stress.WithNamePrefix(cfg.Locker.Name),
		stress.WithLockerOptions(entitylock.WithBus(bus)),
	)
	results, runErr := runner.Run(ctx, args...)

	out := cmd.OutOrStdout()
	if stressJSON {
		err = writeStressJSON(out, runner.Params(), results)
	} else {
		err = writeStressReport(out, runner.Params(), results, isTerminal(out))
	}
	if err != nil {
		return err
	}

	if stressMetrics {
		if err := writeMetrics(out, registry); err != nil {
			return err
		}
	}

	if runErr != nil {
		return runErr
	}
	if failed := countFailed(results); failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(results))
	}
	return nil
}

func countFailed(results []stress.Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed() {
			n++
		}
	}
	return n
}

// isTerminal reports whether w writes to an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type stressJSONResult struct {
	Name       string  `json:"name"`
	Passed     bool    `json:"passed"`
	Expected   int64   `json:"expected"`
	Got        int64   `json:"got"`
	DurationMS float64 `json:"duration_ms"`
	Detail     string  `json:"detail,omitempty"`
	Error      string  `json:"error,omitempty"`
	Severity   string  `json:"severity,omitempty"`
	Retryable  bool    `json:"retryable,omitempty"`
}

type stressJSONReport struct {
	Params struct {
		Workers    int   `json:"workers"`
		Increments int   `json:"increments"`
		Keys       int   `json:"keys"`
		HoldMS     int64 `json:"hold_ms"`
		TimeoutMS  int64 `json:"timeout_ms"`
	} `json:"params"`
	Results []stressJSONResult `json:"results"`
	Failed  int                `json:"failed"`
}

func writeStressJSON(w io.Writer, p stress.Params, results []stress.Result) error {
	var report stressJSONReport
	report.Params.Workers = p.Workers
	report.Params.Increments = p.Increments
	report.Params.Keys = p.Keys
	report.Params.HoldMS = p.Hold.Milliseconds()
	report.Params.TimeoutMS = p.ContenderTimeout().Milliseconds()
	report.Results = make([]stressJSONResult, 0, len(results))
	for _, r := range results {
		jr := stressJSONResult{
			Name:       r.Name,
			Passed:     r.Passed(),
			Expected:   r.Expected,
			Got:        r.Got,
			DurationMS: float64(r.Duration) / float64(time.Millisecond),
			Detail:     r.Detail,
		}
		if r.Err != nil {
			jr.Error = r.Err.Error()
			jr.Severity = errors.GetSeverity(r.Err).String()
			jr.Retryable = errors.IsRetryable(r.Err)
		}
		report.Results = append(report.Results, jr)
	}
	report.Failed = countFailed(results)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// Report styles, using the same palette as the rest of the tooling.
var (
	reportTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA"))
	reportPass  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	reportFail  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F87171"))
	reportWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	reportMuted = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	reportName  = lipgloss.NewStyle().Width(20)
)

func writeStressReport(w io.Writer, p stress.Params, results []stress.Result, styled bool) error {
	render := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}
	pad := func(text string) string {
		return reportName.Render(text)
	}

	var sb strings.Builder
	sb.WriteString(render(reportTitle, "STRESS RESULTS"))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("─", 60))
	sb.WriteString("\n")
	sb.WriteString(render(reportMuted, fmt.Sprintf("workers=%d increments=%d keys=%d hold=%s timeout=%s",
		p.Workers, p.Increments, p.Keys, p.Hold, p.ContenderTimeout())))
	sb.WriteString("\n\n")

	for _, r := range results {
		status := render(reportPass, "PASS")
		if !r.Passed() {
			status = render(reportFail, "FAIL")
		}
		fmt.Fprintf(&sb, "%s %s expected=%d got=%d %s\n",
			status, pad(r.Name), r.Expected, r.Got, render(reportMuted, r.Duration.Round(time.Microsecond).String()))
		if r.Detail != "" {
			fmt.Fprintf(&sb, "     %s\n", render(reportMuted, r.Detail))
		}
		if r.Err != nil {
			style := reportFail
			if errors.GetSeverity(r.Err) < errors.SeverityError {
				style = reportWarn
			}
			fmt.Fprintf(&sb, "     %s\n", render(style, describeError(r.Err)))
		}
	}

	failed := countFailed(results)
	sb.WriteString("\n")
	if failed == 0 {
		sb.WriteString(render(reportPass, fmt.Sprintf("%d scenarios passed", len(results))))
	} else {
		sb.WriteString(render(reportFail, fmt.Sprintf("%d of %d scenarios failed", failed, len(results))))
	}
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// describeError formats a scenario error for the report. Errors not meant
// for end users are marked unexpected; retryable ones say so.
func describeError(err error) string {
	msg := err.Error()
	if !errors.IsUserFacing(err) {
		msg = "unexpected: " + msg
	}
	if errors.IsRetryable(err) {
		msg += " (retryable)"
	}
	return msg
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	return nil
}
