package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sumatoshi-tech/codecouple/internal/config"
	"github.com/sumatoshi-tech/codecouple/internal/observability"
	"github.com/sumatoshi-tech/codecouple/internal/orchestrator"
	"github.com/sumatoshi-tech/codecouple/internal/store"
	"github.com/sumatoshi-tech/codecouple/pkg/version"
)

// NewAnalyzeCommand builds the `codecouple analyze` command: it drives the
// full extraction/changeset/edge/cluster pipeline over one repository path
// and persists the result to the on-disk store.
func NewAnalyzeCommand() *cobra.Command {
	var (
		configFile      string
		diagnosticsAddr string
	)

	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Mine a repository's git history for logical coupling",
		Long:  "Run the HistoryExtractor, ChangesetShaper, EdgeBuilder and Clusterer pipeline over a repository.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repoPath := "."
			if len(args) > 0 {
				repoPath = args[0]
			}

			return runAnalyze(cmd, repoPath, configFile, diagnosticsAddr)
		},
	}

	registerStoreFlags(cmd)
	cmd.Flags().StringVar(&configFile, "config", "", "Configuration file path (default: codecouple.yaml in CWD)")
	cmd.Flags().StringVar(&diagnosticsAddr, "diagnostics-addr", "", "Serve /healthz, /readyz and /metrics on this address while analyzing (disabled by default)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, repoPath, configFile, diagnosticsAddr string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dataDir := dataDirFlag(cmd)
	repoID := repoIDFlag(cmd)
	quiet, _ := cmd.Flags().GetBool("quiet")

	if mkErr := os.MkdirAll(dataDir, 0o755); mkErr != nil {
		return fmt.Errorf("create data dir %s: %w", dataDir, mkErr)
	}

	providers, err := initObservability()
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer func() {
		if shutdownErr := providers.Shutdown(ctx); shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	s, err := store.Open(ctx, dataDir)
	if err != nil {
		return fmt.Errorf("open store at %s: %w", dataDir, err)
	}
	defer s.Close()

	orch := orchestrator.New(s, dataDir)

	red, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create RED metrics: %w", err)
	}

	analysisMetrics, err := observability.NewAnalysisMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create analysis metrics: %w", err)
	}

	orch.WithMetrics(red, analysisMetrics)

	if diagnosticsAddr != "" {
		diag, diagErr := observability.NewDiagnosticsServer(diagnosticsAddr, providers.Meter, orch.HealthCheck)
		if diagErr != nil {
			return fmt.Errorf("start diagnostics server: %w", diagErr)
		}
		defer diag.Close()

		progressf(quiet, cmd.ErrOrStderr(), "diagnostics listening on %s", diag.Addr())
	}

	progressf(quiet, cmd.ErrOrStderr(), "analyzing repo_id=%s path=%s data_dir=%s", repoID, repoPath, dataDir)

	startedAt := time.Now()

	ctx, span := providers.Tracer.Start(ctx, "codecouple.analyze",
		trace.WithAttributes(attribute.String("codecouple.repo_id", repoID)))
	defer span.End()

	task, runErr := orch.Run(ctx, repoID, repoPath, cfg)
	span.SetAttributes(attribute.Bool("error", runErr != nil))

	if runErr != nil {
		return fmt.Errorf("analyze %s: %w", repoPath, runErr)
	}

	elapsed := time.Since(startedAt).Round(time.Millisecond)

	bold := color.New(color.Bold)
	bold.Fprintf(cmd.OutOrStdout(), "analysis complete\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  task id:       %s\n", task.TaskID)
	fmt.Fprintf(cmd.OutOrStdout(), "  entities:      %s\n", humanize.Comma(task.EntityCount))
	fmt.Fprintf(cmd.OutOrStdout(), "  relationships: %s\n", humanize.Comma(task.RelationshipCount))
	fmt.Fprintf(cmd.OutOrStdout(), "  elapsed:       %s\n", elapsed)

	return nil
}

func initObservability() (observability.Providers, error) {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.Version
	cfg.Mode = observability.ModeCLI
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"

	return observability.Init(cfg)
}
