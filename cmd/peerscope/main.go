package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/matijazezelj/peerscope/internal/alert"
	"github.com/matijazezelj/peerscope/internal/config"
	"github.com/matijazezelj/peerscope/internal/inventory"
	"github.com/matijazezelj/peerscope/internal/metrics"
	"github.com/matijazezelj/peerscope/internal/refresh"
	"github.com/matijazezelj/peerscope/internal/server"
	"github.com/matijazezelj/peerscope/internal/source"
	"github.com/matijazezelj/peerscope/internal/topology"
	"github.com/matijazezelj/peerscope/pkg/models"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	cfgFile   string
	dbPath    string
	logFormat string
	logLevel  string
	logFile   string
	logger    *slog.Logger
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "peerscope",
		Short: "peerscope - virtual network peering topology",
		Long:  "Load network peering inventories, build the peering topology and explore connected components.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(logFormat, logLevel, logFile)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./peerscope.yaml)")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format (text, json)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file, rotated at 50 MB")

	root.AddCommand(
		loadCmd(),
		topologyCmd(),
		serveCmd(),
		syncCmd(),
		dbCmd(),
		versionCmd(),
		completionCmd(),
	)
	return root
}

func openStore() (*inventory.SQLiteStore, *config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}

	store, err := inventory.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := store.Init(context.Background()); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("initializing database: %w", err)
	}
	return store, cfg, nil
}

func newBuilder(cfg *config.Config) (*topology.Builder, error) {
	opts, err := cfg.BuilderOptions()
	if err != nil {
		return nil, err
	}
	return topology.NewBuilder(opts), nil
}

// openEngine returns a MemgraphEngine when Memgraph is configured and
// reachable; otherwise the local engine.
func openEngine(store inventory.Store, builder *topology.Builder, cfg *config.Config) topology.Engine {
	local := topology.NewLocalEngine(store, builder)
	if !cfg.Storage.Memgraph.Enabled {
		return local
	}

	mg, err := topology.NewMemgraphEngine(
		cfg.Storage.Memgraph.URI,
		cfg.Storage.Memgraph.Username,
		cfg.Storage.Memgraph.Password,
		local,
		logger,
	)
	if err != nil {
		logger.Warn("memgraph unavailable, using local topology engine", "error", err)
		return local
	}
	logger.Info("memgraph connected", "uri", cfg.Storage.Memgraph.URI)
	return mg
}

// newAlerter combines the configured alert backends. It returns nil when
// none is enabled.
func newAlerter(cfg *config.Config) alert.Alerter {
	var alerters []alert.Alerter
	if cfg.Alerts.Stdout.Enabled {
		alerters = append(alerters, alert.NewStdoutAlerter())
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		alerters = append(alerters, alert.NewWebhookAlerter(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Headers))
	}
	if len(alerters) == 0 {
		return nil
	}
	return alert.NewMulti(alerters...)
}

func newRefresher(store inventory.Store, builder *topology.Builder, engine topology.Engine, cfg *config.Config, m *metrics.Metrics) *refresh.Refresher {
	rf := refresh.New(store, builder, cfg, logger)
	if a := newAlerter(cfg); a != nil {
		rf.SetAlerter(a)
	}
	rf.SetMetrics(m)
	if mg, ok := engine.(*topology.MemgraphEngine); ok {
		rf.SetSync(func(ctx context.Context, t models.Topology) error {
			err := topology.SyncToMemgraph(ctx, mg.Driver(), t, logger)
			mg.SetMirrorCurrent(err == nil)
			return err
		})
	}
	return rf
}

// --- load ---

func loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load [path...]",
		Short: "Load snapshot files into the inventory (default: configured sources)",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // best-effort cleanup

			builder, err := newBuilder(cfg)
			if err != nil {
				return err
			}
			engine := openEngine(store, builder, cfg)
			defer engine.Close() //nolint:errcheck // best-effort cleanup

			rf := newRefresher(store, builder, engine, cfg, nil)
			req := refresh.Request{Source: refresh.SourceAll}
			if len(args) > 0 {
				req = refresh.Request{Source: refresh.SourceFile, Paths: args}
			}

			r := rf.RunSync(cmd.Context(), req)
			printRefreshResult(os.Stdout, r)
			return r.Error
		},
	}
}

func printRefreshResult(w io.Writer, r refresh.Result) {
	if r.Error != nil {
		_, _ = fmt.Fprintf(w, "Refresh failed: %v\n", r.Error)
		return
	}
	_, _ = fmt.Fprintf(w, "Refresh #%d complete: %d networks, %d peerings\n", r.RefreshID, r.Networks, r.Peerings)
	_, _ = fmt.Fprintf(w, "Topology: %d nodes (%d missing), %d links, %d conflicts, %d isolated\n",
		r.Summary.Networks+r.Summary.Synthesized, r.Summary.Synthesized, r.Summary.Links, r.Summary.Conflicts, r.Summary.Isolated)
	if r.Events > 0 {
		_, _ = fmt.Fprintf(w, "Alerts: %d\n", r.Events)
	}
	if len(r.Warnings) > 0 {
		_, _ = fmt.Fprintf(w, "Warnings (%d):\n", len(r.Warnings))
		for _, warn := range r.Warnings {
			_, _ = fmt.Fprintf(w, "  - %s\n", warn)
		}
	}
}

// --- topology ---

func topologyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topology",
		Short: "Query the peering topology",
	}
	cmd.AddCommand(
		topologyShowCmd(),
		topologyNodesCmd(),
		topologyLinksCmd(),
		topologyFocusCmd(),
		topologySearchCmd(),
		topologyExportCmd(),
	)
	return cmd
}

// withEngine opens the store and engine, runs fn and closes both.
func withEngine(fn func(engine topology.Engine) error) error {
	store, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck // best-effort cleanup

	builder, err := newBuilder(cfg)
	if err != nil {
		return err
	}
	engine := openEngine(store, builder, cfg)
	defer engine.Close() //nolint:errcheck // best-effort cleanup

	return fn(engine)
}

func topologyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show topology summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(func(engine topology.Engine) error {
				t, err := engine.Topology(cmd.Context())
				if err != nil {
					return err
				}
				printSummary(os.Stdout, t)
				return nil
			})
		},
	}
}

func printSummary(w io.Writer, t models.Topology) {
	s := topology.Summarize(t)
	_, _ = fmt.Fprintf(w, "Topology Summary\n")
	_, _ = fmt.Fprintf(w, "  Networks:    %d\n", s.Networks)
	_, _ = fmt.Fprintf(w, "  Missing:     %d\n", s.Synthesized)
	_, _ = fmt.Fprintf(w, "  Links:       %d\n", s.Links)
	_, _ = fmt.Fprintf(w, "  Conflicts:   %d\n", s.Conflicts)
	_, _ = fmt.Fprintf(w, "  Isolated:    %d\n\n", s.Isolated)

	counts := make(map[string]int)
	for _, n := range t.Nodes {
		counts[n.Category]++
	}
	_, _ = fmt.Fprintf(w, "Nodes by category:\n")
	for _, c := range t.Categories {
		_, _ = fmt.Fprintf(w, "  %-30s %d\n", c.Name, counts[c.Name])
	}
}

func topologyNodesCmd() *cobra.Command {
	var kind, subscription string
	var missingOnly bool

	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List topology nodes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(func(engine topology.Engine) error {
				t, err := engine.Topology(cmd.Context())
				if err != nil {
					return err
				}
				printNodes(os.Stdout, filterNodes(t.Nodes, kind, subscription, missingOnly))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "filter by kind (vnet, vhub, unknown)")
	cmd.Flags().StringVar(&subscription, "subscription", "", "filter by subscription id or name")
	cmd.Flags().BoolVar(&missingOnly, "missing", false, "only nodes referenced by peerings but absent from the inventory")
	return cmd
}

func filterNodes(nodes []models.GraphNode, kind, subscription string, missingOnly bool) []models.GraphNode {
	var out []models.GraphNode
	for _, n := range nodes {
		if kind != "" && string(n.Kind) != kind {
			continue
		}
		if subscription != "" && n.Detail.SubscriptionID != subscription && n.Detail.SubscriptionName != subscription {
			continue
		}
		if missingOnly && !n.Synthesized {
			continue
		}
		out = append(out, n)
	}
	return out
}

func printNodes(out io.Writer, nodes []models.GraphNode) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tKIND\tSUBSCRIPTION\tRESOURCE GROUP\tPEERINGS\tID")
	for _, n := range nodes {
		name := n.Name
		if n.Synthesized {
			name += " (missing)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			name, n.Kind, n.Detail.SubscriptionName, n.Detail.ResourceGroup, n.Value, n.ID)
	}
	_ = w.Flush()
}

func topologyLinksCmd() *cobra.Command {
	var state string
	var conflictsOnly bool

	cmd := &cobra.Command{
		Use:   "links",
		Short: "List peering links",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(func(engine topology.Engine) error {
				t, err := engine.Topology(cmd.Context())
				if err != nil {
					return err
				}
				var links []models.GraphEdge
				for _, l := range t.Links {
					if state != "" && !strings.EqualFold(string(l.State), state) {
						continue
					}
					if conflictsOnly && !l.Conflict {
						continue
					}
					links = append(links, l)
				}
				printLinks(os.Stdout, t, links)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "filter by peering state")
	cmd.Flags().BoolVar(&conflictsOnly, "conflicts", false, "only links whose two sides disagree on state")
	return cmd
}

func printLinks(out io.Writer, t models.Topology, links []models.GraphEdge) {
	name := func(id string) string {
		if n, ok := t.Node(id); ok && n.Name != "" {
			return n.Name
		}
		return id
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tSTATE\tTARGET\tCONFLICT")
	for _, l := range links {
		conflict := ""
		if l.Conflict {
			conflict = "reverse: " + string(l.ReciprocalState)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name(l.Source), l.State, name(l.Target), conflict)
	}
	_ = w.Flush()
}

func topologyFocusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "focus <network-id>",
		Short: "Show every network reachable from a network through peerings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(engine topology.Engine) error {
				result, err := engine.Focus(cmd.Context(), args[0])
				if errors.Is(err, topology.ErrNodeNotFound) {
					return fmt.Errorf("network %q not found", args[0])
				}
				if err != nil {
					return err
				}

				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(result)
				}

				_, _ = fmt.Fprintf(os.Stdout, "Component of %s: %d networks, %d links\n\n", result.Target, len(result.Nodes), len(result.Links))
				printNodes(os.Stdout, result.Nodes)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the focus result as JSON")
	return cmd
}

func topologySearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Search networks by display name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return withEngine(func(engine topology.Engine) error {
				t, err := engine.Topology(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "NAME\tID")
				for _, o := range topology.SearchOptions(t, query) {
					_, _ = fmt.Fprintf(w, "%s\t%s\n", o.Name, o.ID)
				}
				return w.Flush()
			})
		},
	}
}

func topologyExportCmd() *cobra.Command {
	var format, focus string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the topology",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(func(engine topology.Engine) error {
				t, err := engine.Topology(cmd.Context())
				if err != nil {
					return err
				}
				if focus != "" {
					result, err := engine.Focus(cmd.Context(), focus)
					if err != nil {
						return fmt.Errorf("focus %q: %w", focus, err)
					}
					t = models.Topology{Nodes: result.Nodes, Links: result.Links, Categories: t.Categories}
				}

				output, err := renderExport(t, format)
				if err != nil {
					return err
				}
				fmt.Print(output)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "export format: json, dot, mermaid")
	cmd.Flags().StringVar(&focus, "focus", "", "export only the component of this network")
	return cmd
}

func renderExport(t models.Topology, format string) (string, error) {
	switch format {
	case "json":
		out, err := topology.ExportJSON(t)
		if err != nil {
			return "", err
		}
		return out + "\n", nil
	case "dot":
		return topology.ExportDOT(t), nil
	case "mermaid":
		return topology.ExportMermaid(t), nil
	default:
		return "", fmt.Errorf("unsupported format %q (use: json, dot, mermaid)", format)
	}
}

// --- sync ---

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Mirror the current topology into Memgraph",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cfg, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // best-effort cleanup

			if !cfg.Storage.Memgraph.Enabled {
				return fmt.Errorf("memgraph is not enabled in configuration (set storage.memgraph.enabled: true)")
			}

			builder, err := newBuilder(cfg)
			if err != nil {
				return err
			}
			t, err := topology.NewLocalEngine(store, builder).Topology(cmd.Context())
			if err != nil {
				return err
			}

			auth := neo4j.NoAuth()
			if cfg.Storage.Memgraph.Username != "" {
				auth = neo4j.BasicAuth(cfg.Storage.Memgraph.Username, cfg.Storage.Memgraph.Password, "")
			}

			driver, err := neo4j.NewDriverWithContext(cfg.Storage.Memgraph.URI, auth)
			if err != nil {
				return fmt.Errorf("connecting to memgraph: %w", err)
			}
			defer driver.Close(context.Background()) //nolint:errcheck // best-effort cleanup

			return topology.SyncToMemgraph(cmd.Context(), driver, t, logger)
		},
	}
}

// --- serve ---

func serveCmd() *cobra.Command {
	var listen string
	var readOnly bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start web UI and API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cfg, err := openStore()
			if err != nil {
				return err
			}
			builder, err := newBuilder(cfg)
			if err != nil {
				_ = store.Close()
				return err
			}
			interval, err := cfg.RefreshInterval()
			if err != nil {
				_ = store.Close()
				return err
			}

			if listen == "" {
				listen = cfg.Server.Listen
			}

			m := metrics.New()
			engine := openEngine(store, builder, cfg)
			rf := newRefresher(store, builder, engine, cfg, m)
			srv := server.New(store, engine, rf, m, logger, server.Options{
				Listen:     listen,
				ReadOnly:   readOnly || cfg.Server.ReadOnly,
				APIToken:   cfg.Server.APIToken,
				CORSOrigin: cfg.Server.CORSOrigin,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			if t, err := engine.Topology(ctx); err == nil {
				m.SetTopology(topology.Summarize(t))
				srv.Controller().Load(t)
			} else {
				logger.Warn("loading stored topology", "error", err)
			}

			// On-startup refresh
			if cfg.Refresh.OnStartup && len(cfg.Sources.Files) > 0 {
				go func() {
					logger.Info("running startup refresh")
					r := rf.RunAllConfigured(ctx)
					if r.Error != nil {
						logger.Error("startup refresh failed", "error", r.Error)
						return
					}
					logger.Info("startup refresh completed", "refreshID", r.RefreshID,
						"networks", r.Networks, "peerings", r.Peerings)
				}()
			}

			// Scheduled refreshes
			if interval > 0 {
				sched, err := refresh.NewScheduler(rf, interval.String(), logger)
				if err != nil {
					logger.Error("invalid refresh schedule", "error", err)
				} else {
					sched.Start(ctx)
					defer sched.Stop()
				}
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				rf.Cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			err = srv.Start(ctx)
			_ = engine.Close()
			_ = store.Close()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config or :8080)")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "disable refresh and inventory uploads via API")
	return cmd
}

// --- db ---

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management",
	}
	cmd.AddCommand(dbStatsCmd(), dbBackupCmd(), dbDumpCmd())
	return cmd
}

func dbStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cfg, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // best-effort cleanup
			printDBStats(cmd.Context(), os.Stdout, store, cfg.Storage.Path)
			return nil
		},
	}
}

func printDBStats(ctx context.Context, w io.Writer, store *inventory.SQLiteStore, path string) {
	sizeStr := "unknown"
	if info, err := os.Stat(path); err == nil {
		sizeStr = formatBytes(info.Size())
	}

	networkCount, _ := store.NetworkCount(ctx)
	peeringCount, _ := store.PeeringCount(ctx)
	byKind, _ := store.NetworkCountByKind(ctx)
	byState, _ := store.PeeringCountByState(ctx)
	refreshes, _ := store.ListRefreshes(ctx, 100)

	_, _ = fmt.Fprintf(w, "Database: %s (%s)\n\n", path, sizeStr)
	_, _ = fmt.Fprintf(w, "Networks: %d\n", networkCount)
	for k, c := range byKind {
		_, _ = fmt.Fprintf(w, "  %-20s %d\n", k, c)
	}
	_, _ = fmt.Fprintf(w, "\nPeerings: %d\n", peeringCount)
	for s, c := range byState {
		_, _ = fmt.Fprintf(w, "  %-20s %d\n", s, c)
	}

	statusCounts := make(map[string]int)
	for _, r := range refreshes {
		statusCounts[r.Status]++
	}
	_, _ = fmt.Fprintf(w, "\nRefreshes: %d total\n", len(refreshes))
	for status, count := range statusCounts {
		_, _ = fmt.Fprintf(w, "  %-20s %d\n", status, count)
	}
}

func dbBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup <output-path>",
		Short: "Write a consistent copy of the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dstPath := args[0]

			if _, err := os.Stat(dstPath); err == nil {
				_, _ = fmt.Fprintf(os.Stdout, "File %s already exists. Overwrite? [y/N]: ", dstPath)
				reader := bufio.NewReader(os.Stdin)
				answer, _ := reader.ReadString('\n')
				answer = strings.TrimSpace(strings.ToLower(answer))
				if answer != "y" && answer != "yes" {
					_, _ = fmt.Fprintln(os.Stdout, "Aborted.")
					return nil
				}
				if err := os.Remove(dstPath); err != nil {
					return fmt.Errorf("removing existing backup: %w", err)
				}
			}

			store, cfg, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // best-effort cleanup

			if err := store.Backup(cmd.Context(), dstPath); err != nil {
				return err
			}

			size := "unknown size"
			if info, err := os.Stat(dstPath); err == nil {
				size = formatBytes(info.Size())
			}
			_, _ = fmt.Fprintf(os.Stdout, "Backed up %s to %s (%s)\n", cfg.Storage.Path, dstPath, size)
			return nil
		},
	}
}

func dbDumpCmd() *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write the stored inventory as a snapshot file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // best-effort cleanup

			snap, err := store.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			data, err := source.Encode(*snap, format)
			if err != nil {
				return err
			}

			if output == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			_, _ = fmt.Fprintf(os.Stdout, "Wrote %d networks to %s\n", len(snap.Networks), output)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "snapshot format: json, yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// --- version ---

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("peerscope %s\n", version)
		},
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid --log-level %q (use: debug, info, warn, error)", s)
	}
}

func completionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for peerscope.

To load completions:

Bash:
  $ source <(peerscope completion bash)

Zsh:
  $ peerscope completion zsh > "${fpath[1]}/_peerscope"

Fish:
  $ peerscope completion fish | source

PowerShell:
  PS> peerscope completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
