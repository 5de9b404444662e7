package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/san-kum/becsim/internal/compute"
	"github.com/san-kum/becsim/internal/config"
	"github.com/san-kum/becsim/internal/experiment"
	"github.com/san-kum/becsim/internal/metrics"
	"github.com/san-kum/becsim/internal/storage"
)

var (
	dataDir string
	verbose bool

	preset     string
	configFile string
	saveConfig string
	backend    string
	precision  string
	noiseModel string
	duration   float64
	interval   float64
	seed       uint64
	ensembles  int
	wigner     bool
	noise      bool
	stopAfter  float64

	benchPreset  string
	benchBackend string
	benchSteps   int
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ffff"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888899"))
	valueStyle = lipgloss.NewStyle().Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "becsim",
		Short:         "stochastic split-step evolution of two-component condensates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".becsim", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run an evolution and store the collected series",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&preset, "preset", "", "start from a preset ("+strings.Join(config.ListPresets(), ", ")+")")
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().StringVar(&saveConfig, "save-config", "", "write the effective config to this path")
	runCmd.Flags().StringVar(&backend, "backend", config.DefaultBackend, "compute backend ("+strings.Join(compute.Kinds(), ", ")+")")
	runCmd.Flags().StringVar(&precision, "precision", "double", "device precision (single, double)")
	runCmd.Flags().StringVar(&noiseModel, "noise-model", "diagonal", "loss noise model (diagonal, full)")
	runCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "simulated time in seconds")
	runCmd.Flags().Float64Var(&interval, "interval", config.DefaultInterval, "collector interval in seconds")
	runCmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	runCmd.Flags().IntVar(&ensembles, "ensembles", 1, "ensemble size")
	runCmd.Flags().BoolVar(&wigner, "wigner", false, "start from a truncated-Wigner sample")
	runCmd.Flags().BoolVar(&noise, "noise", false, "inject loss noise")
	runCmd.Flags().Float64Var(&stopAfter, "stop-after", 0, "stop at this simulated time (0 disables)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "time evolution steps on each backend",
		Args:  cobra.NoArgs,
		RunE:  benchBackends,
	}
	benchCmd.Flags().StringVar(&benchPreset, "preset", "tiny", "preset to benchmark")
	benchCmd.Flags().StringVar(&benchBackend, "backend", "", "benchmark only this backend")
	benchCmd.Flags().StringVar(&precision, "precision", "double", "device precision (single, double)")
	benchCmd.Flags().IntVar(&benchSteps, "steps", 100, "steps per backend")
	benchCmd.Flags().BoolVar(&noise, "noise", false, "inject loss noise")

	backendsCmd := &cobra.Command{
		Use:   "backends",
		Short: "list compute backends and host features",
		Args:  cobra.NoArgs,
		RunE:  listBackends,
	}

	rootCmd.AddCommand(runCmd, presetsCmd, listCmd, showCmd, benchCmd, backendsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

// effectiveConfig layers preset, config file and explicitly set flags.
func effectiveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend.Kind = backend
	}
	if flags.Changed("precision") {
		cfg.Backend.Precision = precision
	}
	if flags.Changed("noise-model") {
		cfg.Run.NoiseModel = noiseModel
	}
	if flags.Changed("time") {
		cfg.Run.Duration = duration
	}
	if flags.Changed("interval") {
		cfg.Run.Interval = interval
	}
	if flags.Changed("seed") {
		cfg.Run.Seed = seed
	}
	if flags.Changed("ensembles") {
		cfg.Model.Ensembles = ensembles
	}
	if flags.Changed("wigner") {
		cfg.Run.Wigner = wigner
	}
	if flags.Changed("noise") {
		cfg.Run.Noise = noise
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return err
	}
	if saveConfig != "" {
		if err := config.Save(saveConfig, cfg); err != nil {
			return err
		}
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	opts := []experiment.Option{experiment.WithName(preset)}
	if stopAfter > 0 {
		opts = append(opts, experiment.WithCallbacks(metrics.StopAfter(stopAfter)))
	}
	exp, err := experiment.New(cfg, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := exp.Constants()
	fmt.Println(titleStyle.Render("becsim run"))
	fmt.Printf("%s %v x %d ensembles on %s (%s)\n",
		labelStyle.Render("grid"), c.Shape, c.Ensembles, cfg.Backend.Kind, c.Precision)

	res, runErr := exp.Run(ctx)
	if res == nil {
		return runErr
	}

	runID, err := st.Save(exp.Metadata(res), res.Series)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", labelStyle.Render("run id"), valueStyle.Render(runID))
	fmt.Printf("%s %.6gs in %d steps (%v)\n", labelStyle.Render("reached"), res.FinalTime, res.Steps, res.Elapsed)
	if res.Stopped {
		fmt.Println(labelStyle.Render("stopped early"))
	}
	printSummary(experiment.Summary(res.Series))
	return runErr
}

func printSummary(summary map[string]float64) {
	if len(summary) == 0 {
		return
	}
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println()
	fmt.Println(titleStyle.Render("final values"))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s\t%.6g\n", k, summary[k])
	}
	w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tATOMS\tGRID\tENSEMBLES\tTIME\tWIGNER\tNOISE\tCOLLECTORS")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		m := cfg.Model
		fmt.Fprintf(w, "%s\t%d\t%dx%dx%d\t%d\t%.3gs\t%v\t%s\t%s\n",
			name, m.N, m.Nvz, m.Nvy, m.Nvx, m.Ensembles, cfg.Run.Duration,
			cfg.Run.Wigner, noiseLabel(cfg), strings.Join(cfg.Run.Collectors, ","))
	}
	return w.Flush()
}

func noiseLabel(cfg *config.Config) string {
	if !cfg.Run.Noise {
		return "off"
	}
	return cfg.Run.NoiseModel
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRESET\tTIME\tBACKEND\tGRID\tENS\tREACHED\tSTEPS\tELAPSED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s/%s\t%v\t%d\t%.4gs\t%d\t%v\n",
			run.ID,
			orDash(run.Preset),
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Backend, run.Precision,
			run.Grid,
			run.Ensembles,
			run.FinalTime,
			run.Steps,
			run.Elapsed,
		)
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	series, err := st.LoadSeries(args[0])
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("run " + meta.ID))
	fields := [][2]string{
		{"preset", orDash(meta.Preset)},
		{"started", meta.Timestamp.Format("2006-01-02 15:04:05")},
		{"backend", meta.Backend + "/" + meta.Precision},
		{"atoms", fmt.Sprint(meta.Atoms)},
		{"grid", fmt.Sprint(meta.Grid)},
		{"ensembles", fmt.Sprint(meta.Ensembles)},
		{"wigner", fmt.Sprint(meta.Wigner)},
		{"noise", fmt.Sprintf("%v (%s)", meta.Noise, meta.NoiseModel)},
		{"seed", fmt.Sprint(meta.Seed)},
		{"reached", fmt.Sprintf("%.6gs of %.6gs", meta.FinalTime, meta.Duration)},
		{"steps", fmt.Sprint(meta.Steps)},
		{"elapsed", meta.Elapsed.String()},
	}
	for _, f := range fields {
		fmt.Printf("%s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", f[0])), f[1])
	}

	for _, s := range series {
		fmt.Println()
		fmt.Println(titleStyle.Render(s.Name))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "TIME\t%s\n", strings.ToUpper(strings.Join(s.Columns, "\t")))
		for i, t := range s.Times {
			row := make([]string, len(s.Rows[i]))
			for j, v := range s.Rows[i] {
				row[j] = fmt.Sprintf("%.6g", v)
			}
			fmt.Fprintf(w, "%.6g\t%s\n", t, strings.Join(row, "\t"))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func benchBackends(cmd *cobra.Command, args []string) error {
	cfg := config.GetPreset(benchPreset)
	if cfg == nil {
		return fmt.Errorf("unknown preset: %s (available: %v)", benchPreset, config.ListPresets())
	}
	if cmd.Flags().Changed("precision") {
		cfg.Backend.Precision = precision
	}
	if cmd.Flags().Changed("noise") {
		cfg.Run.Noise = noise
	}

	kinds := compute.Kinds()
	if benchBackend != "" {
		kinds = []string{benchBackend}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("benchmarking preset %s, %d steps\n\n", benchPreset, benchSteps)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tPRECISION\tCELLS\tENSEMBLES\tSTEPS\tTIME\tSTEPS/SEC")
	for _, kind := range kinds {
		res, err := experiment.Benchmark(ctx, cfg, kind, benchSteps)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%v\t%.1f\n",
			res.Backend, res.Precision, res.Cells, res.Ensembles, res.Steps, res.Elapsed, res.StepsPerSecond())
	}
	return w.Flush()
}

func listBackends(cmd *cobra.Command, args []string) error {
	f := compute.DetectFeatures()
	fmt.Println(titleStyle.Render("host"))
	fmt.Printf("%s %s\n", labelStyle.Render("features"), f)
	fmt.Printf("%s %d\n\n", labelStyle.Render("workers "), f.Workers())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tPRECISION\tNOISE MODELS")
	for _, kind := range compute.Kinds() {
		prec := "double"
		if kind == compute.Device {
			prec = "single, double"
		}
		fmt.Fprintf(w, "%s\t%s\t%s, %s\n", kind, prec, compute.NoiseDiagonal, compute.NoiseFullMatrix)
	}
	return w.Flush()
}
