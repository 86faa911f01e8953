package cmd

import (
	"fmt"
	"io"
	"math"

	"github.com/sarchlab/devs/examples/queueservice"
	"github.com/sarchlab/devs/examples/twospeed"
	"github.com/sarchlab/devs/monitoring"
	"github.com/sarchlab/devs/sim"
	"github.com/sarchlab/devs/tracing"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RunOptions controls how a scenario runs.
type RunOptions struct {
	Parallel    bool
	TraceDB     string
	MonitorPort int
	Separator   string
	Until       float64
}

var runFlags RunOptions

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Run a scenario and print the final state of every model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := mergeRunOptions(cmd, config, runFlags)

		scenario, err := LoadScenario(args[0])
		if err != nil {
			return err
		}

		if opts.Parallel {
			sim.UseParallelIDGenerator()
		}

		_, err = RunScenario(scenario, opts, cmd.OutOrStdout())

		return err
	},
}

func init() {
	runCmd.Flags().BoolVar(&runFlags.Parallel, "parallel", false,
		"Run models due at the same time concurrently")
	runCmd.Flags().StringVar(&runFlags.TraceDB, "trace-db", "",
		"Write trace lines into a new SQLite database with this name")
	runCmd.Flags().IntVar(&runFlags.MonitorPort, "monitor-port", 0,
		"Serve the monitoring API on this port (0 disables it)")
	runCmd.Flags().StringVar(&runFlags.Separator, "separator", tracing.DefaultSeparator,
		"Separator between the model URI and the message in trace lines")
	runCmd.Flags().Float64Var(&runFlags.Until, "until", math.Inf(1),
		"Stop after the events at this time")

	rootCmd.AddCommand(runCmd)
}

// mergeRunOptions starts from the environment and applies the flags the
// user set explicitly.
func mergeRunOptions(cmd *cobra.Command, cfg Config, flags RunOptions) RunOptions {
	opts := RunOptions{
		Parallel:    cfg.Parallel,
		TraceDB:     cfg.TraceDB,
		MonitorPort: cfg.MonitorPort,
		Separator:   cfg.Separator,
		Until:       flags.Until,
	}

	if cmd.Flags().Changed("parallel") {
		opts.Parallel = flags.Parallel
	}

	if cmd.Flags().Changed("trace-db") {
		opts.TraceDB = flags.TraceDB
	}

	if cmd.Flags().Changed("monitor-port") {
		opts.MonitorPort = flags.MonitorPort
	}

	if cmd.Flags().Changed("separator") {
		opts.Separator = flags.Separator
	}

	if opts.Separator == "" {
		opts.Separator = tracing.DefaultSeparator
	}

	return opts
}

// RunScenario builds the scenario, runs it and writes the report to out.
func RunScenario(s *Scenario, opts RunOptions, out io.Writer) (*World, error) {
	w, err := s.Build()
	if err != nil {
		return nil, err
	}

	coordinator := newCoordinator(w.Exchange, opts.Parallel)

	sqliteSink, err := attachTracing(w, coordinator, opts)
	if err != nil {
		return nil, err
	}

	if opts.MonitorPort != 0 {
		if err := startMonitor(coordinator, opts.MonitorPort); err != nil {
			return nil, err
		}
	}

	for _, uri := range w.Initial.Destinations() {
		if err := coordinator.Schedule(uri, w.Initial.Events(uri)...); err != nil {
			return nil, fmt.Errorf("scheduling initial events: %w", err)
		}
	}

	runErr := coordinator.RunUntil(sim.VTimeInSec(opts.Until))
	coordinator.Finished()

	if sqliteSink != nil {
		sqliteSink.Flush()
	}

	if runErr != nil {
		return w, runErr
	}

	return w, writeReport(out, w, coordinator.CurrentTime())
}

func newCoordinator(x *sim.Exchange, parallel bool) sim.Coordinator {
	if parallel {
		return sim.NewParallelCoordinator(x)
	}

	return sim.NewSerialCoordinator(x)
}

func attachTracing(
	w *World,
	coordinator sim.Coordinator,
	opts RunOptions,
) (*tracing.SQLiteSink, error) {
	var (
		sinks      tracing.MultiSink
		sqliteSink *tracing.SQLiteSink
	)

	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		sinks = append(sinks, tracing.NewLogrusSink(nil, logrus.DebugLevel))
	}

	if opts.TraceDB != "" {
		sqliteSink = tracing.NewSQLiteSink(opts.TraceDB, opts.Separator)
		sinks = append(sinks, sqliteSink)
	}

	if len(sinks) == 0 {
		return nil, nil
	}

	logger := tracing.NewComponentLoggerWithSeparator(sinks, opts.Separator)
	for _, m := range w.Exchange.Models() {
		if err := logger.CheckURI(m.URI()); err != nil {
			return nil, err
		}
	}

	hook := tracing.NewEventLogger(logger)

	coordinator.AcceptHook(hook)

	for _, m := range w.Exchange.Models() {
		m.AcceptHook(hook)
	}

	return sqliteSink, nil
}

func startMonitor(coordinator sim.Coordinator, port int) error {
	m := monitoring.NewMonitor().WithPortNumber(port)
	m.RegisterCoordinator(coordinator)

	bar := m.CreateProgressBar("events", 0)
	coordinator.AcceptHook(bar)

	_, err := m.StartServer()

	return err
}

func writeReport(out io.Writer, w *World, now sim.VTimeInSec) error {
	samples := make([]sim.VTimeInSec, 0, len(w.Scenario.Samples))
	for _, t := range w.Scenario.Samples {
		samples = append(samples, sim.VTimeInSec(t))
	}

	if len(samples) == 0 {
		samples = append(samples, now)
	}

	if _, err := fmt.Fprintf(out, "finished at %.3f\n", now); err != nil {
		return err
	}

	for _, m := range w.Exchange.Models() {
		if _, err := fmt.Fprintf(out, "%s %s\n", m.URI(), m.Mode()); err != nil {
			return err
		}

		if err := reportModel(out, m, samples); err != nil {
			return err
		}
	}

	return nil
}

func reportModel(out io.Writer, m sim.AtomicModel, samples []sim.VTimeInSec) error {
	var err error

	switch m := m.(type) {
	case *twospeed.Appliance:
		for _, t := range samples {
			_, err = fmt.Fprintf(out, "  t=%.3f power=%s energy=%s\n",
				t, sample(m.PowerAt, t), sample(m.EnergyAt, t))
			if err != nil {
				return err
			}
		}
	case *queueservice.Counter:
		_, err = fmt.Fprintf(out, "  served=%d waiting=%d occupied=%t\n",
			m.Served(), m.Waiting(), m.Occupied())
		if err != nil {
			return err
		}

		for _, t := range samples {
			_, err = fmt.Fprintf(out, "  t=%.3f queue=%s\n",
				t, sample(m.QueueLengthAt, t))
			if err != nil {
				return err
			}
		}
	case *queueservice.Generator:
		_, err = fmt.Fprintf(out, "  released=%d\n", m.Released())
	}

	return err
}

func sample(f func(sim.VTimeInSec) (float64, error), t sim.VTimeInSec) string {
	v, err := f(t)
	if err != nil {
		return "n/a"
	}

	return fmt.Sprintf("%.3f", v)
}
