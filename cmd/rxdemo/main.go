package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/l7mp/incremental/internal/buildinfo"
	"github.com/l7mp/incremental/pkg/metrics"
	"github.com/l7mp/incremental/pkg/reactive"
	"github.com/l7mp/incremental/pkg/scenario"
	"github.com/l7mp/incremental/pkg/util"
	"github.com/l7mp/incremental/pkg/visualize"
)

func main() {
	var scenarioFile, output, graphFormat, graphFile string
	var showMetrics, showVersion bool

	flag.StringVar(&scenarioFile, "scenario", "", "The scenario file to run.")
	flag.StringVar(&output, "output", "text", "Report format: text or json.")
	flag.StringVar(&graphFormat, "graph", "", "Render the pipeline graph: "+strings.Join(visualize.Formats(), " or ")+".")
	flag.StringVar(&graphFile, "graph-output", "", "Write the graph to this file instead of stdout.")
	flag.BoolVar(&showMetrics, "metrics", false, "Print the evaluation and update counters.")
	flag.BoolVar(&showVersion, "version", false, "Print the version and exit.")

	opts := zap.Options{
		Development:     true,
		DestWriter:      os.Stderr,
		StacktraceLevel: zapcore.Level(3),
		TimeEncoder:     zapcore.RFC3339NanoTimeEncoder,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	info := buildinfo.Current()
	if showVersion {
		fmt.Println(info.String())
		return
	}

	logger := zap.New(zap.UseFlagOptions(&opts))
	ctrl.SetLogger(logger.WithName("rxdemo"))
	setupLog := logger.WithName("setup")
	setupLog.Info("starting rxdemo", info.KeysAndValues()...)

	if scenarioFile == "" && flag.NArg() > 0 {
		scenarioFile = flag.Arg(0)
	}
	if scenarioFile == "" {
		setupLog.Error(nil, "no scenario file given")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(logger, scenarioFile, output, graphFormat, graphFile, showMetrics); err != nil {
		setupLog.Error(err, "scenario failed", "file", scenarioFile)
		os.Exit(1)
	}
}

func run(logger logr.Logger, file, output, graphFormat, graphFile string, showMetrics bool) error {
	s, err := scenario.Load(file)
	if err != nil {
		return err
	}

	var generator visualize.Generator
	if graphFormat != "" {
		if generator, err = visualize.NewGenerator(graphFormat); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(reg)

	ctx := ctrl.SetupSignalHandler()
	p, report, runErr := scenario.Run(ctx, s, logger, reactive.WithRecorder(recorder))
	if report != nil {
		switch output {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("failed to encode report: %w", err)
			}
		default:
			printReport(os.Stdout, s, report)
		}
	}
	if runErr != nil {
		return runErr
	}

	if generator != nil {
		graph := generator.Generate(visualize.BuildGraph(ctx, s.Name, p.Sink()))
		if graphFile == "" {
			fmt.Println(graph)
		} else if err := os.WriteFile(graphFile, []byte(graph), 0o644); err != nil {
			return fmt.Errorf("failed to write graph: %w", err)
		}
	}

	if showMetrics {
		samples, err := metrics.Samples(reg, "incremental_")
		if err != nil {
			return err
		}
		fmt.Println("# metrics")
		fmt.Println(util.JoinLines(samples, metrics.Sample.String))
	}

	return nil
}

func printReport(w io.Writer, s *scenario.Scenario, report *scenario.Report) {
	fmt.Fprintln(w, s.String())
	fmt.Fprintf(w, "initial: %s\n", util.Stringify(report.Initial))
	for _, step := range report.Steps {
		fmt.Fprintf(w, "step %d %s:\n", step.Index, step.Op)
		for _, e := range step.Events {
			fmt.Fprintf(w, "  %s\n", e.String())
		}
		fmt.Fprintf(w, "  => %s\n", util.Stringify(step.Snapshot))
	}
}
