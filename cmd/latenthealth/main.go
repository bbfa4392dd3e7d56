// Project: Latent Health Discretization and Filtration

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"latenthealth/internal/apperr"
	"latenthealth/internal/config"
	"latenthealth/internal/discretize"
	"latenthealth/internal/filter"
	"latenthealth/internal/latentfile"
	"latenthealth/internal/logging"
	"latenthealth/internal/params"
)

const usage = `Usage: latenthealth [flags] worktype spec_name output_name [node_count health_min health_max waves_to_condition]

worktype           : "process" writes the binary discretization file,
                     "filter" writes a table of latent health conditional on report histories.
spec_name          : name of the model specification (built in, or <spec-dir>/<name>.yaml).
output_name        : file to write. Filter output ending in .xlsx is written as a workbook.
node_count         : number of latent health nodes in the discretization.
health_min         : lowest value of latent health in the discretization.
health_max         : highest value of latent health in the discretization.
waves_to_condition : number of survey waves in each report history (filter only, default 3).

Examples:
  latenthealth process TwoStudyAllOver23HeteroParams MainResults.dat 40 -6 22
  latenthealth process TwoStudyAllTinyParams TinyResults.dat 15 -6 22
  latenthealth filter TwoStudyAllOver23HeteroParams ConditionalHealthDstn.txt 120 -12 28 3
  latenthealth -process-file MainResults.dat filter TwoStudyAllOver23HeteroParams ConditionalHealthDstn.txt
`

// defaultWaves is the history length used when filter mode gets none.
const defaultWaves = 3

// RunMode selects which output a run produces from the shared discretization.
type RunMode int

const (
	ModeProcess RunMode = iota
	ModeFilter
)

func (m RunMode) String() string {
	if m == ModeFilter {
		return "filter"
	}
	return "process"
}

// ParseMode reads the worktype argument.
func ParseMode(s string) (RunMode, error) {
	switch s {
	case "process":
		return ModeProcess, nil
	case "filter":
		return ModeFilter, nil
	}
	return 0, apperr.Configf("parse worktype", "first argument should be \"filter\" or \"process\", got %q", s)
}

// Invocation is a parsed command line.
type Invocation struct {
	Mode      RunMode
	SpecName  string
	Output    string
	Overrides config.Overrides

	// ProcessFile, when set in filter mode, is a discretization file written
	// by an earlier process run. Its arrays are filtered instead of rebuilding them.
	ProcessFile string
}

// ParseArgs reads the positional arguments.
func ParseArgs(args []string) (*Invocation, error) {
	if len(args) < 3 {
		return nil, apperr.Configf("parse arguments", "need at least 3 arguments, got %d", len(args))
	}
	mode, err := ParseMode(args[0])
	if err != nil {
		return nil, err
	}
	inv := &Invocation{Mode: mode, SpecName: args[1], Output: args[2]}
	inv.Overrides.WavesToCondition = defaultWaves

	if len(args) > 3 {
		n, err := strconv.Atoi(args[3])
		if err != nil {
			return nil, &apperr.ConfigurationError{Op: "parse arguments", Msg: "node_count", Err: err}
		}
		inv.Overrides.NodeCount = n
	}
	if len(args) > 4 {
		v, err := strconv.ParseFloat(args[4], 64)
		if err != nil {
			return nil, &apperr.ConfigurationError{Op: "parse arguments", Msg: "health_min", Err: err}
		}
		inv.Overrides.HealthMin = &v
	}
	if len(args) > 5 {
		v, err := strconv.ParseFloat(args[5], 64)
		if err != nil {
			return nil, &apperr.ConfigurationError{Op: "parse arguments", Msg: "health_max", Err: err}
		}
		inv.Overrides.HealthMax = &v
	}
	if len(args) > 6 {
		t, err := strconv.Atoi(args[6])
		if err != nil {
			return nil, &apperr.ConfigurationError{Op: "parse arguments", Msg: "waves_to_condition", Err: err}
		}
		inv.Overrides.WavesToCondition = t
	}
	return inv, nil
}

func main() {
	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("latenthealth", flag.ExitOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	specDir := fs.String("spec-dir", settings.SpecDir, "directory searched for <spec_name>.yaml before the built-in specifications")
	logLevel := fs.String("log-level", settings.LogLevel, "log level: debug, info, warn, error")
	workers := fs.Int("workers", settings.Workers, "filter workers (0 = one per CPU)")
	processFile := fs.String("process-file", "", "filter mode: read the discretization from this process output instead of rebuilding it")
	fs.Parse(os.Args[1:])

	inv, err := ParseArgs(fs.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, usage)
		fmt.Fprintln(os.Stderr, "Code will not produce any output file.")
		os.Exit(2)
	}
	inv.ProcessFile = *processFile

	log, err := logging.New(*logLevel, settings.LogDevelopment)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()
	log, _ = logging.WithRun(log)

	if err := Run(inv, config.NewProvider(*specDir), *workers, os.Stdout, log); err != nil {
		log.Errorw("run failed", "mode", inv.Mode.String(), "spec", inv.SpecName, "error", err)
		if errors.Is(err, apperr.ErrNumericalDomain) {
			fmt.Fprintln(os.Stderr, "The parameter specification is numerically invalid:", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// Run builds the discretization for inv and writes the requested output,
// then prints a summary to out.
func Run(inv *Invocation, provider config.Provider, workers int, out io.Writer, log *zap.SugaredLogger) error {
	// 1. Resolve the specification and the grid
	spec, err := provider.Specification(inv.SpecName)
	if err != nil {
		return fmt.Errorf("load specification: %w", err)
	}
	disc, err := spec.Apply(inv.Overrides)
	if err != nil {
		return err
	}
	log.Infow("loaded specification", "spec", spec.Name, "source", spec.SourceName,
		"nodes", disc.NodeCount, "types", spec.ReportTypeCount)

	// 2. Structural parameters to named coefficients
	ps, err := params.Transform(spec, spec.ParamVec)
	if err != nil {
		return err
	}

	// 3. Probability arrays
	var res *discretize.Result
	if inv.Mode == ModeFilter && inv.ProcessFile != "" {
		res, err = loadProcess(inv.ProcessFile, spec, ps)
	} else {
		res, err = discretize.Build(disc, ps, log)
	}
	if err != nil {
		return err
	}

	// 4. Output
	t0 := time.Now()
	switch inv.Mode {
	case ModeProcess:
		if err := latentfile.WriteFile(inv.Output, res); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote discretized latent health process to %s in %.3f seconds.\n", inv.Output, time.Since(t0).Seconds())
	case ModeFilter:
		T := inv.Overrides.WavesToCondition
		rows, err := filter.NewEngine(res, spec.WaveLength, workers, log).Run(T)
		if err != nil {
			return err
		}
		if err := filter.WriteFile(inv.Output, rows, T, res.TypeCount()); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote conditional distributions of latent health to %s in %.3f seconds.\n", inv.Output, time.Since(t0).Seconds())
		fmt.Fprintf(out, "Latent health is conditioned on up to %d observations of SRHS from the %s.\n", T, spec.SourceName)
	}

	Describe(out, spec.Name, res)
	return nil
}

// loadProcess reads a discretization file and checks that it was written
// for spec. Type shares and report stds are not in the file and come from ps.
func loadProcess(path string, spec *config.Specification, ps *params.ParameterSet) (*discretize.Result, error) {
	p, err := latentfile.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch {
	case p.AgeCount != spec.AgeCount():
		return nil, apperr.Configf("load "+path, "file has %d ages, specification %s has %d", p.AgeCount, spec.Name, spec.AgeCount())
	case p.CategoryCount != spec.ReportCount():
		return nil, apperr.Configf("load "+path, "file has %d report categories, specification %s has %d", p.CategoryCount, spec.Name, spec.ReportCount())
	case p.TypeCount != spec.ReportTypeCount:
		return nil, apperr.Configf("load "+path, "file has %d reporting types, specification %s has %d", p.TypeCount, spec.Name, spec.ReportTypeCount)
	}
	return p.Result(spec.AgeMin, spec.AgeIncr, spec.CategoryCounts, ps.Reporting.TypePrbs, ps.Reporting.Stds), nil
}

// Describe prints the discretization in plain words.
func Describe(w io.Writer, specName string, res *discretize.Result) {
	fmt.Fprintf(w, "The process is based on the parameters in the specification called %s.\n", specName)
	fmt.Fprintf(w, "It discretizes latent health with %d nodes equally spaced between %.6g and %.6g.\n",
		res.NodeCount(), res.Grid.Cuts[0], res.Grid.Cuts[len(res.Grid.Cuts)-1])
	fmt.Fprintf(w, "There are %d ages from %.6g to %.6g and %d reporting types.\n",
		res.AgeCount(), res.Ages[0], res.Ages[res.AgeCount()-1], res.TypeCount())
	for k := range res.TypePrbs {
		fmt.Fprintf(w, "Reporting type %d (%.2f%%) has a reporting error standard deviation of %.3f.\n",
			k+1, 100*res.TypePrbs[k], res.ReportStds[k])
	}
}
