// Command entail checks goal programs: it loads an impl registry and a set
// of goals from YAML, drives the goals to a fixpoint, and reports every
// obligation that could not be discharged.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"entail/internal/fulfill"
	"entail/internal/infer"
	"entail/internal/logging"
	"entail/internal/solver"
	"entail/internal/types"
)

var (
	verbose   bool
	maxRounds int
	inspect   bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "entail",
	Short: "entail - goal fulfillment checker",
	Long: `entail drives proof obligations to a fixpoint against a declared
impl registry. Programs are YAML files listing impls, assumptions and goals;
each goal is either proven, disproved with a precise failing leaf, or
reported as ambiguous.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [program.yaml...]",
	Short: "Check every goal of one or more programs",
	Long: `Loads each program, registers its goals and runs the fulfillment
engine to a fixpoint. Programs are independent and checked concurrently;
the exit status is non-zero when any goal fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

// fileReport is the outcome of checking one program file.
type fileReport struct {
	path   string
	goals  int
	errors []fulfill.FulfillmentError
}

func runCheck(cmd *cobra.Command, args []string) error {
	reports := make([]fileReport, len(args))

	var g errgroup.Group
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			report, err := checkProgram(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, r := range reports {
		if len(r.errors) == 0 {
			fmt.Printf("%s: %d goals proven\n", r.path, r.goals)
			continue
		}
		failed += len(r.errors)
		fmt.Printf("%s: %d of %d goals failed\n", r.path, len(r.errors), r.goals)
		for _, ferr := range r.errors {
			fmt.Printf("error: %s\n", ferr.Error())
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d obligations unfulfilled", failed)
	}
	return nil
}

// checkProgram runs one program through a fresh inference context and
// engine. Each file gets its own context, so files can run concurrently.
func checkProgram(path string) (fileReport, error) {
	prog, err := solver.LoadProgram(path)
	if err != nil {
		return fileReport{}, err
	}
	oracle, err := prog.BuildSolver()
	if err != nil {
		return fileReport{}, err
	}
	env, err := prog.BuildEnv()
	if err != nil {
		return fileReport{}, err
	}
	goals, err := prog.BuildGoals(env)
	if err != nil {
		return fileReport{}, err
	}

	inf := infer.New(types.ModeFixpoint)
	opts := []fulfill.Option{}
	if maxRounds > 0 {
		opts = append(opts, fulfill.WithLimits(fulfill.Limits{MaxRounds: maxRounds}))
	}
	if inspect {
		opts = append(opts, fulfill.WithInspector(func(ob types.Obligation, res types.EvalResult, err error) {
			logger.Debug("evaluated obligation",
				zap.String("predicate", ob.Predicate.String()),
				zap.Int("depth", ob.Depth),
				zap.Bool("changed", res.Changed),
				zap.String("certainty", res.Certainty.String()),
				zap.Bool("no_solution", err != nil))
		}))
	}
	engine := fulfill.New(inf, oracle, opts...)

	for _, ob := range goals {
		engine.Register(inf, ob)
	}
	errs := engine.RunToFixpoint(inf)
	errs = append(errs, engine.CollectRemainingErrors(inf)...)

	logger.Info("checked program",
		zap.String("path", path),
		zap.Int("goals", len(goals)),
		zap.Int("errors", len(errs)))
	return fileReport{path: path, goals: len(goals), errors: errs}, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	checkCmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "Override the fixpoint round budget")
	checkCmd.Flags().BoolVar(&inspect, "inspect", false, "Trace every oracle evaluation")
	rootCmd.AddCommand(checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
