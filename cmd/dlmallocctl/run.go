package main

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/dlmalloc/alloc"
	"github.com/joshuapare/dlmalloc/sysmem"
	"github.com/joshuapare/dlmalloc/verify"
)

var runFlags workload

func init() {
	cmd := newRunCmd()
	f := cmd.Flags()
	f.IntVar(&runFlags.Ops, "ops", 100000, "Number of operations")
	f.Uint64Var(&runFlags.Seed, "seed", 1, "Random seed")
	f.IntVar(&runFlags.MaxLive, "max-live", 2000, "Upper bound on live blocks")
	f.IntVar(&runFlags.AlignedPct, "aligned", 5, "Percentage of over-aligned requests")
	f.IntVar(&runFlags.CheckEvery, "check-every", 0, "Validate the whole heap every N operations")
	f.BoolVar(&runFlags.Drain, "drain", false, "Free every block and trim before reporting")
	f.StringVar(&runMaxSize, "max-size", "64KiB", "Largest request size")
	rootCmd.AddCommand(cmd)
}

var runMaxSize string

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a synthetic allocation workload",
		Long: `The run command drives the engine with a seeded mix of malloc, free
and realloc requests, checks every block's contents before it is released,
and prints the heap report afterwards.

Example:
  dlmallocctl run --ops 1000000 --max-size 1MiB
  dlmallocctl run --check-every 100 --debug
  dlmallocctl run --provider fixed --fixed-size 4MiB --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun()
		},
	}
	return cmd
}

func runRun() error {
	w := runFlags
	var err error
	if w.MaxSize, err = parseSize("max-size", runMaxSize); err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	printVerbose("Running %d operations (seed %d, max size %s)\n",
		w.Ops, w.Seed, humanize.IBytes(uint64(w.MaxSize)))
	res, err := w.run(s.d)
	if err != nil {
		return err
	}
	return printSummary(s, res)
}

// summary is the JSON form of a finished run or replay.
type summary struct {
	Result   any               `json:"result"`
	Info     alloc.Info        `json:"info"`
	Stats    alloc.Stats       `json:"stats"`
	Provider sysmem.LimitStats `json:"provider"`
}

func printSummary(s *session, res any) error {
	e := s.d.Engine()
	if err := verify.Heap(e); err != nil {
		return err
	}
	if jsonOut {
		return printJSON(summary{
			Result:   res,
			Info:     e.Info(),
			Stats:    e.GetStats(),
			Provider: s.limit.Stats(),
		})
	}
	if quiet {
		return nil
	}
	printInfo("%+v\n\n", res)
	if err := e.WriteReport(os.Stdout); err != nil {
		return err
	}
	ps := s.limit.Stats()
	printInfo("\n=== Provider ===\n  Held: %s  Peak: %s  Acquires: %d  Releases: %d\n",
		humanize.IBytes(uint64(ps.Held)), humanize.IBytes(uint64(ps.Peak)), ps.Acquires, ps.Releases)
	return nil
}
