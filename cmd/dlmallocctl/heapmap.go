package main

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/dlmalloc/alloc"
)

var mapFlags = workload{MaxSize: 8 << 10, AlignedPct: 10}

func init() {
	cmd := newMapCmd()
	f := cmd.Flags()
	f.IntVar(&mapFlags.Ops, "ops", 200, "Number of workload operations before the dump")
	f.Uint64Var(&mapFlags.Seed, "seed", 1, "Random seed")
	f.IntVar(&mapFlags.MaxLive, "max-live", 50, "Upper bound on live blocks")
	rootCmd.AddCommand(cmd)
}

func newMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Dump every chunk of a heap after a short workload",
		Long: `The map command runs a small seeded workload and then lists every chunk
in every segment, followed by the direct-mapped chunks. With --json it
prints the engine's detailed heap map instead.

Example:
  dlmallocctl map --ops 50
  dlmallocctl map --json > heap.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap()
		},
	}
	return cmd
}

func runMap() error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := mapFlags.run(s.d); err != nil {
		return err
	}
	e := s.d.Engine()

	if jsonOut {
		data, err := e.DetailedMap()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}

	seg := -2
	return e.Walk(func(c alloc.ChunkInfo) bool {
		if c.Segment != seg {
			seg = c.Segment
			if seg < 0 {
				printInfo("direct:\n")
			} else {
				printInfo("segment %d:\n", seg)
			}
		}
		state := "free"
		if c.InUse {
			state = "in use"
		}
		printInfo("  %#014x  %-6s  %-6s  %s\n", c.Addr, c.Kind, state, humanize.IBytes(uint64(c.Size)))
		return true
	})
}
