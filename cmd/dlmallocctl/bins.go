package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/dlmalloc/alloc"
)

var binsOccupancy bool

func init() {
	cmd := newBinsCmd()
	cmd.Flags().BoolVar(&binsOccupancy, "occupancy", false, "Run a default workload first and count free chunks per bin")
	rootCmd.AddCommand(cmd)
}

func newBinsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bins",
		Short: "Show bin geometry",
		Long: `The bins command lists the chunk sizes each small bin holds and the
size range of each tree bin. With --occupancy it first runs a default
workload and shows how many free chunks every bin holds afterwards.

Example:
  dlmallocctl bins
  dlmallocctl bins --occupancy --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBins()
		},
	}
	return cmd
}

// binRow describes one bin.
type binRow struct {
	Kind  string  `json:"kind"`
	Index int     `json:"index"`
	Lo    uintptr `json:"lo"`
	Hi    uintptr `json:"hi,omitempty"`
	Free  int     `json:"free"`
}

func binGeometry() []binRow {
	var rows []binRow
	for i := range alloc.NumSmallBins {
		size := alloc.SmallBinSize(i)
		// Chunk sizes are multiples of MallocAlignment, so odd bins stay empty.
		if size < alloc.MinChunkSize || size%alloc.MallocAlignment != 0 {
			continue
		}
		rows = append(rows, binRow{Kind: "small", Index: i, Lo: size})
	}
	for i := range alloc.NumTreeBins {
		lo, hi := alloc.TreeBinRange(i)
		rows = append(rows, binRow{Kind: "tree", Index: i, Lo: lo, Hi: hi})
	}
	return rows
}

func runBins() error {
	rows := binGeometry()

	if binsOccupancy {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()
		w := workload{Ops: 20000, Seed: 1, MaxSize: 64 << 10, MaxLive: 2000, AlignedPct: 5}
		if _, err := w.run(s.d); err != nil {
			return err
		}
		snap, err := s.d.Engine().Snapshot()
		if err != nil {
			return err
		}
		for i := range rows {
			r := &rows[i]
			if r.Kind == "small" {
				r.Free = len(snap.SmallBins[r.Index])
			} else {
				r.Free = countTree(snap.TreeBins[r.Index])
			}
		}
	}

	if jsonOut {
		return printJSON(rows)
	}
	printInfo("%-6s %5s  %-24s", "KIND", "INDEX", "CHUNK SIZES")
	if binsOccupancy {
		printInfo("  %s", "FREE")
	}
	printInfo("\n")
	for _, r := range rows {
		var sizes string
		switch {
		case r.Kind == "small":
			sizes = humanize.Comma(int64(r.Lo))
		case r.Hi == 0:
			sizes = humanize.IBytes(uint64(r.Lo)) + " and up"
		default:
			sizes = humanize.IBytes(uint64(r.Lo)) + " - " + humanize.IBytes(uint64(r.Hi-1))
		}
		printInfo("%-6s %5d  %-24s", r.Kind, r.Index, sizes)
		if binsOccupancy {
			printInfo("  %d", r.Free)
		}
		printInfo("\n")
	}
	return nil
}

func countTree(n *alloc.TreeNode) int {
	if n == nil {
		return 0
	}
	return 1 + len(n.Ring) + countTree(n.Children[0]) + countTree(n.Children[1])
}
