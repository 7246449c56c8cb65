package main

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/dlmalloc/alloc"
	"github.com/joshuapare/dlmalloc/pkg/dlmalloc"
	"github.com/joshuapare/dlmalloc/verify"
)

func init() {
	rootCmd.AddCommand(newReplayCmd())
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <trace>",
		Short: "Replay an allocation trace",
		Long: `The replay command runs a recorded allocation trace against the engine.
Each line holds one operation; blank lines and lines starting with # are
ignored. Sizes accept byte suffixes such as 4KiB.

  malloc <id> <size> [align]
  calloc <id> <size> [align]
  realloc <id> <size>
  free <id>
  trim [pad]
  check

Use "-" to read the trace from standard input.

Example:
  dlmallocctl replay workload.trace
  dlmallocctl replay --limit 1MiB --json workload.trace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(args)
		},
	}
	return cmd
}

// traceOp is one parsed trace line.
type traceOp struct {
	line  int
	verb  string
	id    string
	size  uintptr
	align uintptr
}

type replayResult struct {
	Ops       int     `json:"ops"`
	Failures  int     `json:"failures"`
	Checks    int     `json:"checks"`
	Live      int     `json:"live"`
	LiveBytes uintptr `json:"liveBytes"`
}

func runReplay(args []string) error {
	var r io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return errors.Wrap(err, "open trace")
		}
		defer f.Close()
		r = f
	}
	ops, err := parseTrace(r)
	if err != nil {
		return err
	}
	printVerbose("Parsed %d operations\n", len(ops))

	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := replay(s.d, ops)
	if err != nil {
		return err
	}
	return printSummary(s, res)
}

func parseTrace(r io.Reader) ([]traceOp, error) {
	var ops []traceOp
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		op, err := parseTraceLine(n, strings.Fields(line))
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", n)
		}
		ops = append(ops, op)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read trace")
	}
	return ops, nil
}

func parseTraceLine(n int, f []string) (traceOp, error) {
	op := traceOp{line: n, verb: f[0], align: 8}
	args := f[1:]

	var err error
	switch op.verb {
	case "malloc", "calloc":
		if len(args) < 2 || len(args) > 3 {
			return op, errors.Newf("%s wants <id> <size> [align]", op.verb)
		}
		op.id = args[0]
		if op.size, err = traceSize(args[1]); err != nil {
			return op, err
		}
		if len(args) == 3 {
			if op.align, err = traceSize(args[2]); err != nil {
				return op, err
			}
			if err := (dlmalloc.Layout{Size: op.size, Align: op.align}).Validate(); err != nil {
				return op, err
			}
		}
	case "realloc":
		if len(args) != 2 {
			return op, errors.New("realloc wants <id> <size>")
		}
		op.id = args[0]
		if op.size, err = traceSize(args[1]); err != nil {
			return op, err
		}
	case "free":
		if len(args) != 1 {
			return op, errors.New("free wants <id>")
		}
		op.id = args[0]
	case "trim":
		if len(args) > 1 {
			return op, errors.New("trim wants at most one pad argument")
		}
		if len(args) == 1 {
			if op.size, err = traceSize(args[0]); err != nil {
				return op, err
			}
		}
	case "check":
		if len(args) != 0 {
			return op, errors.New("check takes no arguments")
		}
	default:
		return op, errors.Newf("unknown operation %q", op.verb)
	}
	return op, nil
}

func traceSize(s string) (uintptr, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, errors.Wrapf(err, "bad size %q", s)
	}
	return uintptr(n), nil
}

// traceTarget is what a trace drives. *dlmalloc.Dlmalloc implements it.
type traceTarget interface {
	dlmalloc.Allocator
	Trim(pad uintptr) bool
	Engine() *alloc.Engine
}

// replay runs ops against d. A failed malloc or realloc is counted and the
// trace carries on; referencing an unknown id or losing block contents stops
// it.
func replay(d traceTarget, ops []traceOp) (replayResult, error) {
	var res replayResult
	live := make(map[string]block)

	for i, op := range ops {
		res.Ops++
		b, exists := live[op.id]
		switch op.verb {
		case "malloc", "calloc":
			if exists {
				return res, errors.Newf("line %d: id %q is already live", op.line, op.id)
			}
			b = block{size: op.size, align: op.align, tag: byte(i)}
			if op.verb == "calloc" {
				b.ptr = d.Calloc(b.size, b.align)
			} else {
				b.ptr = d.Malloc(b.size, b.align)
			}
			if b.ptr == 0 {
				res.Failures++
				continue
			}
			if op.verb == "calloc" && len(strings.Trim(string(dlmalloc.Bytes(b.ptr, b.size)), "\x00")) != 0 {
				return res, errors.Newf("line %d: calloc returned dirty memory", op.line)
			}
			b.fill()
			live[op.id] = b

		case "realloc":
			if !exists {
				return res, errors.Newf("line %d: unknown id %q", op.line, op.id)
			}
			if err := b.intact(); err != nil {
				return res, errors.Wrapf(err, "line %d", op.line)
			}
			p := d.Realloc(b.ptr, b.size, b.align, op.size)
			if op.size == 0 {
				delete(live, op.id)
				continue
			}
			if p == 0 {
				res.Failures++
				continue
			}
			kept := block{ptr: p, size: min(b.size, op.size), tag: b.tag}
			if err := kept.intact(); err != nil {
				return res, errors.Wrapf(err, "line %d: realloc lost contents", op.line)
			}
			b.ptr, b.size, b.tag = p, op.size, byte(i)
			b.fill()
			live[op.id] = b

		case "free":
			if !exists {
				return res, errors.Newf("line %d: unknown id %q", op.line, op.id)
			}
			if err := b.intact(); err != nil {
				return res, errors.Wrapf(err, "line %d", op.line)
			}
			d.Free(b.ptr, b.size, b.align)
			delete(live, op.id)

		case "trim":
			trimmed := d.Trim(op.size)
			printVerbose("line %d: trim released memory: %v\n", op.line, trimmed)

		case "check":
			res.Checks++
			if err := verify.Heap(d.Engine()); err != nil {
				return res, errors.Wrapf(err, "line %d", op.line)
			}
		}
	}

	for _, b := range live {
		res.LiveBytes += b.size
	}
	res.Live = len(live)
	return res, nil
}
