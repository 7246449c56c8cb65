package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/joshuapare/dlmalloc/cmd/heapview/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	args := os.Args[1:]
	debugMode := false
	opts := Options{Seed: 1, MaxLive: 400, MaxSize: 64 << 10}

	// Extract --debug/-d flag
	filteredArgs := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == "--debug" || arg == "-d" {
			debugMode = true
		} else {
			filteredArgs = append(filteredArgs, arg)
		}
	}

	if err := logger.Init(logger.Options{
		Enabled: debugMode,
		Level:   slog.LevelDebug,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to init logging: %v\n", err)
	}

	for i := 0; i < len(filteredArgs); i++ {
		switch arg := filteredArgs[i]; arg {
		case "--help", "-h":
			printHelp()
			os.Exit(0)
		case "--version", "-v":
			fmt.Printf("heapview %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built: %s\n", date)
			os.Exit(0)
		case "--granularity", "--max-size":
			if i+1 == len(filteredArgs) {
				fail("%s needs a value", arg)
			}
			i++
			n, err := humanize.ParseBytes(filteredArgs[i])
			if err != nil {
				fail("%s: %v", arg, err)
			}
			if arg == "--granularity" {
				opts.Granularity = uintptr(n)
			} else {
				opts.MaxSize = uintptr(max(n, 1))
			}
		default:
			seed, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				printUsage()
				os.Exit(1)
			}
			opts.Seed = seed
		}
	}

	logger.L.Info("starting heapview", "seed", opts.Seed, "debug", debugMode)

	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		logger.L.Error("TUI error", "error", err)
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
	if model, ok := finalModel.(Model); ok {
		if err := model.Close(); err != nil {
			logger.L.Warn("error releasing heap", "error", err)
		}
	}
	logger.L.Info("heapview exited normally")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: heapview [options] [seed]\n")
	fmt.Fprintf(os.Stderr, "Try 'heapview --help' for more information.\n")
}

func printHelp() {
	fmt.Println("heapview - watch a dlmalloc heap fragment and recover")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  heapview [options] [seed]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Steps a seeded random workload through the allocator and draws every")
	fmt.Println("  segment as a strip of cells: in-use chunks, free chunks, the top chunk")
	fmt.Println("  and segment fences, followed by direct-mapped chunks.")
	fmt.Println()
	fmt.Println("  Keys:")
	fmt.Println("    space/s   One request")
	fmt.Println("    enter     One hundred requests")
	fmt.Println("    f / t     Free all blocks / trim")
	fmt.Println("    c         Validate the heap")
	fmt.Println("    y         Copy the JSON heap map to the clipboard")
	fmt.Println("    + / -     Zoom")
	fmt.Println("    ?         Show help")
	fmt.Println("    q         Quit")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  --granularity SIZE  Segment size (default 64KiB)")
	fmt.Println("  --max-size SIZE     Largest request (default 64KiB)")
	fmt.Println("  -d, --debug         Log allocator events to ~/.heapview/logs/")
	fmt.Println("  -h, --help          Show this help message")
	fmt.Println("  -v, --version       Show version information")
	fmt.Println()
	fmt.Println("For scripted runs, use 'dlmallocctl' instead.")
}
