package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags at release time. Unset fields fall back to the build
// info the toolchain embeds.
var (
	version = ""
	commit  = ""
	date    = ""
)

type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"goVersion"`
	Engine    string `json:"engine"`
}

// readBuildInfo merges the linker-provided fields with the module build info.
func readBuildInfo() buildInfo {
	bi := buildInfo{Version: version, Commit: commit, Date: date, Engine: "unknown"}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		if bi.Version == "" {
			bi.Version = "dev"
		}
		return bi
	}

	bi.GoVersion = info.GoVersion
	if bi.Version == "" {
		bi.Version = info.Main.Version
	}
	for _, dep := range info.Deps {
		if dep.Path == "github.com/joshuapare/dlmalloc" {
			bi.Engine = dep.Version
			if dep.Replace != nil {
				bi.Engine = dep.Replace.Path
			}
		}
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if bi.Commit == "" {
				bi.Commit = s.Value
			}
		case "vcs.time":
			if bi.Date == "" {
				bi.Date = s.Value
			}
		}
	}
	if bi.Version == "" || bi.Version == "(devel)" {
		bi.Version = "dev"
	}
	return bi
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		bi := readBuildInfo()
		if jsonOut {
			return printJSON(bi)
		}
		fmt.Printf("dlmallocctl %s\n", bi.Version)
		fmt.Printf("  engine: %s\n", bi.Engine)
		if bi.Commit != "" {
			fmt.Printf("  commit: %s\n", bi.Commit)
		}
		if bi.Date != "" {
			fmt.Printf("  built: %s\n", bi.Date)
		}
		if bi.GoVersion != "" {
			fmt.Printf("  go: %s\n", bi.GoVersion)
		}
		return nil
	},
}

func init() {
	rootCmd.Version = readBuildInfo().Version
	rootCmd.AddCommand(versionCmd)
}
