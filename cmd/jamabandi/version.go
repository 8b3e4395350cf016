package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"jamabandi/pkg/ui"
	"jamabandi/pkg/update"
)

var checkUpdate bool

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print version, build, and runtime information.`,
	Example: `  # Print the version
  jamabandi version

  # Also check GitHub for a newer release
  jamabandi version --check-update`,
	Run: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().BoolVar(&checkUpdate, "check-update", false, "check GitHub for a newer release")
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("Jamabandi Nakal Downloader %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Built:      %s\n", buildDate)
	fmt.Printf("Go Version: %s\n", runtime.Version())
	fmt.Printf("OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)

	if !checkUpdate {
		return
	}

	fmt.Println()
	checker := update.NewChecker(version, nil)
	info, err := checker.Check()
	if err != nil {
		ui.PrintWarning("Update check failed", err.Error())
		return
	}
	if info.UpdateAvailable {
		ui.PrintWarning(fmt.Sprintf("Update available: %s -> %s", info.CurrentVersion, info.LatestVersion))
		fmt.Printf("Download: %s\n", info.ReleaseURL)
	} else {
		ui.PrintSuccess("You are on the latest version")
	}
}
