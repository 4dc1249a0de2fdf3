package cmd

import (
	"os"

	"github.com/flanksource/commons/logger"
	"github.com/spf13/cobra"

	"github.com/flanksource/toolchains"
	"github.com/flanksource/toolchains/pkg/platform"

	// Register all toolchains via init functions
	_ "github.com/flanksource/toolchains/pkg/manager/golang"
	_ "github.com/flanksource/toolchains/pkg/manager/java"
	_ "github.com/flanksource/toolchains/pkg/manager/python"
)

var (
	cacheDir     string
	osOverride   string
	archOverride string
	verbosity    int
)

var rootCmd = &cobra.Command{
	Use:   "toolchains",
	Short: "Manage isolated per-project runtime toolchains",
	Long: `toolchains installs Python, Go and Java toolchains into a shared,
content-addressed store and wires each project to the versions its
toolchains.yaml declares.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbosity > 0 {
			logger.StandardLogger().SetLogLevel(verbosity)
		}
		platform.SetGlobalOverrides(osOverride, archOverride)
	},
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openApp acquires the repository; command RunE functions defer Close
func openApp() (*toolchains.App, error) {
	return toolchains.Open(cacheDir)
}

// workingDir resolves the project directory argument, defaulting to cwd
func workingDir(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return os.Getwd()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Cache and repository directory (default ~/.toolchains)")
	rootCmd.PersistentFlags().StringVar(&osOverride, "os", "", "Override target OS")
	rootCmd.PersistentFlags().StringVar(&archOverride, "arch", "", "Override target architecture")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity")
}
