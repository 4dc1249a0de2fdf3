package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flanksource/toolchains/pkg/envs"
)

var initCmd = &cobra.Command{
	Use:   "init [project-dir]",
	Short: "Initialize a fresh data directory for a project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectDir, err := workingDir(args)
		if err != nil {
			return err
		}

		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		info, err := app.Repo.InitProject(projectDir)
		if err != nil {
			return err
		}
		fmt.Printf("initialized %s -> %s\n", info.ProjectDir, info.DataDir)
		return nil
	},
}

var linkCmd = &cobra.Command{
	Use:   "link <meta-id> [project-dir]",
	Short: "Link a project to an existing data directory",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectDir, err := workingDir(args[1:])
		if err != nil {
			return err
		}

		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		info, err := app.Repo.Link(projectDir, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("linked %s -> %s\n", info.ProjectDir, info.DataDir)
		return nil
	},
}

var unlinkCmd = &cobra.Command{
	Use:   "unlink [project-dir]",
	Short: "Remove a project's link, keeping its data directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectDir, err := workingDir(args)
		if err != nil {
			return err
		}

		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		return app.Repo.Unlink(projectDir)
	},
}

var cleanupDryRun bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Reclaim orphaned links and data directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		trash, err := app.Repo.ComputeTrash()
		if err != nil {
			return err
		}
		if trash.IsEmpty() {
			fmt.Println("nothing to clean up")
			return nil
		}

		for _, link := range trash.InvalidLinks {
			fmt.Printf("invalid link: %s (project %s)\n", link.LinkID, link.ProjectDir)
		}
		for _, manifest := range trash.UnreferencedManifests {
			fmt.Printf("unreferenced manifest: %s (data %s)\n", manifest.MetaID, manifest.DataDir)
		}
		if cleanupDryRun {
			return nil
		}

		_, err = app.Repo.EmptyTrash()
		return err
	},
}

var envCmd = &cobra.Command{
	Use:   "env [project-dir]",
	Short: "Print the environment a project's toolchains provide",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectDir, err := workingDir(args)
		if err != nil {
			return err
		}

		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		info, err := app.Env(projectDir)
		if err != nil {
			return err
		}
		for _, dir := range info.PathDirs {
			fmt.Printf("PATH+=%s\n", dir)
		}
		for key, value := range info.Vars {
			fmt.Printf("%s=%s\n", key, value)
		}
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info [project-dir]",
	Short: "Show a project's data directory and installed toolchains",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectDir, err := workingDir(args)
		if err != nil {
			return err
		}

		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		dirInfo, err := app.Repo.Get(projectDir)
		if err != nil {
			return err
		}
		if dirInfo == nil {
			fmt.Printf("%s is not initialized\n", projectDir)
			return nil
		}
		fmt.Printf("meta-id:  %s\n", dirInfo.MetaID)
		fmt.Printf("data dir: %s\n", dirInfo.DataDir)

		rec, err := envs.Read(dirInfo.DataDir)
		if err != nil {
			return err
		}
		for _, entry := range rec.Envs {
			fmt.Printf("  %s %v\n", entry.Moniker, entry.Properties)
		}

		executables, err := envs.ListExecutables(dirInfo.DataDir, rec)
		if err != nil {
			return err
		}
		if len(executables) > 0 {
			fmt.Println("commands:")
			for _, executable := range executables {
				fmt.Printf("  %s\n", executable)
			}
		}
		return nil
	},
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Report trash without deleting it")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(unlinkCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(infoCmd)
}
