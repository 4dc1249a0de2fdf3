package cmd

import (
	"fmt"

	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/task"
	"github.com/spf13/cobra"

	"github.com/flanksource/toolchains/pkg/installer"
	"github.com/flanksource/toolchains/pkg/manager"
)

var installUpdate bool

var installCmd = &cobra.Command{
	Use:   "install [project-dir]",
	Short: "Install the toolchains a project declares",
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

		var installErr error
		installer.StartInstallTask(projectDir, func(t *task.Task) error {
			installErr = app.InstallProject(projectDir, manager.Options{Update: installUpdate, Task: t})
			return installErr
		})

		if exitCode := clicky.WaitForGlobalCompletion(); exitCode != 0 && installErr == nil {
			return fmt.Errorf("install failed with exit code %d", exitCode)
		}
		return installErr
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download [project-dir]",
	Short: "Download and verify a project's toolchain archives without installing",
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

		if err := app.Installer.DownloadProject(projectDir, manager.Options{Update: installUpdate}); err != nil {
			return err
		}
		fmt.Println("downloads complete")
		return nil
	},
}

func init() {
	installCmd.Flags().BoolVar(&installUpdate, "update", false, "Refresh indices before resolving")
	downloadCmd.Flags().BoolVar(&installUpdate, "update", false, "Refresh indices before resolving")
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(downloadCmd)
}
