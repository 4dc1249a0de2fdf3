package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flanksource/toolchains"
	"github.com/flanksource/toolchains/pkg/manager"
	"github.com/flanksource/toolchains/pkg/version"
)

var (
	listUpdate     bool
	listFilter     string
	listTags       []string
	listConstraint string
)

var listCmd = &cobra.Command{
	Use:   "list <moniker>",
	Short: "List packages available for a toolchain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		mgr, err := newManager(app, args[0])
		if err != nil {
			return err
		}

		var filter manager.SourceFilter
		switch listFilter {
		case "all", "":
			filter = manager.All
		case "local":
			filter = manager.LocalOnly
		case "remote":
			filter = manager.RemoteOnly
		default:
			return fmt.Errorf("invalid filter %q (expected all, local or remote)", listFilter)
		}

		packages, err := mgr.ListPackages(filter, manager.TagFilter(listTags), manager.Options{Update: listUpdate})
		if err != nil {
			return err
		}
		for _, pkg := range packages {
			if listConstraint != "" {
				ok, err := version.SatisfiesConstraint(pkg.Version.String(), listConstraint)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
			}
			marker := " "
			if pkg.Availability == manager.Local {
				marker = "*"
			}
			fmt.Printf("%s %-20s %s\n", marker, pkg.Version, pkg.Name)
		}
		return nil
	},
}

var tagsCmd = &cobra.Command{
	Use:   "tags <moniker>",
	Short: "List the tags a toolchain understands",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		mgr, err := newManager(app, args[0])
		if err != nil {
			return err
		}

		tags, err := mgr.ListTags(manager.Options{Update: listUpdate})
		if err != nil {
			return err
		}
		fmt.Println("Default tags:")
		for _, tag := range tags.Default {
			fmt.Printf("  %s\n", tag)
		}
		fmt.Println("Other tags:")
		for _, tag := range tags.Other {
			fmt.Printf("  %s\n", tag)
		}
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [moniker...]",
	Short: "Refresh the upstream package indices",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		monikers := args
		if len(monikers) == 0 {
			monikers = manager.GetGlobalRegistry().Monikers()
		}
		for _, moniker := range monikers {
			mgr, err := newManager(app, moniker)
			if err != nil {
				return err
			}
			if err := mgr.UpdateIndex(manager.Options{Update: true}); err != nil {
				return fmt.Errorf("failed to update %s index: %w", moniker, err)
			}
			fmt.Printf("updated %s index\n", moniker)
		}
		return nil
	},
}

// newManager constructs a manager bound to the toolchain's cache subdirectory
func newManager(app *toolchains.App, moniker string) (manager.PackageManager, error) {
	return manager.GetGlobalRegistry().NewPackageManager(moniker, filepath.Join(app.CacheRoot(), moniker))
}

func init() {
	listCmd.Flags().BoolVar(&listUpdate, "update", false, "Refresh the index before listing")
	listCmd.Flags().StringVar(&listFilter, "filter", "all", "Filter by cache residency (all, local, remote)")
	listCmd.Flags().StringSliceVar(&listTags, "tag", nil, "Extra required tags")
	listCmd.Flags().StringVar(&listConstraint, "constraint", "", "Only show versions matching a semver constraint")
	tagsCmd.Flags().BoolVar(&listUpdate, "update", false, "Refresh the index before listing")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(updateCmd)
}
