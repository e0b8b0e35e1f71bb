package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

// releaseRepo is where release binaries are published
const releaseRepo = "harmonyvt/memographic"

type updateOptions struct {
	repo  string
	check bool
	yes   bool
}

func newUpdateCmd() *cobra.Command {
	opts := &updateOptions{}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update memographic to the latest release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.repo, "repo", releaseRepo, "GitHub repository (owner/name) to update from")
	cmd.Flags().BoolVar(&opts.check, "check", false, "only report whether an update is available")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "install without asking")
	return cmd
}

// newUpdater checks release checksums against checksums.txt, the file
// goreleaser publishes next to the archives
func newUpdater() (*selfupdate.Updater, error) {
	return selfupdate.NewUpdater(selfupdate.Config{
		Validator: &selfupdate.ChecksumValidator{UniqueFilename: "checksums.txt"},
	})
}

func runUpdate(ctx context.Context, opts *updateOptions) error {
	if version == "dev" {
		return errors.New("development builds cannot be updated; install a release instead")
	}

	updater, err := newUpdater()
	if err != nil {
		return fmt.Errorf("failed to create updater: %w", err)
	}

	var (
		latest    *selfupdate.Release
		found     bool
		detectErr error
	)
	err = spinner.New().
		Title("Checking for updates...").
		Action(func() {
			latest, found, detectErr = updater.DetectLatest(ctx, selfupdate.ParseSlug(opts.repo))
		}).
		Run()
	if detectErr != nil {
		return fmt.Errorf("failed to check for updates: %w", detectErr)
	}
	if err != nil {
		return err
	}

	if !found {
		fmt.Println(infoStyle.Render(fmt.Sprintf("No release found for %s/%s.", runtime.GOOS, runtime.GOARCH)))
		return nil
	}
	if latest.LessOrEqual(version) {
		fmt.Println(successStyle.Render("memographic " + version + " is up to date."))
		return nil
	}

	fmt.Println(boxStyle.Render(fmt.Sprintf(
		"Update available\n\n"+
			"Current: %s\n"+
			"Latest:  %s\n"+
			"Release: %s",
		version, latest.Version(), latest.URL,
	)))
	if opts.check {
		return nil
	}

	if !opts.yes {
		var proceed bool
		err := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title("Install " + latest.Version() + "?").
				Affirmative("Yes, update").
				Negative("No").
				Value(&proceed),
		)).WithTheme(huh.ThemeCatppuccin()).RunWithContext(ctx)
		if err != nil || !proceed {
			fmt.Println(infoStyle.Render("Update cancelled."))
			return nil
		}
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}

	var updateErr error
	err = spinner.New().
		Title("Downloading " + latest.AssetName + "...").
		Action(func() {
			updateErr = updater.UpdateTo(ctx, latest, exe)
		}).
		Run()
	if updateErr != nil {
		if errors.Is(updateErr, os.ErrPermission) {
			return fmt.Errorf("cannot replace %s, try again with elevated permissions: %w", exe, updateErr)
		}
		return fmt.Errorf("failed to update: %w", updateErr)
	}
	if err != nil {
		return err
	}

	fmt.Println(successStyle.Render("Updated to " + latest.Version()))
	return nil
}
