package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/photon/internal/config"
	"github.com/vango-dev/photon/internal/errors"
)

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default photon.json",
		Long: `Write photon.json with every setting at its default value.

Examples:
  photon init
  photon init ./deploy --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(dir, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing photon.json")

	return cmd
}

func runInit(dir string, force bool) error {
	if config.Exists(dir) && !force {
		return errors.New(errors.ConfigInvalidValue).
			WithField(filepath.Join(dir, config.ConfigFileName)).
			WithDetail("file already exists").
			WithSuggestion("Pass --force to overwrite it")
	}
	path := filepath.Join(dir, config.ConfigFileName)
	if err := config.New().SaveTo(path); err != nil {
		return err
	}
	success("Wrote %s", path)
	return nil
}
