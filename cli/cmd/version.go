package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/halide-io/sluice/types"
)

// VersionCommand returns the version command.
// All components share a single version (lockstep versioning).
// It must not touch the transport.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Printf("sluice %s (commit: %s)\n", types.Version, commit)
			return nil
		},
	}
}
