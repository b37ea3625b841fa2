package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/templetwo/sovereign-stack/internal/mcpserver"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sovereignd version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("sovereignd %s\n", mcpserver.Version)
		return nil
	},
}
