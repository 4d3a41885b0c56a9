package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ent0n29/aerocopilot/internal/casestudy"
)

var casesCmd = &cobra.Command{
	Use:   "cases [ID]",
	Short: "List featured case studies or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 1 {
			cs := casestudy.Resolve(args[0])
			fmt.Fprintf(out, "%s (%s)\n", cs.Title, cs.ID)
			fmt.Fprintf(out, "  date:     %s\n", cs.Date)
			fmt.Fprintf(out, "  location: %s\n", cs.Location)
			fmt.Fprintf(out, "  status:   %s\n", cs.Status)
			if cs.PrimaryCause != "" {
				fmt.Fprintf(out, "  cause:    %s\n", cs.PrimaryCause)
			}
			if cs.AISolution != "" {
				fmt.Fprintf(out, "  solution: %s\n", cs.AISolution)
			}
			return nil
		}
		for _, cs := range casestudy.List() {
			fmt.Fprintf(out, "%-14s %-36s %s\n", cs.ID, cs.Title, cs.Date)
		}
		return nil
	},
}
