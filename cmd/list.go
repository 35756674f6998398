package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newListCmd prints the scenarios the runner knows about.
func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered scenarios and their expected outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-28s %-9s %-5s %s\n", "Name", "Expected", "Demo", "Goal")
			for _, scn := range registry.All() {
				expected := "pass"
				if !scn.ShouldPass {
					expected = "fail"
				}
				demo := ""
				if scn.Demo {
					demo = "yes"
				}
				goal := scn.Goal
				if len(goal) > 70 {
					goal = goal[:67] + "..."
				}
				fmt.Fprintf(out, "%-28s %-9s %-5s %s\n", scn.Name, expected, demo, goal)
			}
			fmt.Fprintf(out, "\n%d scenarios registered.\n", registry.Len())
			return nil
		},
	}
}
