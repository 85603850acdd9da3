package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/workout"
)

func newWorkoutCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "workout", Short: "Inspect workouts"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the built-in workout catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSEGMENTS\tDURATION")
			for _, w := range workout.Catalog {
				fmt.Fprintf(tw, "%s\t%d\t%v\n", w.Name, len(w.Segments), w.TotalDuration())
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name|file>",
		Short: "Print a catalog workout or workout file as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := resolveWorkout(args[0])
			if err != nil {
				return err
			}
			out, err := workout.Marshal(w)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a workout file can be run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := workout.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %s segments, %v\n",
				w.Name, humanize.Comma(int64(len(w.Segments))), w.TotalDuration())
			return nil
		},
	})
	return cmd
}
