package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dudu/droneid/internal/identity"
)

var compareTolerance float64

var compareCmd = &cobra.Command{
	Use:   "compare <reference> <image>",
	Short: "Match the faces in an image against a reference image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("tolerance") {
			cfg.Identity.Tolerance = compareTolerance
		}

		engine, err := newFaceEngine(cfg.Identity)
		if err != nil {
			return err
		}
		defer engine.Close()

		ref, err := identity.Enroll(args[0], engine, engine)
		if err != nil {
			return err
		}

		img, err := identity.ReadImage(args[1])
		if err != nil {
			return err
		}
		defer img.Close()

		matcher := identity.NewMatcher(engine, engine, cfg.Identity.Tolerance)
		matches, err := matcher.Match(img, ref)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(matches) == 0 {
			fmt.Fprintln(out, "no faces found")
			return nil
		}
		for i, m := range matches {
			r := m.Region.Rect()
			fmt.Fprintf(out, "face %d at %v: %s (distance %.3f, tolerance %.2f)\n",
				i+1, r, m.Result.Label, m.Result.Distance, matcher.Tolerance)
		}
		return nil
	},
}

func init() {
	compareCmd.Flags().Float64Var(&compareTolerance, "tolerance", identity.DefaultTolerance, "Largest face distance counted as a match")
	rootCmd.AddCommand(compareCmd)
}
