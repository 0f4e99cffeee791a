package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dudu/droneid/internal/detector"
)

var labelsList bool

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "Check that the detector class list contains the class of interest",
	RunE: func(cmd *cobra.Command, args []string) error {
		labels, err := detector.LoadLabels(cfg.Detector.Labels)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if labelsList {
			for i, name := range labels {
				fmt.Fprintf(out, "%3d  %s\n", i, name)
			}
		}

		idx, err := labels.Index(cfg.Detector.Class)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d classes, %q is class %d\n", cfg.Detector.Labels, len(labels), cfg.Detector.Class, idx)
		return nil
	},
}

func init() {
	labelsCmd.Flags().BoolVarP(&labelsList, "list", "l", false, "Print every class")
	rootCmd.AddCommand(labelsCmd)
}
