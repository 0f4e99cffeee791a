package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/dudu/droneid/internal/camera"
)

var batteryCmd = &cobra.Command{
	Use:   "battery",
	Short: "Print the Tello battery level",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		tello := camera.NewTello(camera.TelloOptions{Addr: cfg.Source.TelloAddr})
		defer func() {
			err = multierr.Append(err, tello.Close())
		}()

		if err := tello.Connect(); err != nil {
			return err
		}
		pct, err := tello.Battery()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Battery life: %d%%\n", pct)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batteryCmd)
}
