package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Periodically print the current slot and its leader's address",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := runBootstrap(cmd)
		if err != nil {
			return err
		}
		defer b.shutdown()

		ticker := time.NewTicker(b.cfg.MonitorInterval())
		defer ticker.Stop()

		for range ticker.C {
			slot := b.cartographer.GetKnownSlot()
			if slot == 0 {
				continue
			}
			addr, err := b.cartographer.GetTarget(slot)
			if err != nil {
				// GetTarget only ever fails with NoLeaderFound (no
				// schedule entry, no known address, or blocked).
				fmt.Printf("Slot: %d | Leader: UNKNOWN\n", slot)
				continue
			}
			fmt.Printf("Slot: %d | Leader: %s\n", slot, addr.String())
		}
		return nil
	},
}
