package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dotslashapaar/scramjet/pkg/log"
)

// spamResult is the per-copy outcome collected for the summary line;
// pure CLI-output bookkeeping, not routing/transport state.
type spamResult struct {
	index    int
	duration time.Duration
	err      error
}

var spamCmd = &cobra.Command{
	Use:   "spam",
	Short: "Build one transaction, lock onto the current leader, and fire N copies in parallel on the same session",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := runBootstrap(cmd)
		if err != nil {
			return err
		}
		defer b.shutdown()

		count, _ := cmd.Flags().GetUint64("count")
		if count == 0 {
			count = 10
		}
		recipientStr, _ := cmd.Flags().GetString("recipient")
		priorityFee, _ := cmd.Flags().GetUint64("priority-fee")
		if priorityFee == 0 {
			priorityFee = b.cfg.DefaultPriorityFee
		}

		ctx := context.Background()
		batchID := uuid.NewString()

		recipient, err := resolveRecipient(recipientStr, b.id.Public)
		if err != nil {
			return err
		}

		wire, _, err := buildTransferTx(ctx, b, recipient, priorityFee)
		if err != nil {
			return err
		}

		slot := b.cartographer.GetKnownSlot()
		target, err := b.cartographer.GetTarget(slot)
		if err != nil {
			return fmt.Errorf("no leader found for slot %d, aborting", slot)
		}

		log.Logger.Info().Str("batch", batchID).Str("target", target.String()).Uint64("count", count).Msg("spam: locking onto leader")

		// Acquire the connection once; SendTransaction reuses the
		// cached session for every copy, multiplexing onto it.
		if _, err := b.engine.GetConnectionHandle(ctx, target); err != nil {
			return fmt.Errorf("handshake failed: %w", err)
		}

		results := make([]spamResult, count)
		var wg sync.WaitGroup
		for i := uint64(0); i < count; i++ {
			wg.Add(1)
			go func(i uint64) {
				defer wg.Done()
				start := time.Now()
				err := b.engine.SendTransaction(ctx, target, wire)
				results[i] = spamResult{index: int(i), duration: time.Since(start), err: err}
			}(i)
		}
		wg.Wait()

		ok := 0
		for _, r := range results {
			if r.err == nil {
				ok++
			} else {
				log.Logger.Debug().Str("batch", batchID).Int("index", r.index).Err(r.err).Msg("spam: copy failed")
			}
		}
		fmt.Printf("Firing complete: %d/%d sent\n", ok, count)
		return nil
	},
}

func init() {
	spamCmd.Flags().Uint64("count", 10, "Number of copies to fire")
	spamCmd.Flags().String("recipient", "", "Recipient pubkey (base58); defaults to the identity's own address")
	spamCmd.Flags().Uint64("priority-fee", 0, "Priority fee in micro-lamports per compute unit (default from config)")
}
