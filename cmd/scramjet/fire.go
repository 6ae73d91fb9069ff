package main

import (
	"context"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/dotslashapaar/scramjet/pkg/log"
	"github.com/dotslashapaar/scramjet/pkg/txbuilder"
)

var fireCmd = &cobra.Command{
	Use:   "fire",
	Short: "Build one transfer transaction and send it to the current leader once",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := runBootstrap(cmd)
		if err != nil {
			return err
		}
		defer b.shutdown()

		recipientStr, _ := cmd.Flags().GetString("recipient")
		priorityFee, _ := cmd.Flags().GetUint64("priority-fee")
		if priorityFee == 0 {
			priorityFee = b.cfg.DefaultPriorityFee
		}

		ctx := context.Background()

		recipient, err := resolveRecipient(recipientStr, b.id.Public)
		if err != nil {
			return err
		}

		wire, sig, err := buildTransferTx(ctx, b, recipient, priorityFee)
		if err != nil {
			return err
		}

		slot := b.cartographer.GetKnownSlot()
		target, err := b.cartographer.GetTarget(slot)
		if err != nil {
			fmt.Printf("No leader found for slot %d, nothing sent.\n", slot)
			return nil
		}

		log.Logger.Info().Str("target", target.String()).Uint64("priority_fee", priorityFee).Msg("firing transaction")
		if err := b.engine.SendTransaction(ctx, target, wire); err != nil {
			return fmt.Errorf("sending transaction: %w", err)
		}

		fmt.Printf("Sent! Sig: %s\n", sig)
		return nil
	},
}

func init() {
	fireCmd.Flags().String("recipient", "", "Recipient pubkey (base58); defaults to the identity's own address")
	fireCmd.Flags().Uint64("priority-fee", 0, "Priority fee in micro-lamports per compute unit (default from config)")
}

// resolveRecipient parses the --recipient flag, defaulting to the
// identity's own public key when unset.
func resolveRecipient(s string, selfPub []byte) (txbuilder.Pubkey, error) {
	if s == "" {
		var pk txbuilder.Pubkey
		copy(pk[:], selfPub)
		return pk, nil
	}
	pk, err := txbuilder.ParsePubkey(s)
	if err != nil {
		return txbuilder.Pubkey{}, fmt.Errorf("invalid --recipient: %w", err)
	}
	return pk, nil
}

// buildTransferTx fetches a fresh blockhash and builds the fixed
// compute-budget + transfer instruction set scramjet's fire/spam
// commands send.
func buildTransferTx(ctx context.Context, b *bootstrap, recipient txbuilder.Pubkey, priorityFee uint64) ([]byte, string, error) {
	blockhashInfo, err := b.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("fetching latest blockhash: %w", err)
	}

	decoded, err := base58.Decode(blockhashInfo.Blockhash)
	if err != nil {
		return nil, "", fmt.Errorf("invalid blockhash %q: %w", blockhashInfo.Blockhash, err)
	}
	if len(decoded) != 32 {
		return nil, "", fmt.Errorf("invalid blockhash length for %q: got %d bytes, want 32", blockhashInfo.Blockhash, len(decoded))
	}
	var blockhash [32]byte
	copy(blockhash[:], decoded)

	return txbuilder.Build(txbuilder.BuildParams{
		Payer:                    b.id,
		Recipient:                recipient,
		ComputeUnitLimit:         b.cfg.DefaultComputeUnitLimit,
		PriorityFeeMicroLamports: priorityFee,
		LamportsToSend:           1,
		RecentBlockhash:          blockhash,
	})
}
