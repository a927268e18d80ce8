package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"limitScope/internal/engine"
	"limitScope/internal/model"
	"limitScope/internal/tickmath"
)

func newClaimIDCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim-id",
		Short: "Print the claim id of the bucket containing a tick",
		RunE:  runClaimID,
	}
	cmd.Flags().String("currency0", "", "first pool currency")
	cmd.Flags().String("currency1", "", "second pool currency")
	cmd.Flags().Uint32("fee", 3000, "fee in hundredths of a basis point")
	cmd.Flags().Int32("tick-spacing", 60, "tick spacing")
	cmd.Flags().String("hooks", "", "hook address")
	cmd.Flags().Int32("tick", 0, "order tick")
	cmd.Flags().Bool("zero-for-one", true, "order sells currency0")
	return cmd
}

func runClaimID(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	c0, _ := flags.GetString("currency0")
	c1, _ := flags.GetString("currency1")
	hooks, _ := flags.GetString("hooks")
	fee, _ := flags.GetUint32("fee")
	spacing, _ := flags.GetInt32("tick-spacing")
	tick, _ := flags.GetInt32("tick")
	zeroForOne, _ := flags.GetBool("zero-for-one")

	for name, value := range map[string]string{"currency0": c0, "currency1": c1, "hooks": hooks} {
		if !common.IsHexAddress(value) {
			return fmt.Errorf("invalid %s address: %q", name, value)
		}
	}

	key := model.NewPoolKey(common.HexToAddress(c0), common.HexToAddress(c1), fee, spacing, common.HexToAddress(hooks))
	if err := key.Validate(); err != nil {
		return err
	}
	if !tickmath.InRange(tick) {
		return fmt.Errorf("tick out of range: %d", tick)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "pool     %s\n", key.ID().Hex())
	fmt.Fprintf(cmd.OutOrStdout(), "tick     %d\n", tickmath.LowerBoundary(tick, key.TickSpacing))
	fmt.Fprintf(cmd.OutOrStdout(), "claim_id %s\n", engine.ClaimID(key, tick, zeroForOne).Hex())
	return nil
}
