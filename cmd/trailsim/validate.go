package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/newthinker/trailsim/internal/core"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [symbol...]",
	Short: "Check symbols are known to the configured provider",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out := cmd.OutOrStdout()
	unknown := 0
	for _, symbol := range args {
		err := a.Collector().Validate(ctx, symbol)
		switch {
		case err == nil:
			fmt.Fprintf(out, "%-12s ok\n", symbol)
		case errors.Is(err, core.ErrSymbolNotFound):
			unknown++
			fmt.Fprintf(out, "%-12s not found\n", symbol)
		default:
			return fmt.Errorf("validating %s: %w", symbol, err)
		}
	}

	if unknown > 0 {
		return fmt.Errorf("%d of %d symbols not found on %s", unknown, len(args), a.Collector().Name())
	}
	return nil
}
