package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/newthinker/trailsim/internal/backtest"
	"github.com/newthinker/trailsim/internal/core"
	"github.com/newthinker/trailsim/internal/export"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	simSymbol  string
	simFrom    string
	simTo      string
	simBuy     float64
	simSell    float64
	simCapital float64
	simFormats []string
	simQuiet   bool
)

var simulateCmd = &cobra.Command{
	Use:     "simulate",
	Aliases: []string{"run"},
	Short:   "Simulate the trailing-threshold strategy on one symbol",
	Long: `Fetch daily bars for the symbol between --from and --to (both inclusive), run the
strategy and export the execution log in the configured formats.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simSymbol, "symbol", "", "Symbol to simulate (required)")
	simulateCmd.Flags().StringVar(&simFrom, "from", "", "Start date YYYY-MM-DD (required)")
	simulateCmd.Flags().StringVar(&simTo, "to", "", "End date YYYY-MM-DD (required)")
	simulateCmd.Flags().Float64Var(&simBuy, "buy", 0, "Buy threshold in percent (default from config)")
	simulateCmd.Flags().Float64Var(&simSell, "sell", 0, "Sell threshold in percent (default from config)")
	simulateCmd.Flags().Float64Var(&simCapital, "capital", 0, "Initial capital (default from config)")
	simulateCmd.Flags().StringSliceVar(&simFormats, "format", nil, "Export formats: xlsx, csv, txt (default from config)")
	simulateCmd.Flags().BoolVarP(&simQuiet, "quiet", "q", false, "Print only the summary line")

	simulateCmd.MarkFlagRequired("symbol")
	simulateCmd.MarkFlagRequired("from")
	simulateCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	fromDate, err := time.Parse(core.DateLayout, simFrom)
	if err != nil {
		return fmt.Errorf("invalid from date format (expected YYYY-MM-DD): %w", err)
	}
	toDate, err := time.Parse(core.DateLayout, simTo)
	if err != nil {
		return fmt.Errorf("invalid to date format (expected YYYY-MM-DD): %w", err)
	}

	formats, err := export.ParseFormats(simFormats)
	if err != nil {
		return err
	}

	a, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	params := a.Config().Simulation
	flags := cmd.Flags()
	if flags.Changed("buy") {
		params.BuyPct = simBuy
	}
	if flags.Changed("sell") {
		params.SellPct = simSell
	}
	if flags.Changed("capital") {
		params.InitialCapital = simCapital
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, artifacts, err := a.Simulate(ctx, backtest.Request{
		Symbol: simSymbol,
		Start:  fromDate,
		End:    toDate,
		Params: params,
	}, formats...)
	if err != nil {
		log.Error("simulation failed", zap.String("symbol", simSymbol), zap.Error(err))
		return err
	}

	out := cmd.OutOrStdout()
	if !simQuiet {
		for _, e := range res.Events {
			fmt.Fprintln(out, e)
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, export.SummaryTable(res))
		for _, art := range artifacts {
			fmt.Fprintf(out, "wrote %s (%d bytes)\n", art.Path, art.Size)
		}
	}
	fmt.Fprintln(out, export.SummaryLine(res))
	return nil
}
