package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/agentebl/multibanco-agent-go/internal/config"
	"github.com/agentebl/multibanco-agent-go/internal/domain"
	"github.com/agentebl/multibanco-agent-go/internal/infra/observability"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newFeeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fee <amount>",
		Short: "Print the fee and total charged for an amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			if amount.IsNegative() {
				return fmt.Errorf("invalid amount %q: must not be negative", args[0])
			}
			if err := domain.CheckAmount("amount", amount); err != nil {
				return err
			}
			q := domain.QuoteFee(amount)
			fmt.Fprintf(cmd.OutOrStdout(), "amount %s  fee %s  total %s\n",
				q.Amount.StringFixed(domain.CurrencyPlaces),
				q.Fee.StringFixed(domain.CurrencyPlaces),
				q.Total.StringFixed(domain.CurrencyPlaces),
			)
			return nil
		},
	}
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <dni>",
		Short: "Resolve an 8-digit DNI with the configured identity source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			resolver, err := buildResolver(cfg, observability.NewMetrics(), zap.NewNop(), nil)
			if err != nil {
				return err
			}
			id, err := resolver.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), id)
		},
	}
}

func newRUCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ruc <ruc>",
		Short: "Resolve an 11-digit RUC with the configured identity source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			resolver, err := buildResolver(cfg, observability.NewMetrics(), zap.NewNop(), nil)
			if err != nil {
				return err
			}
			biz, err := resolver.ResolveBusiness(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), biz)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
