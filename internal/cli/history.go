package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "heston-pricer/internal/errors"
	"heston-pricer/internal/logging"
	"heston-pricer/internal/models"
	"heston-pricer/internal/report"
	"heston-pricer/internal/store"
)

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Recorded valuations",
		Long:  "List and inspect valuations recorded with price --save.",
	}

	cmd.AddCommand(newHistoryListCmd(app))
	cmd.AddCommand(newHistoryShowCmd(app))

	return cmd
}

func newHistoryListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded valuations, newest first",
		Example: `  hestonpricer history list
  hestonpricer history list --limit 5 --status CONVERGENCE_FAILURE`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app.Config.UI.ColorEnabled)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			limit, _ := cmd.Flags().GetInt("limit")
			status, _ := cmd.Flags().GetString("status")
			filter := store.ValuationFilter{Limit: limit}
			if status != "" {
				s, err := parseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = s
			}

			s, closeStore, err := app.openStore()
			if err != nil {
				output.Error("Failed to open history: %v", err)
				return err
			}
			defer closeStore()

			start := time.Now()
			valuations, err := s.ListValuations(ctx, filter)
			logging.LogStoreCall(app.Logger, "list_valuations", time.Since(start), err)
			if err != nil {
				output.Error("Failed to fetch valuations: %v", err)
				return err
			}

			if output.IsJSON() {
				docs := make([]report.ValuationDocument, 0, len(valuations))
				for _, v := range valuations {
					docs = append(docs, report.NewValuationDocument(v))
				}
				return output.JSON(docs)
			}

			if len(valuations) == 0 {
				output.Info("No valuations recorded.")
				output.Dim("Tip: run price --save to record one.")
				return nil
			}

			table := NewTable(output, "ID", "Time", "S0", "K", "T", "Observed", "BS", "Heston", "Status")
			for _, v := range valuations {
				heston := report.Price(v.HestonPrice)
				if v.Unstable {
					heston += "*"
				}
				table.AddRow(
					strconv.FormatInt(v.ID, 10),
					FormatDateTime(v.Timestamp),
					report.Fixed(v.Market.Spot, 2),
					report.Fixed(v.Market.Strike, 2),
					report.Fixed(v.Market.Maturity, 2),
					report.Price(v.ObservedPrice),
					report.Price(v.BSPrice),
					heston,
					statusLabel(output, v.Status),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "maximum number of valuations")
	cmd.Flags().String("status", "", "filter by status (SUCCESS or CONVERGENCE_FAILURE)")

	return cmd
}

func newHistoryShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded valuation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app.Config.UI.ColorEnabled)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return apperrors.NewValidationError("id", args[0], "must be an integer")
			}

			s, closeStore, err := app.openStore()
			if err != nil {
				output.Error("Failed to open history: %v", err)
				return err
			}
			defer closeStore()

			start := time.Now()
			v, err := s.GetValuation(ctx, id)
			logging.LogStoreCall(app.Logger, "get_valuation", time.Since(start), err)
			if err != nil {
				if apperrors.Is(err, apperrors.ErrNotFound) {
					output.Warning("No valuation with id %d", id)
				}
				return err
			}

			if output.IsJSON() {
				return output.JSON(report.NewValuationDocument(*v))
			}
			showValuation(output, v)
			return nil
		},
	}
}

func showValuation(output *Output, v *models.Valuation) {
	output.Bold("Valuation #%d (%s)", v.ID, FormatDateTime(v.Timestamp))
	output.Printf("  Market:    S0=%g K=%g T=%g r=%g\n", v.Market.Spot, v.Market.Strike, v.Market.Maturity, v.Market.Rate)
	output.Printf("  Heston:    v0=%g kappa=%g theta=%g sigma=%g rho=%g\n",
		v.Params.V0, v.Params.Kappa, v.Params.Theta, v.Params.Sigma, v.Params.Rho)
	output.Println()
	output.Printf("  Observed:  %s\n", report.Price(v.ObservedPrice))
	output.Printf("  BS:        %s (vol %s)\n", report.Price(v.BSPrice), report.Percent(v.ImpliedVol))
	output.Printf("  Heston:    %s\n", report.Price(v.HestonPrice))
	output.Printf("  P1 / P2:   %s / %s\n", report.Fixed(v.P1, 6), report.Fixed(v.P2, 6))
	output.Printf("  Status:    %s\n", statusLabel(output, v.Status))
	if v.Unstable {
		output.Warning("  Negative Heston price (numerical instability)")
	}
}

func statusLabel(output *Output, s models.PricingStatus) string {
	if s == models.StatusSuccess {
		return output.Signed(1, string(s))
	}
	return output.Signed(-1, string(s))
}

func parseStatus(s string) (models.PricingStatus, error) {
	switch models.PricingStatus(strings.ToUpper(s)) {
	case models.StatusSuccess:
		return models.StatusSuccess, nil
	case models.StatusConvergenceFailure:
		return models.StatusConvergenceFailure, nil
	}
	return "", apperrors.NewValidationError("status", s, fmt.Sprintf("must be %s or %s", models.StatusSuccess, models.StatusConvergenceFailure))
}
