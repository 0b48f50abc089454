package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/heart-risk-service/internal/dashboard"
	"github.com/heart-risk-service/internal/domain"
	"github.com/heart-risk-service/internal/predictionlog"
)

func newPredictCmd(a *app) *cobra.Command {
	var (
		apiURL      string
		useDefaults bool
		noLog       bool
		values      = make(map[string]*float64, len(domain.FeatureColumns))
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Request a prediction and log it",
		Long: `Send one patient to the prediction API, print the outcome and append it
to the prediction log. Failed predictions are never logged.

Inputs start from the sample patient (or the form defaults with --defaults);
any feature flag overrides a single value. Values are checked against the
dashboard options file before the request is sent.

EXAMPLES:

  heartctl predict                          # the sample patient
  heartctl predict --age 54 --chol 260
  heartctl predict --defaults --thal 2
  heartctl predict --no-log --api-url http://localhost:8000/predict`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			client, err := a.client(apiURL)
			if err != nil {
				return err
			}

			options, err := dashboard.LoadOptions(a.config.Dashboard.OptionsPath)
			if err != nil {
				a.logger.WithError(err).Warn("Options file unavailable, input constraints not checked")
				options = nil
			}

			var store predictionlog.Store = discardLog{}
			if !noLog {
				if store, err = a.openLog(ctx); err != nil {
					return err
				}
				defer store.Close()
			}

			d := dashboard.New(client, store, options, a.config.Dashboard.HistoryLimit, a.logger)

			features := domain.SampleFeatures()
			if useDefaults {
				features = d.Defaults()
			}
			for _, column := range domain.FeatureColumns {
				if !cmd.Flags().Changed(column) {
					continue
				}
				if err := features.Set(column, *values[column]); err != nil {
					return fmt.Errorf("--%s: %w", column, err)
				}
			}

			payload, _ := json.MarshalIndent(features, "", "  ")
			fmt.Fprintf(out, "Sending request to %s...\n", client.PredictURL())
			fmt.Fprintf(out, "Payload: %s\n", payload)

			record, err := d.Submit(ctx, features)
			if record != nil {
				printResult(out, record)
			}
			if err != nil {
				if errors.Is(err, dashboard.ErrUnreachable) {
					return fmt.Errorf("could not connect to API at %s. Is it running? (%w)", client.PredictURL(), err)
				}
				return err
			}

			if !noLog {
				color.New(color.Faint).Fprintf(out, "Prediction logged (#%d)\n", record.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", "", "prediction service (default: dashboard.api_url or API_URL)")
	cmd.Flags().BoolVar(&useDefaults, "defaults", false, "start from the options file defaults instead of the sample patient")
	cmd.Flags().BoolVar(&noLog, "no-log", false, "do not append the result to the prediction log")
	for _, column := range domain.FeatureColumns {
		values[column] = new(float64)
		kind := "integer"
		if domain.IsContinuous(column) {
			kind = "decimal"
		}
		cmd.Flags().Float64Var(values[column], column, 0, fmt.Sprintf("%s (%s)", column, kind))
	}
	return cmd
}

func printResult(out io.Writer, record *predictionlog.Record) {
	style := color.New(color.FgGreen, color.Bold)
	if record.Prediction == 1 {
		style = color.New(color.FgRed, color.Bold)
	}
	style.Fprintf(out, "Prediction: %s\n", record.Result)
	fmt.Fprintf(out, "Probability of Disease: %.2f%%\n", record.Probability*100)
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"ls"},
		Short:   "Show recent predictions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openLog(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			d := dashboard.New(nil, store, nil, a.config.Dashboard.HistoryLimit, a.logger)
			records, err := d.History(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to read history: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No predictions yet.")
				return nil
			}

			faint := color.New(color.Faint)
			for _, r := range records {
				fmt.Fprintf(out, "%s  %-26s %6.2f%%\n",
					faint.Sprint(r.Timestamp.Local().Format("2006-01-02 15:04:05")),
					r.Result,
					r.Probability*100)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of records (default: dashboard.history_limit)")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the prediction log as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openLog(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if output == "" {
				return store.ExportJSON(ctx, cmd.OutOrStdout())
			}

			if err := writeFile(output, func(w io.Writer) error { return store.ExportJSON(ctx, w) }); err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Exported to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func newHealthCmd(a *app) *cobra.Command {
	var apiURL string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the prediction API is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client(apiURL)
			if err != nil {
				return err
			}

			status, err := client.Health(cmd.Context())
			if err != nil {
				if errors.Is(err, dashboard.ErrUnreachable) {
					return fmt.Errorf("could not connect to %s. Is the API server running? (%w)", client.BaseURL(), err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			color.New(color.FgGreen).Fprintf(out, "✓ %s is %s\n", client.BaseURL(), status.Status)
			if status.ModelLoaded {
				fmt.Fprintln(out, "  model loaded")
			} else {
				color.New(color.FgYellow).Fprintln(out, "  model not loaded: predictions will fail with 503")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", "", "prediction service (default: dashboard.api_url or API_URL)")
	return cmd
}

// discardLog is the log used with --no-log
type discardLog struct{}

func (discardLog) Append(context.Context, *predictionlog.Record) (int64, error) { return 0, nil }

func (discardLog) Recent(context.Context, int) ([]*predictionlog.Record, error) {
	return []*predictionlog.Record{}, nil
}

func (discardLog) Count(context.Context) (int64, error) { return 0, nil }

func (discardLog) ExportJSON(context.Context, io.Writer) error { return nil }

func (discardLog) Close() error { return nil }
