package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/heart-risk-service/internal/config"
	"github.com/heart-risk-service/internal/dashboard"
	"github.com/heart-risk-service/internal/domain"
	"github.com/heart-risk-service/internal/logging"
	"github.com/heart-risk-service/internal/predictionlog"
)

// app carries what every subcommand needs once configuration is loaded
type app struct {
	configPath string
	logLevel   string

	config *domain.Config
	logger *logrus.Logger
}

func (a *app) load() error {
	manager, err := config.NewManagerWithFile(a.configPath)
	if err != nil {
		return err
	}
	if err := manager.Validate(); err != nil {
		return err
	}

	cfg := *manager.GetConfig()
	cfg.Logging.Level = a.logLevel
	// stdout belongs to command output
	cfg.Logging.Output = "stderr"
	cfg.Logging.Format = "text"

	a.config = &cfg
	a.logger = logging.New(cfg.Logging)
	return nil
}

func (a *app) openLog(ctx context.Context) (predictionlog.Store, error) {
	return predictionlog.Open(ctx, a.config.Store, a.logger)
}

func (a *app) client(apiURL string) (*dashboard.Client, error) {
	cfg := a.config.Dashboard
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	return dashboard.NewClient(cfg, a.logger)
}

// newRootCmd builds the command tree. A fresh tree per call keeps flag state
// out of package variables.
func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "heartctl",
		Short: "Heart disease dataset and prediction toolkit",
		Long: `heartctl manages the normalized heart disease store and talks to the
prediction API.

STORE:

  $ heartctl build                      # normalize data/heart.csv into data/heart.db
  $ heartctl reconstruct -o flat.csv    # rebuild the flat table from the store
  $ heartctl verify --source data/heart.csv

PREDICTIONS:

  $ heartctl health                     # is the API up and the model loaded?
  $ heartctl predict                    # predict the sample patient and log it
  $ heartctl predict --age 54 --chol 260
  $ heartctl history                    # five most recent predictions
  $ heartctl export -o predictions.json

CONFIGURATION:

  Settings come from config.yaml (., ./config, /etc/heart-risk), then HEART_*
  environment variables. API_URL selects the prediction service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			if err := a.load(); err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: search ., ./config, /etc/heart-risk)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(
		newBuildCmd(a),
		newReconstructCmd(a),
		newVerifyCmd(a),
		newPredictCmd(a),
		newHistoryCmd(a),
		newExportCmd(a),
		newHealthCmd(a),
	)
	return root
}
