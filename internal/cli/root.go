package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"meterbill/internal/billing/application"
	"meterbill/internal/billing/interfaces"
	"meterbill/internal/config"
	"meterbill/internal/history/backend"
	history "meterbill/internal/history/domain"
	"meterbill/internal/observability/metrics"
)

// app holds the state shared by every command of one invocation.
type app struct {
	configPath string
	verbose    bool

	cfg    config.Config
	logger *log.Logger
	store  *backend.Result
	svc    *application.Service
	clock  history.Clock
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	root, a := newRootCmd()
	err := a.finish(root.ExecuteContext(context.Background()))
	if err != nil {
		if !errors.Is(err, application.ErrValidationFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{clock: history.SystemClock{}}
	root := &cobra.Command{
		Use:           "meterbill",
		Short:         "Validate sub-meter readings and split an electricity bill",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (default $METERBILL_CONFIG)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		newCalculateCmd(a),
		newHistoryCmd(a),
		newReportCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newSettingsCmd(a),
	)
	return root, a
}

func (a *app) open(cmd *cobra.Command) error {
	var out io.Writer = io.Discard
	if a.verbose {
		out = cmd.ErrOrStderr()
	}
	a.logger = log.New(out, "", log.LstdFlags)

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	metrics.Init(a.logger)

	store, err := backend.Open(cmd.Context(), cfg.Backend(), a.logger)
	if err != nil {
		return err
	}
	a.store = store

	svc, err := application.NewService(store.Store, interfaces.NewEventJournal(cfg.EventsFile, a.logger), a.clock, cfg.Defaults(), a.logger)
	if err != nil {
		return err
	}
	a.svc = svc
	return nil
}

// finish writes the metrics textfile and closes the store. It runs after
// failed commands too, so rejected validations are counted.
func (a *app) finish(runErr error) error {
	defer a.close()
	if err := metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		return errors.Join(runErr, fmt.Errorf("write metrics: %w", err))
	}
	return runErr
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Store.Close(); err != nil && a.logger != nil {
		a.logger.Printf("history store close failed: err=%v", err)
	}
	a.store = nil
}

func (a *app) reportOptions(cmd *cobra.Command) (interfaces.ReportOptions, error) {
	name, address, err := a.svc.Property(cmd.Context())
	if err != nil {
		return interfaces.ReportOptions{}, err
	}
	return interfaces.ReportOptions{
		PropertyName:    name,
		PropertyAddress: address,
		GeneratedAt:     a.clock.Now(),
	}, nil
}
