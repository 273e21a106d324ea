// Package main is the marketbell terminal client and its local
// development backend.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nhle/marketbell/internal/app"
	"github.com/nhle/marketbell/internal/credential"
	"github.com/nhle/marketbell/internal/logging"
	"github.com/nhle/marketbell/internal/model"
	"github.com/nhle/marketbell/internal/notify"
	"github.com/nhle/marketbell/internal/session"
	"github.com/nhle/marketbell/internal/source/rest"
)

var rootCmd = &cobra.Command{
	Use:   "marketbell",
	Short: "Marketplace notifications in your terminal",
	Long: `marketbell watches a marketplace account for new notifications,
shows them as toasts, and keeps an unread badge in sync with the server.
Run without a subcommand to start the terminal UI.`,
	SilenceUsage: true,
	RunE:         runUI,
}

var (
	configPath string
	debug      bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", model.DefaultConfigPath(), "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the debug flag.
func loadConfig() (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Log.Level = logrus.DebugLevel.String()
	}
	return cfg, nil
}

func runUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	sess := session.New(credential.Keyring{})
	if _, err := sess.Load(); err != nil {
		log.WithError(err).Warn("restoring session")
	}

	notifier := notify.Nop()
	if cfg.Toast.Desktop {
		if notifier, err = notify.New(); err != nil {
			log.WithError(err).Warn("desktop notifications unavailable")
			notifier = notify.Nop()
		}
	}
	defer notifier.Close()

	src := rest.NewAdapter(cfg.API.BaseURL, sess, cfg.APITimeout())

	m := app.New(app.Deps{
		Config:   cfg,
		Source:   src,
		Session:  sess,
		Notifier: notifier,
		Log:      log,
		SaveConfig: func(c *model.AppConfig) error {
			return model.SaveConfig(configPath, c)
		},
	})

	log.WithField("api", cfg.API.BaseURL).Info("starting")
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}
