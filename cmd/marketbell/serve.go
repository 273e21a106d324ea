package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nhle/marketbell/internal/logging"
	"github.com/nhle/marketbell/internal/model"
	"github.com/nhle/marketbell/internal/server"
	"github.com/nhle/marketbell/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local development notification API",
	Long: `Serve the notification endpoints backed by a SQLite database, for
developing against marketbell without the real marketplace.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Print a bearer token for the development API",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

var seedCmd = &cobra.Command{
	Use:   "seed <user-id>",
	Short: "Insert sample notifications into the development database",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

var listenAddr string

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "override listen address")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(seedCmd)
}

func stderrLogger(cfg *model.AppConfig) *logrus.Logger {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	return logging.NewWithWriter(os.Stderr, level)
}

func newTokens(cfg *model.AppConfig) (*server.Tokens, error) {
	return server.NewTokens(cfg.Server.JWTSecret, time.Duration(cfg.Server.TokenTTLHours)*time.Hour)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := stderrLogger(cfg)

	tokens, err := newTokens(cfg)
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	addr := cfg.Server.Addr
	if listenAddr != "" {
		addr = listenAddr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.WithField("db", cfg.Server.DBPath).Info("starting development API")
	return server.New(st, tokens, log).Run(ctx, addr)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tokens, err := newTokens(cfg)
	if err != nil {
		return err
	}

	tok, err := tokens.Generate(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}

// samples cover every category and the action routes.
func samples() []model.Notification {
	ada := &model.Sender{ID: "u-ada", FirstName: "Ada", LastName: "Lovelace"}
	grace := &model.Sender{ID: "u-grace", FirstName: "Grace", LastName: "Hopper"}
	conv, _ := json.Marshal(map[string]string{"conversationId": "c42"})

	return []model.Notification{
		{
			Type:    model.TypeSystem,
			Title:   "Welcome to the marketplace",
			Message: "Complete your profile to get discovered.",
			Data:    json.RawMessage(`{"link":"/settings/profile"}`),
		},
		{
			Type:    model.TypeConnectionRequest,
			Title:   "New connection request",
			Message: "wants to connect with you",
			Sender:  grace,
		},
		{
			Type:     model.TypeAchievement,
			Title:    "Achievement unlocked",
			Message:  "You closed your first deal.",
			Priority: model.PriorityHigh,
		},
		{
			Type:     model.TypeNewMessage,
			Category: model.CategoryBusiness,
			Title:    "New message",
			Message:  "sent you a message",
			Sender:   ada,
			Data:     conv,
		},
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	for _, n := range samples() {
		if _, err := st.CreateNotification(ctx, args[0], n); err != nil {
			return fmt.Errorf("seeding notifications: %w", err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d notifications for %s.\n", len(samples()), args[0])
	return nil
}
