package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/marketbell/internal/credential"
	"github.com/nhle/marketbell/internal/session"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an API token in the system keyring",
	Long: `Store the bearer token used to reach the marketplace API. The token
is read from stdin when it is not a terminal, otherwise it is prompted for.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored API token",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	token, err := readToken()
	if err != nil {
		return err
	}

	sess := session.New(credential.Keyring{})
	if err := sess.Login(token); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Token saved.")
	return nil
}

func readToken() (string, error) {
	info, err := os.Stdin.Stat()
	if err == nil && info.Mode()&os.ModeCharDevice == 0 {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading token from stdin: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	var token string
	err = huh.NewInput().
		Title("API token").
		EchoMode(huh.EchoModePassword).
		Value(&token).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return "", errors.New("login cancelled")
	}
	if err != nil {
		return "", fmt.Errorf("prompting for token: %w", err)
	}
	return strings.TrimSpace(token), nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	sess := session.New(credential.Keyring{})
	if err := sess.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
	return nil
}
