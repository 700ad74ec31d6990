package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jrsteele09/dashboard-session/internal/errors"
	"github.com/spf13/cobra"
)

var (
	loginPhone    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store a new session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		password := loginPassword
		if password == "" {
			password = os.Getenv("DASHCTL_PASSWORD")
		}
		if password == "" {
			fmt.Fprint(os.Stderr, "Password: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}

		creds, err := a.service.Login(cmd.Context(), loginPhone, password)
		if err != nil {
			return err
		}
		name := loginPhone
		if creds.Profile != nil && creds.Profile.Names != "" {
			name = creds.Profile.Names
		}
		fmt.Printf("Logged in as %s, access token valid until %s\n", name, creds.AccessExpiresAt.Local().Format(time.RFC1123))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.service.Logout(cmd.Context())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session without contacting the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		creds, err := a.store.Load(cmd.Context())
		if err != nil {
			return err
		}
		if creds == nil {
			fmt.Println("Session:        none")
			return nil
		}

		fmt.Println("Session:        active")
		fmt.Printf("Logged in:      %s\n", creds.IssuedAt.Local().Format(time.RFC1123))
		if creds.AccessExpiresAt.IsZero() {
			fmt.Println("Access expires: unknown")
		} else {
			fmt.Printf("Access expires: %s (in %s)\n", creds.AccessExpiresAt.Local().Format(time.RFC1123),
				a.evaluator.ExpiresIn(*creds).Round(time.Second))
		}
		fmt.Printf("Needs renewal:  %t (renewal margin %s)\n", !a.evaluator.IsValid(*creds), a.evaluator.Margin())
		if p := creds.Profile; p != nil {
			fmt.Printf("User:           %s (%s)\n", p.Names, p.UserClass)
		}
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Renew the access token now",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		current, err := a.store.Load(cmd.Context())
		if err != nil {
			return err
		}
		if current == nil {
			return errors.ErrNoSession
		}
		creds, err := a.coord.Renew(cmd.Context(), current.AccessToken)
		if err != nil {
			return err
		}
		fmt.Printf("Access token renewed, valid until %s\n", creds.AccessExpiresAt.Local().Format(time.RFC1123))
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Ask the server whether the current access token is accepted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.service.Verify(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Access token accepted")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginPhone, "phone", "p", "", "phone number")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "password (default: $DASHCTL_PASSWORD or prompt)")
	_ = loginCmd.MarkFlagRequired("phone")

	rootCmd.AddCommand(loginCmd, logoutCmd, statusCmd, refreshCmd, verifyCmd)
}
