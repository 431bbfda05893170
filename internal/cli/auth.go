package cli

import (
	"errors"
	"fmt"
	"net/mail"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"trading-terminal-go/internal/guard"
	"trading-terminal-go/internal/views"
)

func (a *App) newLoginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the backend",
		Long: `Sign in with email and password. Missing flags are prompted for.
Example: trading-terminal login --email you@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.router.Replace(guard.RouteAuth)
			if email == "" || password == "" {
				err := huh.NewForm(
					huh.NewGroup(
						huh.NewInput().
							Title("Email").
							Value(&email).
							Validate(validEmail),
						huh.NewInput().
							Title("Password").
							EchoMode(huh.EchoModePassword).
							Value(&password),
					),
				).Run()
				if err != nil {
					return err
				}
			}

			if err := a.session.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s. Now at %s\n", views.Identity(nil), a.router.Current())
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	return cmd
}

func (a *App) newSignupCmd() *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.router.Replace(guard.RouteAuth)
			if username == "" || email == "" || password == "" {
				err := huh.NewForm(
					huh.NewGroup(
						huh.NewInput().
							Title("Username").
							Description("At least 3 characters").
							Value(&username),
						huh.NewInput().
							Title("Email").
							Value(&email).
							Validate(validEmail),
						huh.NewInput().
							Title("Password").
							Description("At least 6 characters").
							EchoMode(huh.EchoModePassword).
							Value(&password),
					),
				).Run()
				if err != nil {
					return err
				}
			}

			if err := a.session.Signup(cmd.Context(), username, email, password); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Account created for %s. Now at %s\n", username, a.router.Current())
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	return cmd
}

func (a *App) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.session.Logout(cmd.Context())
			fmt.Fprintln(a.out, "Signed out.")
			return nil
		},
	}
}

func (a *App) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.session.Start(cmd.Context())
			if !s.Authenticated {
				fmt.Fprintln(a.out, "Not signed in.")
				return nil
			}
			fmt.Fprintln(a.out, views.Identity(s.Identity))
			return nil
		},
	}
}

func validEmail(s string) error {
	if _, err := mail.ParseAddress(s); err != nil {
		return errors.New("enter a valid email")
	}
	return nil
}
