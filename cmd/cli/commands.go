package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/and161185/profilekeeper/internal/errs"
	"github.com/and161185/profilekeeper/internal/model"
)

func (a *app) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.timeout)
}

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func versionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			a.printf("pk %s (%s)\n", version, buildDate)
		},
	}
}

// configCmd persists the effective connection flags to config.yaml.
func configCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save-config",
		Short: "Store the current --addr/--cacert/--insecure/--plaintext in config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			p := configPath(a.dir)
			if err := saveConfig(p, a.cfg); err != nil {
				return err
			}
			a.printf("saved %s\n", p)
			return nil
		},
	}
}

func registerCmd(a *app) *cobra.Command {
	var email, name, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and its profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			c, err := a.connect()
			if err != nil {
				return err
			}
			defer c.Close()

			p, err := c.mgr.CreateAccount(ctx, email, password, name)
			if errors.Is(err, errs.ErrAccountCreationPartial) {
				a.warnf("account created, profile not saved (%v); retrying once", err)
				p, err = c.mgr.RetryProfileCreation(ctx)
			}
			if errors.Is(err, errs.ErrAccountCreationPartial) {
				return fmt.Errorf("%w; signed in, finish with `pk create-profile`", err)
			}
			if err != nil {
				return err
			}
			a.printf("registered %s (%s)\n", p.Email, p.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&name, "name", "n", "", "full name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func loginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			c, err := a.connect()
			if err != nil {
				return err
			}
			defer c.Close()

			p, err := c.mgr.SignIn(ctx, email, password)
			if err != nil && !c.mgr.Session().IsSignedIn() {
				return err
			}
			if err != nil {
				a.warnf("signed in, but the profile is unavailable: %v%s", err, profileHint(err))
				a.printf("ok\n")
				return nil
			}
			a.printf("signed in as %s\n", p.FullName)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			c, err := a.connect()
			if err != nil {
				return err
			}
			defer c.Close()
			c.mgr.SignOut(ctx)
			a.printf("ok\n")
			return nil
		},
	}
}

// profileView is the whoami output.
type profileView struct {
	ID         string `json:"id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Initials   string `json:"initials"`
	PictureURL string `json:"picture_url,omitempty"`
}

func viewOf(p *model.Profile) profileView {
	return profileView{ID: p.ID, FullName: p.FullName, Email: p.Email, Initials: p.Initials(), PictureURL: p.Picture()}
}

func whoamiCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			c, err := a.restored(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			p := c.mgr.Profile()
			if p == nil {
				if err := c.mgr.LastProfileError(); err != nil {
					return fmt.Errorf("load profile: %w%s", err, profileHint(err))
				}
				return fmt.Errorf("signed in as %s, no profile", c.mgr.Session().SubjectID)
			}
			v := viewOf(p)
			if asJSON {
				a.printJSON(v)
				return nil
			}
			a.printf("[%s] %s <%s>\n", v.Initials, v.FullName, v.Email)
			a.printf("id:      %s\n", v.ID)
			if v.PictureURL != "" {
				a.printf("picture: %s\n", v.PictureURL)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// profileHint points at create-profile when the account has no profile yet.
func profileHint(err error) string {
	if errors.Is(err, errs.ErrNotFound) {
		return "; run `pk create-profile`"
	}
	return ""
}

// createProfileCmd finishes a registration whose profile write failed.
func createProfileCmd(a *app) *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "create-profile",
		Short: "Create the profile of the signed-in account if it is missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			c, err := a.restored(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			p, err := c.mgr.CompleteProfile(ctx, name, email)
			if err != nil {
				return err
			}
			a.printf("profile %s (%s)\n", p.FullName, p.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&name, "name", "n", "", "full name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func setPictureCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-picture FILE",
		Short: "Upload a profile picture (FILE or - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := readAll(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			c, err := a.restored(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			task, err := c.mgr.ChangePicture(ctx, img)
			if errors.Is(err, errs.ErrLinkFailed) {
				a.warnf("picture stored, relinking: %v", err)
				err = c.mgr.RelinkPicture(ctx, task)
			}
			if err != nil {
				return err
			}
			a.printf("%s\n", task.URL)
			return nil
		},
	}
}

func deleteAccountCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-account",
		Short: "Delete the signed-in account and its profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing without --yes")
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			c, err := a.restored(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			err = c.mgr.DeleteAccount(ctx)
			if errors.Is(err, errs.ErrAccountOrphaned) {
				a.warnf("signed out locally, but the server did not confirm deletion: %v", err)
				return nil
			}
			if err != nil {
				return err
			}
			a.printf("account deleted\n")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func forgotPasswordCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Mail a password reset token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			c, err := a.connect()
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.mgr.SendPasswordReset(ctx, email); err != nil {
				return err
			}
			a.printf("if %s has an account, a reset token is on its way\n", email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func resetPasswordCmd(a *app) *cobra.Command {
	var token, password string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with a mailed reset token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			c, err := a.connect()
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.idp.ResetPassword(ctx, token, password); err != nil {
				return err
			}
			a.printf("password changed, run `pk login`\n")
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "reset token from the email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "new password")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
