package commands

import (
	"context"
	"fmt"
)

// PasswordCmd drives the password reset flow.
type PasswordCmd struct {
	Reset   PasswordResetCmd   `cmd:"" help:"Request a password reset email"`
	Confirm PasswordConfirmCmd `cmd:"" help:"Set a new password using a reset token"`
}

type PasswordResetCmd struct {
	Email string `arg:"" help:"Account email address"`
}

func (c *PasswordResetCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.manager.RequestPasswordReset(ctx, c.Email)
	if !res.Success {
		return fmt.Errorf("password reset request failed: %s", res.Error)
	}

	fmt.Fprintf(globals.out(), "If %s has an account, a reset link is on its way.\n", c.Email)
	return nil
}

type PasswordConfirmCmd struct {
	Token       string `arg:"" help:"Reset token from the email"`
	NewPassword string `help:"New password (prompted when omitted)" env:"POLIFEED_NEW_PASSWORD"`
}

func (c *PasswordConfirmCmd) Run(ctx context.Context, globals *Globals) error {
	password, err := resolvePassword(c.NewPassword, "New password: ")
	if err != nil {
		return err
	}

	a, err := globals.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.manager.ConfirmPasswordReset(ctx, c.Token, password)
	if !res.Success {
		return fmt.Errorf("password reset failed: %s", res.Error)
	}

	fmt.Fprintln(globals.out(), "Password updated. Log in with the new password.")
	return nil
}
