package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/wolfeidau/polifeed/internal/session"
	"golang.org/x/term"
)

// ErrNotLoggedIn is returned by commands that need an authenticated session.
var ErrNotLoggedIn = errors.New("not logged in")

type LoginCmd struct {
	Username string `arg:"" help:"Username or email"`
	Password string `help:"Password (prompted when omitted)" env:"POLIFEED_PASSWORD"`
}

func (c *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	password, err := resolvePassword(c.Password, "Password: ")
	if err != nil {
		return err
	}

	a, err := globals.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.manager.Login(ctx, c.Username, password)
	if !res.Success {
		return fmt.Errorf("login failed: %s", res.Error)
	}

	fmt.Fprintf(globals.out(), "Logged in as %s (%s)\n", res.User.Username, res.User.Email)
	return nil
}

type RegisterCmd struct {
	Username string `arg:"" help:"Username"`
	Email    string `arg:"" help:"Email address"`
	Password string `help:"Password (prompted when omitted)" env:"POLIFEED_PASSWORD"`
}

func (c *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	password, err := resolvePassword(c.Password, "Choose a password: ")
	if err != nil {
		return err
	}

	a, err := globals.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.manager.Register(ctx, c.Username, c.Email, password)
	if !res.Success {
		return fmt.Errorf("registration failed: %s", res.Error)
	}

	fmt.Fprintf(globals.out(), "Registered and logged in as %s\n", res.User.Username)
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// restore the token first so the backend sees who is logging out
	a.manager.Initialize(ctx)
	a.manager.Logout(ctx)

	fmt.Fprintln(globals.out(), "Logged out")
	return nil
}

type RefreshCmd struct{}

func (c *RefreshCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.manager.Refresh(ctx) {
		return fmt.Errorf("token refresh failed: %w", ErrNotLoggedIn)
	}

	fmt.Fprintln(globals.out(), "Token refreshed")
	return nil
}

type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withSession(ctx, func(a *app) error {
		state := a.manager.State()
		if state.Phase() != session.PhaseAuthenticated {
			return ErrNotLoggedIn
		}

		u := state.User
		w := globals.out()
		fmt.Fprintf(w, "Username:       %s\n", u.Username)
		fmt.Fprintf(w, "Email:          %s\n", u.Email)
		fmt.Fprintf(w, "ID:             %s\n", u.ID)
		fmt.Fprintf(w, "Role:           %s\n", u.Role)
		fmt.Fprintf(w, "Status:         %s\n", u.Status)
		fmt.Fprintf(w, "Email verified: %v\n", u.EmailVerified)
		if u.LastLoginAt != nil {
			fmt.Fprintf(w, "Last login:     %s\n", u.LastLoginAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	})
}

func resolvePassword(password, prompt string) (string, error) {
	if password != "" {
		return password, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password is required (--password or POLIFEED_PASSWORD)")
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	return strings.TrimRight(string(b), "\r\n"), nil
}
