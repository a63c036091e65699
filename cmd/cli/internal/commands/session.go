package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/wolfeidau/polifeed/internal/models"
	"github.com/wolfeidau/polifeed/internal/storage"
)

// SessionCmd inspects and manages the locally persisted session.
type SessionCmd struct {
	Show  SessionShowCmd  `cmd:"" default:"1" help:"Show the stored session"`
	Clear SessionClearCmd `cmd:"" help:"Remove stored tokens without contacting the server"`
	Token SessionTokenCmd `cmd:"" help:"Print the stored access token"`
}

// SessionShowCmd prints what is stored locally. It never contacts the backend.
type SessionShowCmd struct{}

func (c *SessionShowCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	access, err := a.store.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to read access token: %w", err)
	}
	refresh, err := a.store.RefreshToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to read refresh token: %w", err)
	}

	w := tabwriter.NewWriter(globals.out(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Storage:\t%s\n", describeBackend(a.backend))
	fmt.Fprintf(w, "Server:\t%s\n", a.cfg.API.BaseURL)

	if access == "" {
		fmt.Fprintln(w, "Status:\tnot logged in")
		return nil
	}

	fmt.Fprintf(w, "Access token:\t%s\n", storage.Fingerprint(access))
	fmt.Fprintf(w, "Expires:\t%s\n", describeExpiry(access, time.Now()))
	if refresh != "" {
		fmt.Fprintf(w, "Refresh token:\t%s\n", storage.Fingerprint(refresh))
	}

	user, err := a.store.User(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cached user: %w", err)
	}
	if user != nil {
		fmt.Fprintf(w, "User:\t%s <%s>\n", user.Username, user.Email)
	}

	return nil
}

// SessionClearCmd wipes the local session. Use logout to also end it server side.
type SessionClearCmd struct{}

func (c *SessionClearCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	fmt.Fprintln(globals.out(), "Local session cleared")
	return nil
}

// SessionTokenCmd prints the raw access token for use with other tools.
type SessionTokenCmd struct{}

func (c *SessionTokenCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	token, err := a.store.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to read access token: %w", err)
	}
	if token == "" {
		return ErrNotLoggedIn
	}

	fmt.Fprintln(globals.out(), token)
	return nil
}

func describeBackend(b storage.Backend) string {
	switch v := b.(type) {
	case *storage.FileBackend:
		return "file " + v.Path()
	case *storage.RedisBackend:
		return "redis"
	case *storage.MemoryBackend:
		return "memory"
	default:
		return fmt.Sprintf("%T", b)
	}
}

func describeExpiry(token string, now time.Time) string {
	exp, err := models.TokenExpiry(token)
	switch {
	case errors.Is(err, models.ErrNoExpiry):
		return "never"
	case err != nil:
		return "unknown (not a JWT)"
	case exp.Before(now):
		return fmt.Sprintf("%s (expired)", exp.Format(time.RFC3339))
	default:
		return fmt.Sprintf("%s (in %s)", exp.Format(time.RFC3339), exp.Sub(now).Round(time.Second))
	}
}
