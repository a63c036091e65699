package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/wolfeidau/polifeed/internal/client"
)

// GetCmd performs a GET against any backend route with the current session.
type GetCmd struct {
	Endpoint string   `arg:"" help:"Route relative to the API prefix, e.g. /statements/"`
	Params   []string `arg:"" optional:"" help:"Query parameters as key=value"`
}

func (c *GetCmd) Run(ctx context.Context, globals *Globals) error {
	params, err := parseParams(c.Params)
	if err != nil {
		return err
	}

	return globals.withSession(ctx, func(a *app) error {
		var body json.RawMessage
		if err := a.manager.Client().Get(ctx, a.cfg.Endpoints.Resolve(c.Endpoint), params, &body); err != nil {
			return fmt.Errorf("GET %s failed: %w", c.Endpoint, err)
		}
		return printJSON(globals, body)
	})
}

// BodyArgs are the arguments of the commands that send an optional JSON body.
type BodyArgs struct {
	Endpoint string `arg:"" help:"Route relative to the API prefix, e.g. /statements/s1/like"`
	Data     string `arg:"" optional:"" help:"JSON request body"`
}

// PostCmd performs a POST against any backend route with the current session.
type PostCmd struct {
	BodyArgs
}

func (c *PostCmd) Run(ctx context.Context, globals *Globals) error {
	return c.send(ctx, globals, http.MethodPost)
}

// PutCmd performs a PUT against any backend route with the current session.
type PutCmd struct {
	BodyArgs
}

func (c *PutCmd) Run(ctx context.Context, globals *Globals) error {
	return c.send(ctx, globals, http.MethodPut)
}

// PatchCmd performs a PATCH against any backend route with the current session.
type PatchCmd struct {
	BodyArgs
}

func (c *PatchCmd) Run(ctx context.Context, globals *Globals) error {
	return c.send(ctx, globals, http.MethodPatch)
}

// DeleteCmd performs a DELETE against any backend route with the current session.
type DeleteCmd struct {
	BodyArgs
}

func (c *DeleteCmd) Run(ctx context.Context, globals *Globals) error {
	return c.send(ctx, globals, http.MethodDelete)
}

func (c *BodyArgs) send(ctx context.Context, globals *Globals, method string) error {
	data, err := parseBody(c.Data)
	if err != nil {
		return err
	}

	return globals.withSession(ctx, func(a *app) error {
		api := a.manager.Client()
		endpoint := a.cfg.Endpoints.Resolve(c.Endpoint)

		var body json.RawMessage
		switch method {
		case http.MethodPost:
			err = api.Post(ctx, endpoint, data, &body)
		case http.MethodPut:
			err = api.Put(ctx, endpoint, data, &body)
		case http.MethodPatch:
			err = api.Patch(ctx, endpoint, data, &body)
		case http.MethodDelete:
			err = api.Delete(ctx, endpoint, data, &body)
		default:
			return fmt.Errorf("unsupported method %s", method)
		}
		if err != nil {
			return fmt.Errorf("%s %s failed: %w", method, c.Endpoint, err)
		}
		return printJSON(globals, body)
	})
}

// parseBody returns nil for an empty body so no payload is sent.
func parseBody(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("invalid JSON body %q", raw)
	}
	return json.RawMessage(raw), nil
}

// HealthCmd checks the backend is reachable and reports its version.
type HealthCmd struct{}

func (c *HealthCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	api := a.manager.Client()

	var health json.RawMessage
	if err := api.Get(ctx, a.cfg.Endpoints.Collections.Health, nil, &health); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	var version json.RawMessage
	if err := api.Get(ctx, a.cfg.Endpoints.Collections.Version, nil, &version); err != nil {
		// older backends do not expose /version
		if !client.IsStatus(err, http.StatusNotFound) {
			return fmt.Errorf("version check failed: %w", err)
		}
	}

	w := globals.out()
	fmt.Fprintf(w, "Server:  %s\n", api.BaseURL())
	fmt.Fprintf(w, "Health:  %s\n", compact(health))
	if len(version) > 0 {
		fmt.Fprintf(w, "Version: %s\n", compact(version))
	}
	return nil
}

func parseParams(kv []string) (client.Params, error) {
	var params client.Params
	for _, p := range kv {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", p)
		}
		params = params.Add(key, value)
	}
	return params, nil
}

func printJSON(globals *Globals, body json.RawMessage) error {
	if len(body) == 0 {
		return nil
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	buf.WriteByte('\n')

	_, err := globals.out().Write(buf.Bytes())
	return err
}

func compact(body json.RawMessage) string {
	if len(body) == 0 {
		return "ok"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return string(body)
	}
	return buf.String()
}
