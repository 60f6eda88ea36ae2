package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tierwatch/internal/config"
)

// commandContext resolves configuration lazily and provides the daemon API
// client shared by all subcommands.
type commandContext struct {
	apiFlag    *string
	configFlag *string

	cfg     *config.Config
	cfgPath string
	http    *http.Client
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, resolved, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.cfgPath = resolved
	return cfg, nil
}

// apiBase resolves the daemon API root, preferring the --api flag over the
// configured bind address.
func (c *commandContext) apiBase() (string, error) {
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		return "http://" + strings.TrimSpace(*c.apiFlag), nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return "", fmt.Errorf("no api address configured; pass --api or set api_bind")
	}
	return "http://" + bind, nil
}

// getJSON fetches path from the daemon API and decodes the response into
// out. Query parameters are optional.
func (c *commandContext) getJSON(path string, query url.Values, out any) error {
	base, err := c.apiBase()
	if err != nil {
		return err
	}
	target := base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	resp, err := c.http.Get(target)
	if err != nil {
		return fmt.Errorf("is tierwatchd running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("daemon returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
