package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"blackbox/internal/config"
	"blackbox/internal/ipc"
)

type commandContext struct {
	socketFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	return &commandContext{
		socketFlag: socketFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) socketPath() string {
	if c.socketFlag != nil {
		if socket := strings.TrimSpace(*c.socketFlag); socket != "" {
			return socket
		}
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.SocketPath()
	}
	return defaultSocketPath()
}

// withClient runs fn against the daemon, failing with a start hint when no
// daemon is listening.
func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	client, err := c.dialDaemon()
	if err != nil {
		return err
	}
	if client == nil {
		return fmt.Errorf("daemon is not running on %s; start it with `blackbox start`", c.socketPath())
	}
	defer client.Close()
	return fn(client)
}

// dialDaemon connects to the daemon. A nil client with a nil error means no
// daemon is listening, so callers can fall back to reading local state.
func (c *commandContext) dialDaemon() (*ipc.Client, error) {
	client, err := ipc.Dial(c.socketPath())
	switch {
	case err == nil:
		return client, nil
	case errors.Is(err, ipc.ErrDaemonUnavailable):
		return nil, nil
	default:
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
}

func defaultSocketPath() string {
	cfg, _, _, err := config.Load("")
	if err == nil {
		return cfg.SocketPath()
	}

	stateDir, err2 := config.ExpandPath("~/.local/share/blackbox/state")
	if err2 != nil {
		return filepath.Join(os.TempDir(), "blackbox.sock")
	}
	return filepath.Join(stateDir, "blackbox.sock")
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
