package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"stagehand/internal/config"
	"stagehand/internal/ipc"
)

// skipConfigAnnotation marks commands that run without a loadable
// configuration, such as `config init`.
const skipConfigAnnotation = "stagehand/skip-config"

func skipConfig() map[string]string {
	return map[string]string{skipConfigAnnotation: "true"}
}

// commandContext carries the persistent flags and the lazily loaded
// configuration shared by every subcommand.
type commandContext struct {
	socketFlag *string
	configFlag *string
	loadConfig func() (*config.Config, error)
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	c := &commandContext{socketFlag: socketFlag, configFlag: configFlag}
	c.loadConfig = sync.OnceValues(func() (*config.Config, error) {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			return nil, err
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, err
		}
		return cfg, nil
	})
	return c
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

func (c *commandContext) configPath() string { return flagValue(c.configFlag) }

func (c *commandContext) ensureConfig() (*config.Config, error) { return c.loadConfig() }

// socketPath resolves --socket, then the loaded configuration, then the
// socket under the default data directory.
func (c *commandContext) socketPath() string {
	if socket := flagValue(c.socketFlag); socket != "" {
		return socket
	}
	if cfg, err := c.loadConfig(); err == nil {
		return cfg.SocketPath()
	}
	root, err := config.ExpandPath(config.Default().Paths.RootDir)
	if err != nil {
		return filepath.Join(os.TempDir(), "stagehand.sock")
	}
	return filepath.Join(root, "db", "stagehand.sock")
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	client, err := c.dialClient()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func (c *commandContext) dialClient() (*ipc.Client, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil, wrapDialError(err, socket)
	}
	return client, nil
}

var dialHints = []struct {
	cause error
	hint  string
}{
	{fs.ErrNotExist, "not found; start it with `stagehand daemon`"},
	{syscall.ECONNREFUSED, "refused the connection; verify the daemon is running"},
	{fs.ErrPermission, "is not accessible; check the socket owner and mode"},
}

func wrapDialError(err error, socket string) error {
	for _, h := range dialHints {
		if errors.Is(err, h.cause) {
			return fmt.Errorf("connect to daemon: socket %s %s", socket, h.hint)
		}
	}
	return fmt.Errorf("connect to daemon: %w", err)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}
