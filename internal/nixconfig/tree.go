// Package nixconfig works on the local NixOS configuration tree: cloning
// it, listing its hosts, and writing the per-host files a bootstrap
// produces.
package nixconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"nixstrap/internal/logger"
	"nixstrap/internal/terminal"
)

const (
	hostsDir           = "hosts"
	hardwareConfigFile = "hardware-configuration.nix"
	hostConfigFile     = "default.nix"
	hostPublicKeyFile  = "ssh_host_ed25519_key.pub"
)

// Tree is a checked-out configuration repository.
type Tree struct {
	Path   string
	runner terminal.Runner
}

// Clone clones url into dir and opens the result.
func Clone(ctx context.Context, runner terminal.Runner, url, dir string) (*Tree, error) {
	logger.Info("Cloning %s into %s", url, dir)

	if err := runner.Stream(ctx, terminal.NewCommand("git", "clone", url, dir)); err != nil {
		return nil, fmt.Errorf("cloning %s: %w", url, err)
	}

	return Open(ctx, runner, dir)
}

// Open verifies path is inside a git work tree and roots the Tree at its top level.
func Open(ctx context.Context, runner terminal.Runner, path string) (*Tree, error) {
	out, err := runner.Execute(ctx, terminal.NewCommand("git", "-C", path, "rev-parse", "--show-toplevel"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotARepository, path, err)
	}

	top := strings.TrimSpace(out)
	if top == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotARepository, path)
	}

	return &Tree{Path: top, runner: runner}, nil
}

// Hosts lists the names of the tree's nixosConfigurations, sorted.
func (t *Tree) Hosts(ctx context.Context) ([]string, error) {
	cmd := terminal.NewCommand("nix", "eval", "--json", t.Path+"#nixosConfigurations", "--apply", "builtins.attrNames")

	out, err := t.runner.Execute(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("listing hosts: %w", err)
	}

	var hosts []string
	if err := json.Unmarshal([]byte(out), &hosts); err != nil {
		return nil, fmt.Errorf("parsing host list: %w", err)
	}
	if len(hosts) == 0 {
		return nil, ErrNoHosts
	}

	slices.Sort(hosts)
	return hosts, nil
}

// FilterHosts keeps the hosts starting with prefix; an empty prefix keeps all.
func FilterHosts(hosts []string, prefix string) []string {
	if prefix == "" {
		return hosts
	}

	var filtered []string
	for _, h := range hosts {
		if strings.HasPrefix(h, prefix) {
			filtered = append(filtered, h)
		}
	}
	return filtered
}

func (t *Tree) HostDir(host string) (string, error) {
	if host == "" || host == "." || host == ".." || strings.ContainsAny(host, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}
	return filepath.Join(t.Path, hostsDir, host), nil
}

func (t *Tree) hostFile(host, name string) (string, error) {
	dir, err := t.HostDir(host)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (t *Tree) WriteHardwareConfig(host string, contents []byte) error {
	path, err := t.hostFile(host, hardwareConfigFile)
	if err != nil {
		return err
	}

	logger.Info("Updating hardware configuration for %s", host)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, contents, 0644)
}

func (t *Tree) WriteHostPublicKey(host string, key string) error {
	path, err := t.hostFile(host, hostPublicKeyFile)
	if err != nil {
		return err
	}

	logger.Info("Writing host public key for %s", host)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strings.TrimSpace(key)+"\n"), 0644)
}

// ReadHostPublicKey returns the committed host public key, if any.
func (t *Tree) ReadHostPublicKey(host string) (string, bool, error) {
	path, err := t.hostFile(host, hostPublicKeyFile)
	if err != nil {
		return "", false, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return strings.TrimSpace(string(data)), true, nil
}

// Abs resolves a tree-relative path.
func (t *Tree) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(t.Path, rel)
}
