package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"nixstrap/internal/agekey"
	"nixstrap/internal/logger"
	"nixstrap/internal/nixconfig"
	"nixstrap/internal/templates"
	"nixstrap/internal/terminal"
)

func (d *Driver) deployTarget() templates.DeployTarget {
	ep := d.session.Endpoint()
	return templates.DeployTarget{
		User:        d.user,
		Destination: ep.Destination,
		Port:        ep.Port,
		ConfigPath:  d.tree.Path,
		Host:        d.host,
	}
}

func (d *Driver) hardwareConfig(ctx context.Context) (stepResult, error) {
	ok, err := d.confirm("Generate hardware-configuration.nix on %s?", d.target())
	if err != nil || !ok {
		return skipped("declined"), err
	}

	cmd, err := templates.HardwareConfig(hardwareRoot)
	if err != nil {
		return stepResult{}, err
	}
	if _, err := d.remote(cmd); err != nil {
		return stepResult{}, err
	}

	contents, err := d.session.DownloadFile(hardwareConfigPath)
	if err != nil {
		return stepResult{}, err
	}
	if err := d.tree.WriteHardwareConfig(d.host, contents); err != nil {
		return stepResult{}, err
	}

	return done("%d bytes from %s", len(contents), hardwareConfigPath), nil
}

func (d *Driver) diskDevice(ctx context.Context) (stepResult, error) {
	ok, err := d.confirm("Select a target disk device on %s?", d.target())
	if err != nil || !ok {
		return skipped("declined"), err
	}

	result, err := d.remote(nixconfig.BlockDevicesCommand)
	if err != nil {
		return stepResult{}, err
	}
	devices, err := nixconfig.ParseBlockDevices(result.Stdout)
	if err != nil {
		return stepResult{}, err
	}

	options := make([]string, len(devices))
	for i, dev := range devices {
		options[i] = dev.Info()
	}
	idx, err := d.prompt.Select("Select a target disk device", options)
	if err != nil {
		return stepResult{}, err
	}
	device := devices[idx]

	changed, err := d.tree.SetDiskDevice(d.host, device.Name)
	if err != nil {
		return stepResult{}, err
	}
	if !changed {
		return done("%s already set", device.Path()), nil
	}
	return done("%s", device.Path()), nil
}

// stageHostKey writes a fresh host key into the tree nixos-anywhere copies
// onto the installed root, so the post-install host key is known up front.
func (d *Driver) stageHostKey() (string, error) {
	hk, err := agekey.GenerateHostKey("root@" + d.host)
	if err != nil {
		return "", err
	}

	extra := filepath.Join(d.workDir, extraFilesDir)
	keyPath := filepath.Join(extra, filepath.FromSlash(hostKeyFile))
	if err := os.MkdirAll(filepath.Dir(keyPath), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(keyPath, hk.PrivateKey, 0600); err != nil {
		return "", err
	}
	if err := os.WriteFile(keyPath+".pub", []byte(hk.PublicKey+"\n"), 0644); err != nil {
		return "", err
	}

	d.deployKey = hk.PublicKey
	return extra, nil
}

func (d *Driver) deploy(ctx context.Context) (stepResult, error) {
	ok, err := d.confirm("Run nixos-anywhere against %s for %s?", d.target(), d.host)
	if err != nil || !ok {
		return skipped("declined"), err
	}

	extra, err := d.stageHostKey()
	if err != nil {
		return stepResult{}, fmt.Errorf("staging host key: %w", err)
	}

	line, err := templates.NixosAnywhere(d.deployTarget(), extra)
	if err != nil {
		return stepResult{}, err
	}
	logger.Info("Running nixos-anywhere for %s#%s", d.tree.Path, d.host)
	if err := d.runner.Stream(ctx, terminal.Shell(line)); err != nil {
		return stepResult{}, err
	}

	ok, err = d.confirm("Reconnect to %s once it has rebooted?", d.session.Endpoint())
	if err != nil {
		return stepResult{}, err
	}
	if !ok {
		return stepResult{}, fmt.Errorf("%w: reconnect after deploy declined", errStopped)
	}

	key, err := d.reconnect(ctx)
	if err != nil {
		return stepResult{}, err
	}

	result, err := d.trust(key)
	if err != nil {
		return stepResult{}, err
	}
	d.hostKey = key

	if !sameKey(key, d.deployKey) {
		logger.Warn("Host key of %s after deploy does not match the staged key", d.session.Endpoint())
	}
	return done("deployed, host key %s", result), nil
}

// reconnect retries for as long as the operator confirms.
func (d *Driver) reconnect(ctx context.Context) (string, error) {
	for {
		key, err := d.session.Reconnect(ctx, d.user, d.cred)
		if err == nil {
			return key, nil
		}
		logger.Warn("Reconnect to %s failed: %v", d.session.Endpoint(), err)

		retry, perr := d.confirm("Reconnect to %s failed. Retry?", d.session.Endpoint())
		if perr != nil {
			return "", perr
		}
		if !retry {
			return "", fmt.Errorf("reconnecting: %w", err)
		}
	}
}

func (d *Driver) rebuild(ctx context.Context) (stepResult, error) {
	ok, err := d.confirm("Run nixos-rebuild against %s for %s?", d.target(), d.host)
	if err != nil || !ok {
		return skipped("declined"), err
	}

	line, err := templates.NixosRebuild(d.deployTarget())
	if err != nil {
		return stepResult{}, err
	}
	if err := d.runner.Stream(ctx, terminal.Shell(line)); err != nil {
		return stepResult{}, err
	}
	return done("%s#%s", d.tree.Path, d.host), nil
}

func (d *Driver) upload(ctx context.Context) (stepResult, error) {
	ok, err := d.confirm("Upload the configuration to %s and rebuild there?", d.target())
	if err != nil || !ok {
		return skipped("declined"), err
	}

	if err := d.session.UploadTree(d.tree.Path, d.opts.RemoteConfigDir); err != nil {
		return stepResult{}, err
	}

	cmd, err := templates.RemoteRebuild(d.opts.RemoteConfigDir, d.host)
	if err != nil {
		return stepResult{}, err
	}
	if _, err := d.remote(cmd); err != nil {
		return stepResult{}, err
	}
	return done("uploaded to %s", d.opts.RemoteConfigDir), nil
}
