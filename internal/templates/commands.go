package templates

import (
	"fmt"
	"strconv"
)

// DeployTarget is the machine a local deploy command acts on.
type DeployTarget struct {
	User        string
	Destination string
	Port        uint16
	ConfigPath  string
	Host        string
}

func (t DeployTarget) flakeRef() string {
	return t.ConfigPath + "#" + t.Host
}

func (t DeployTarget) target() string {
	return t.User + "@" + t.Destination
}

// NixosAnywhere renders the nixos-anywhere install command. extraFiles is
// copied onto the target root and may be empty.
func NixosAnywhere(t DeployTarget, extraFiles string) (string, error) {
	return Render(DeployAnywherePath, map[string]interface{}{
		"port":       strconv.Itoa(int(t.Port)),
		"extraFiles": extraFiles,
		"flakeRef":   t.flakeRef(),
		"target":     t.target(),
	})
}

// NixosRebuild renders a remote nixos-rebuild switch driven from this machine.
func NixosRebuild(t DeployTarget) (string, error) {
	return Render(DeployRebuildPath, map[string]interface{}{
		"sshOpts":  fmt.Sprintf("-p %d", t.Port),
		"flakeRef": t.flakeRef(),
		"target":   t.target(),
	})
}

// RemoteRebuild renders the rebuild run on the target inside an uploaded tree.
func RemoteRebuild(dir, host string) (string, error) {
	return Render(RemoteRebuildPath, map[string]interface{}{
		"dir":      dir,
		"flakeRef": ".#" + host,
	})
}

// HardwareConfig renders nixos-generate-config writing under root.
func HardwareConfig(root string) (string, error) {
	return Render(RemoteHardwarePath, map[string]interface{}{
		"root": root,
	})
}
