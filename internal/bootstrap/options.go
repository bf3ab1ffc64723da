package bootstrap

import (
	"io"
	"os"

	"nixstrap/internal/registry"
	"nixstrap/internal/ssh"
)

const (
	DefaultSopsFile          = ".sops.yaml"
	DefaultSecretsFile       = "nixos/common/secrets.yaml"
	DefaultHostGroup         = "users"
	DefaultUserGroup         = "users"
	DefaultRemoteConfigDir   = "nix-config"
	DefaultInterruptExitCode = 130

	// remote paths are relative to the login user's home directory over sftp
	remoteAgeKeysFile  = ".config/sops/age/keys.txt"
	hardwareRoot       = "/tmp"
	hardwareConfigPath = hardwareRoot + "/etc/nixos/hardware-configuration.nix"
	extraFilesDir      = "extra-files"
	hostKeyFile        = "etc/ssh/ssh_host_ed25519_key"
)

type Options struct {
	// User logs in on the target. Credentials are tried in order; when empty
	// the operator is asked for one.
	User        string
	Credentials []ssh.Credential

	KnownHostsPath string

	// ConfigPath opens an existing tree; otherwise ConfigRepo is cloned
	// into the work directory.
	ConfigPath string
	ConfigRepo string
	// HostPrefix restricts the offered hosts.
	HostPrefix string

	SopsFile    string
	SecretsFile string
	HostGroup   string
	UserGroup   string

	RemoteConfigDir string

	// WorkDir is the parent of the temporary work directory.
	WorkDir     string
	KeepWorkDir bool

	InterruptExitCode int

	Out io.Writer
}

func (o *Options) setDefaults() {
	if o.KnownHostsPath == "" {
		o.KnownHostsPath = ExpandHome("~/.ssh/known_hosts")
	}
	if o.SopsFile == "" {
		o.SopsFile = DefaultSopsFile
	}
	if o.SecretsFile == "" {
		o.SecretsFile = DefaultSecretsFile
	}
	if o.HostGroup == "" {
		o.HostGroup = DefaultHostGroup
	}
	if o.UserGroup == "" {
		o.UserGroup = DefaultUserGroup
	}
	if o.RemoteConfigDir == "" {
		o.RemoteConfigDir = DefaultRemoteConfigDir
	}
	if o.InterruptExitCode == 0 {
		o.InterruptExitCode = DefaultInterruptExitCode
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
}

// Registry updates the secrets registry. *registry.Editor satisfies it.
type Registry interface {
	UpsertKey(path, group, name, value string) (registry.Outcome, error)
}
