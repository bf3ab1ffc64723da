package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"nixstrap/internal/logger"
	"nixstrap/internal/registry"

	"github.com/joho/godotenv"
)

func init() {
	envFiles := []string{
		".env",
	}

	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err != nil {
			if !os.IsNotExist(err) {
				logger.Warn("Error loading %s: %v", envFile, err)
			}
		}
	}
}

func GetEnv(key string, defaultValue string) string {
	value := os.Getenv(key)

	if value == "" {
		return defaultValue
	}

	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		logger.Warn("Ignoring %s=%q: %v", key, value, err)
		return defaultValue
	}
	return parsed
}

func getEnvPort(key string, defaultValue uint16) uint16 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseUint(value, 10, 16)
	if err != nil || parsed == 0 {
		logger.Warn("Ignoring %s=%q: not a port number", key, value)
		return defaultValue
	}
	return uint16(parsed)
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("Ignoring %s=%q: %v", key, value, err)
		return defaultValue
	}
	return parsed
}

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		logger.Warn("Could not determine home directory: %v", err)
		return ""
	}
	return homeDir
}

func getDefaultDatabasePath(fallback string, profile string) string {
	homeDir := getHomeDir()
	if homeDir == "" {
		return fallback
	}
	return filepath.Join(homeDir, ".nixstrap", profile, "nixstrap.db")
}

func getDefaultKnownHostsPath() string {
	homeDir := getHomeDir()
	if homeDir == "" {
		return "known_hosts"
	}
	return filepath.Join(homeDir, ".ssh", "known_hosts")
}

type Configuration struct {
	Profile      string
	DatabasePath string
	LogLevel     string

	KnownHostsPath string

	SSHDestination string
	SSHPort        uint16
	SSHUser        string
	SSHTimeout     time.Duration

	ConfigRepo  string
	SopsFile    string
	SecretsFile string

	RegistryUsersSentinel     string
	RegistryHostsSentinel     string
	RegistryReferenceSentinel string
	RegistryHostGroup         string
	RegistryReferenceOffset   int

	InterruptExitCode int
}

// Layouts builds the registry key groups from the configured sentinels.
func (c *Configuration) Layouts() map[string]registry.Layout {
	layouts := registry.DefaultLayouts()

	for group, sentinel := range map[string]string{
		"users": c.RegistryUsersSentinel,
		"hosts": c.RegistryHostsSentinel,
	} {
		l := layouts[group]
		l.DefinitionSentinel = sentinel
		l.ReferenceSentinel = c.RegistryReferenceSentinel
		l.ReferenceOffset = c.RegistryReferenceOffset
		layouts[group] = l
	}

	return layouts
}

var Profile = GetEnv("NIXSTRAP_PROFILE", "default")
var DatabasePath = GetEnv("NIXSTRAP_DATABASE_PATH", getDefaultDatabasePath("nixstrap.db", Profile))

var Config = &Configuration{
	Profile:      Profile,
	DatabasePath: DatabasePath,
	LogLevel:     GetEnv("NIXSTRAP_LOG_LEVEL", "info"),

	KnownHostsPath: GetEnv("NIXSTRAP_KNOWN_HOSTS", getDefaultKnownHostsPath()),

	SSHDestination: GetEnv("NIXSTRAP_SSH_DESTINATION", "127.0.0.1"),
	SSHPort:        getEnvPort("NIXSTRAP_SSH_PORT", 22),
	SSHUser:        GetEnv("NIXSTRAP_SSH_USER", "nixos"),
	SSHTimeout:     getEnvDuration("NIXSTRAP_SSH_TIMEOUT", 10*time.Second),

	ConfigRepo:  GetEnv("NIXSTRAP_CONFIG_REPO", "https://github.com/wallago/nix-config"),
	SopsFile:    GetEnv("NIXSTRAP_SOPS_FILE", ".sops.yaml"),
	SecretsFile: GetEnv("NIXSTRAP_SECRETS_FILE", "nixos/common/secrets.yaml"),

	RegistryUsersSentinel:     GetEnv("NIXSTRAP_REGISTRY_USERS_SENTINEL", "users: &age_keys"),
	RegistryHostsSentinel:     GetEnv("NIXSTRAP_REGISTRY_HOSTS_SENTINEL", "hosts: &host_keys"),
	RegistryReferenceSentinel: GetEnv("NIXSTRAP_REGISTRY_REFERENCE_SENTINEL", registry.DefaultReferenceSentinel),
	RegistryHostGroup:         GetEnv("NIXSTRAP_REGISTRY_HOST_GROUP", "users"),
	RegistryReferenceOffset:   getEnvInt("NIXSTRAP_REGISTRY_REFERENCE_OFFSET", registry.DefaultReferenceOffset),

	InterruptExitCode: getEnvInt("NIXSTRAP_INTERRUPT_EXIT_CODE", 130),
}
