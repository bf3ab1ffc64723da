package config

import (
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("NIXSTRAP_TEST_VALUE", "set")

	if got := GetEnv("NIXSTRAP_TEST_VALUE", "default"); got != "set" {
		t.Errorf("GetEnv = %q", got)
	}
	if got := GetEnv("NIXSTRAP_TEST_UNSET", "default"); got != "default" {
		t.Errorf("GetEnv default = %q", got)
	}
}

func TestTypedEnv(t *testing.T) {
	t.Setenv("NIXSTRAP_TEST_PORT", "2222")
	t.Setenv("NIXSTRAP_TEST_BAD_PORT", "70000")
	t.Setenv("NIXSTRAP_TEST_TIMEOUT", "45s")
	t.Setenv("NIXSTRAP_TEST_INT", "abc")

	if got := getEnvPort("NIXSTRAP_TEST_PORT", 22); got != 2222 {
		t.Errorf("getEnvPort = %d", got)
	}
	if got := getEnvPort("NIXSTRAP_TEST_BAD_PORT", 22); got != 22 {
		t.Errorf("out of range port accepted: %d", got)
	}
	if got := getEnvDuration("NIXSTRAP_TEST_TIMEOUT", time.Second); got != 45*time.Second {
		t.Errorf("getEnvDuration = %v", got)
	}
	if got := getEnvInt("NIXSTRAP_TEST_INT", 130); got != 130 {
		t.Errorf("invalid int accepted: %d", got)
	}
}

func TestLayouts(t *testing.T) {
	c := &Configuration{
		RegistryUsersSentinel:     "people: &people",
		RegistryHostsSentinel:     "machines: &machines",
		RegistryReferenceSentinel: "- age:",
		RegistryReferenceOffset:   2,
	}

	layouts := c.Layouts()
	if layouts["users"].DefinitionSentinel != "people: &people" || layouts["hosts"].DefinitionSentinel != "machines: &machines" {
		t.Errorf("sentinels not applied: %+v", layouts)
	}
	if layouts["hosts"].ReferenceOffset != 2 || layouts["users"].DefinitionIndent != 4 {
		t.Errorf("layout fields = %+v", layouts["hosts"])
	}
}
