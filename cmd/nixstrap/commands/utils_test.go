package commands

import (
	"testing"

	"nixstrap/cmd/nixstrap/config"
	"nixstrap/internal/ssh"
)

func TestParseTargetFromArgument(t *testing.T) {
	target, err := parseTarget([]string{"root@10.0.0.7:2222"})
	if err != nil {
		t.Fatalf("parseTarget: %v", err)
	}
	if target.User != "root" || target.Endpoint.Destination != "10.0.0.7" || target.Endpoint.Port != 2222 {
		t.Errorf("target = %+v", target)
	}

	if _, err := parseTarget([]string{"root@host:0"}); err == nil {
		t.Errorf("expected error for port 0")
	}
}

func TestParseTargetFromConfig(t *testing.T) {
	target, err := parseTarget(nil)
	if err != nil {
		t.Fatalf("parseTarget: %v", err)
	}
	if target.User != config.Config.SSHUser || target.Endpoint.Port != config.Config.SSHPort {
		t.Errorf("target = %+v", target)
	}
}

func TestBuildCredentials(t *testing.T) {
	if creds := buildCredentials("", false, ""); len(creds) != 0 {
		t.Errorf("expected no credentials, got %v", creds)
	}

	creds := buildCredentials("/keys/id_ed25519.pub", true, "pass")
	if len(creds) != 2 {
		t.Fatalf("expected 2 credentials, got %d", len(creds))
	}
	if creds[0].Kind() != ssh.KindAgent {
		t.Errorf("first credential = %s", creds[0].Kind())
	}
	pk, ok := creds[1].(ssh.PublicKeyCredential)
	if !ok || pk.PublicKeyPath != "/keys/id_ed25519.pub" || pk.Passphrase != "pass" {
		t.Errorf("public key credential = %#v", creds[1])
	}
}
