package main

import "testing"

func TestBuildRootCmdIncludesServeSubcommand(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	if !names["serve"] {
		t.Fatalf("expected serve subcommand to be registered")
	}
}

func TestDefaultConfigPathFallsBackWhenEnvUnset(t *testing.T) {
	t.Setenv("CONCORD_CONFIG", "")
	if got := defaultConfigPath(); got != "concord.yaml" {
		t.Fatalf("expected default path concord.yaml, got %q", got)
	}
}

func TestDefaultConfigPathHonorsEnv(t *testing.T) {
	t.Setenv("CONCORD_CONFIG", "/etc/concord/production.yaml")
	if got := defaultConfigPath(); got != "/etc/concord/production.yaml" {
		t.Fatalf("expected env override, got %q", got)
	}
}
