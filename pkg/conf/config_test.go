package conf

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testConfig = `
log_level: info
port: 9000
dsn: sqlite3://file::memory:?cache=shared
operation_timeout: 20s
jwt:
  secret_key: not-a-secret
  accounts:
    alice:
      password: wonderland
      roles: [operator]
policy:
  roles:
    operator: [Query.getAllEvents, Mutation.addEvent]
activation:
  iam_role: drem-hybrid-role
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestInit(t *testing.T) {

	path := writeFile(t, t.TempDir(), "config.yaml", testConfig)

	c, err := Init(path)
	if err != nil {
		t.Fatalf("Failed to read the configuration: %v", err)
	}
	if c.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", c.Port)
	}
	if c.OperationTimeout != 20*time.Second {
		t.Errorf("Expected a 20s timeout, got %s", c.OperationTimeout)
	}
	if acc, ok := c.JWT.Accounts["alice"]; !ok || acc.Roles[0] != "operator" {
		t.Errorf("Failed to read the accounts: %+v", c.JWT.Accounts)
	}
	if len(c.Policy.Roles["operator"]) != 2 {
		t.Errorf("Failed to read the policy roles: %+v", c.Policy.Roles)
	}
	// defaults
	if c.Broadcast.Buffer != 16 || c.Broadcast.Shards != 16 {
		t.Errorf("Unexpected broadcast defaults: %+v", c.Broadcast)
	}
	if c.Activation.Region != "eu-west-1" || c.Activation.IamRole != "drem-hybrid-role" {
		t.Errorf("Unexpected activation config: %+v", c.Activation)
	}
	if c.Links["event"] == "" {
		t.Error("Expected a default event link template")
	}
}

func TestInitEnvOverride(t *testing.T) {

	path := writeFile(t, t.TempDir(), "config.yaml", testConfig)

	t.Setenv("CATALOG_PORT", "9100")
	t.Setenv("CATALOG_JWT_SECRET_KEY", "from-env")

	c, err := Init(path)
	if err != nil {
		t.Fatalf("Failed to read the configuration: %v", err)
	}
	if c.Port != 9100 {
		t.Errorf("Expected the env port 9100, got %d", c.Port)
	}
	if c.JWT.SecretKey != "from-env" {
		t.Errorf("Expected the env secret key, got %q", c.JWT.SecretKey)
	}
}

func TestInitMissingFile(t *testing.T) {
	if _, err := Init(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestLoadPolicyFile(t *testing.T) {

	dir := t.TempDir()
	path := writeFile(t, dir, "policy.yaml", "roles:\n  viewer: [Query.getAllEvents]\n")

	roles, err := LoadPolicyFile(path)
	if err != nil {
		t.Fatalf("Failed to load the policy: %v", err)
	}
	if roles["viewer"][0] != "Query.getAllEvents" {
		t.Errorf("Unexpected roles: %+v", roles)
	}

	empty := writeFile(t, dir, "empty.yaml", "roles: {}\n")
	if _, err = LoadPolicyFile(empty); err == nil {
		t.Error("Expected an error for a policy without roles")
	}
}

func TestWatchPolicy(t *testing.T) {

	dir := t.TempDir()
	path := writeFile(t, dir, "policy.yaml", "roles:\n  viewer: [Query.getAllEvents]\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan map[string][]string, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchPolicy(ctx, path, func(r map[string][]string) { changes <- r })
	}()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "policy.yaml", "roles:\n  viewer: [Query.getAllEvents, Query.getEvent]\n")

	select {
	case roles := <-changes:
		if len(roles["viewer"]) != 2 {
			t.Errorf("Expected the reloaded policy, got %+v", roles)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Policy change not detected")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watcher returned an error: %v", err)
	}
}
