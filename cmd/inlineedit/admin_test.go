package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"inlineedit/internal/config"
	"inlineedit/internal/models"
	"inlineedit/internal/store"
)

const fixturePath = "../../internal/store/testdata/fixture.yml"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "inlineedit.db")
	return &cfg
}

func runCmd(t *testing.T, cmd interface {
	SetArgs([]string)
	ExecuteContext(context.Context) error
}, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func openTestStore(t *testing.T, cfg *config.Config) *store.Store {
	t.Helper()
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestImportThenGrant(t *testing.T) {
	cfg := testConfig(t)
	jsonOutput := true

	if err := runCmd(t, newImportCmd(cfg, &jsonOutput), fixturePath); err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := runCmd(t, newMemberGrantCmd(cfg, &jsonOutput), "dlopper", "ecookbook", models.PermissionInlineEdit); err != nil {
		t.Fatalf("grant: %v", err)
	}

	st := openTestStore(t, cfg)
	user, err := st.GetUserByLogin(context.Background(), "dlopper")
	if err != nil || user == nil {
		t.Fatalf("lookup dlopper: %v", err)
	}
	project, err := st.FindProject(context.Background(), "ecookbook")
	if err != nil {
		t.Fatalf("find project: %v", err)
	}
	allowed, err := st.UserAllowedTo(context.Background(), user.ID, models.PermissionInlineEdit, []int64{project.ID})
	if err != nil {
		t.Fatalf("allowed: %v", err)
	}
	if !allowed {
		t.Fatal("expected dlopper to gain inline edit permission")
	}
}

func TestMemberGrantUnknownUser(t *testing.T) {
	cfg := testConfig(t)
	jsonOutput := true
	if err := runCmd(t, newImportCmd(cfg, &jsonOutput), fixturePath); err != nil {
		t.Fatalf("import: %v", err)
	}
	err := runCmd(t, newMemberGrantCmd(cfg, &jsonOutput), "nobody", "ecookbook", models.PermissionInlineEdit)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestUserAdd(t *testing.T) {
	cfg := testConfig(t)
	jsonOutput := true

	cmd := newUserAddCmd(cfg, &jsonOutput)
	cmd.SetIn(strings.NewReader("correct horse battery\n"))
	if err := runCmd(t, cmd, "Alice", "--password-stdin", "--admin", "--language", "de", "--api-key"); err != nil {
		t.Fatalf("user add: %v", err)
	}

	st := openTestStore(t, cfg)
	user, err := st.GetUserByLogin(context.Background(), "alice")
	if err != nil || user == nil {
		t.Fatalf("lookup alice: %v", err)
	}
	if !user.Admin || user.Language != "de" {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestUserAddRequiresPasswordStdin(t *testing.T) {
	cfg := testConfig(t)
	jsonOutput := false
	if err := runCmd(t, newUserAddCmd(cfg, &jsonOutput), "alice"); err == nil {
		t.Fatal("expected --password-stdin error")
	}
}

func TestUserAddRejectsShortPassword(t *testing.T) {
	cfg := testConfig(t)
	jsonOutput := false
	cmd := newUserAddCmd(cfg, &jsonOutput)
	cmd.SetIn(strings.NewReader("short\n"))
	if err := runCmd(t, cmd, "alice", "--password-stdin"); err == nil {
		t.Fatal("expected password validation error")
	}
}

func TestWithStoreRequiresDBPath(t *testing.T) {
	cfg := config.Default()
	if err := withStore(&cfg, func(*store.Store) error { return nil }); err == nil {
		t.Fatal("expected db path error")
	}
}

func TestMigrateStatusThenApply(t *testing.T) {
	cfg := testConfig(t)

	plan, err := inspectMigrations(cfg.DBPath)
	if err != nil {
		t.Fatalf("inspect fresh db: %v", err)
	}
	if plan.CurrentVersion != 0 || len(plan.Pending) == 0 {
		t.Fatalf("expected pending migrations on fresh db, got %+v", plan)
	}

	if err := applyMigrations(cfg, false); err != nil {
		t.Fatalf("apply: %v", err)
	}
	plan, err = inspectMigrations(cfg.DBPath)
	if err != nil {
		t.Fatalf("inspect migrated db: %v", err)
	}
	if len(plan.Pending) != 0 || plan.CurrentVersion != plan.AvailableVersion {
		t.Fatalf("expected no pending migrations, got %+v", plan)
	}
}
