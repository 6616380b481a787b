package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"assetforge/internal/config"
)

func TestApplyFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	registerFlags(cmd)
	if err := cmd.ParseFlags([]string{"--input", "src", "--jobs", "4", "--webp", "--log-level", "debug"}); err != nil {
		t.Fatal(err)
	}

	c := config.Defaults()
	c.Strict = true
	if err := applyFlags(cmd, c); err != nil {
		t.Fatalf("applyFlags() error: %v", err)
	}

	if c.InputDir != "src" {
		t.Errorf("InputDir = %q, want src", c.InputDir)
	}
	if c.OutputDir != "minified-assets" {
		t.Errorf("OutputDir = %q, unset flag should keep the default", c.OutputDir)
	}
	if c.Jobs != 4 || !c.EmitWebP || c.LogLevel != "debug" {
		t.Errorf("got jobs=%d webp=%t level=%q", c.Jobs, c.EmitWebP, c.LogLevel)
	}
	if !c.Strict {
		t.Error("unset --strict should not clear a configured value")
	}
}

func TestSettingsFingerprint(t *testing.T) {
	base := config.Defaults()
	fp := settingsFingerprint(base)

	if fp != settingsFingerprint(config.Defaults()) {
		t.Error("fingerprint should be deterministic")
	}

	changed := config.Defaults()
	changed.JPEGQuality = 80
	if settingsFingerprint(changed) == fp {
		t.Error("quality change should alter the fingerprint")
	}

	if settingsFingerprint(base, []byte("<nav>")) == settingsFingerprint(base, []byte("<nav/>")) {
		t.Error("fragment content should alter the fingerprint")
	}
}

func TestBuildCommand(t *testing.T) {
	in := filepath.Join(t.TempDir(), "assets")
	out := filepath.Join(t.TempDir(), "out")
	if err := os.MkdirAll(filepath.Join(in, "css"), 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"css/main.css": "body {\n  color: #ff0000;\n}\n",
		"robots.txt":   "User-agent: *\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(in, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(in, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	rootCmd.SetArgs([]string{"build", "--input", in, "--output", out, "--log-level", "error"})
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	css, err := os.ReadFile(filepath.Join(out, "css", "main.css"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(css), "\n") {
		t.Errorf("css should be minified, got %q", css)
	}
	robots, err := os.ReadFile(filepath.Join(out, "robots.txt"))
	if err != nil || string(robots) != files["robots.txt"] {
		t.Errorf("robots.txt = %q, %v; want byte-identical copy", robots, err)
	}
	if info, err := os.Stat(filepath.Join(out, "empty")); err != nil || !info.IsDir() {
		t.Errorf("empty directory should be mirrored: %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	t.Cleanup(func() { rootCmd.SetOut(nil) })

	rootCmd.SetArgs([]string{"version"})
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "assetforge version dev") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestSetup_FlagsOverrideBeforeValidation(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := os.Mkdir("site", 0o755); err != nil {
		t.Fatal(err)
	}
	// Invalid on its own: output equals input.
	t.Setenv("ASSETFORGE_INPUT", "site")
	t.Setenv("ASSETFORGE_OUTPUT", "site")

	cmd := &cobra.Command{Use: "test"}
	registerFlags(cmd)
	if err := cmd.ParseFlags([]string{"--output", "dist"}); err != nil {
		t.Fatal(err)
	}
	if err := setup(cmd, nil); err != nil {
		t.Fatalf("setup() should accept the corrected output: %v", err)
	}
	if cfg.OutputDir != "dist" {
		t.Errorf("OutputDir = %q, want dist", cfg.OutputDir)
	}

	bad := &cobra.Command{Use: "test"}
	registerFlags(bad)
	if err := bad.ParseFlags([]string{"--output", "site/out"}); err != nil {
		t.Fatal(err)
	}
	if err := setup(bad, nil); err == nil {
		t.Error("setup() should validate flag values")
	}
}

func TestSetup_ProductionChecksFlaggedInput(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := os.Mkdir("real", 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ASSETFORGE_ENV", "production")
	t.Setenv("ASSETFORGE_INPUT", "missing")

	cmd := &cobra.Command{Use: "test"}
	registerFlags(cmd)
	if err := cmd.ParseFlags([]string{"--input", "real"}); err != nil {
		t.Fatal(err)
	}
	if err := setup(cmd, nil); err != nil {
		t.Fatalf("setup() should check the flagged input: %v", err)
	}
}
