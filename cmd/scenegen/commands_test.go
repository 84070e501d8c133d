package main

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestSanitizeCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	raw := "Sure:\n```python\nfrom manim import *\nx = MathTex(\"a\")\n```\nHope this helps."

	out, _, err := runCLI(t, []string{"sanitize"}, "", raw)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	want := "from manim import *\nx = Text(\"a\")\n"
	if out != want {
		t.Fatalf("sanitize output = %q, want %q", out, want)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath, "")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
}

func TestDoctorReportsMissingRenderer(t *testing.T) {
	env := setupCLITestEnv(t, withManimBinary("/definitely/missing/manim"))

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath, "")
	if err == nil {
		t.Fatal("expected doctor to fail")
	}
	requireContains(t, out, "Manim")
	requireContains(t, out, "FAIL")
	requireContains(t, out, "Output directory")
}

func TestSaveCopiesPublishedVideo(t *testing.T) {
	env := setupCLITestEnv(t)
	if out, _, err := runCLI(t, []string{"generate", "x"}, env.configPath, ""); err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}
	destDir := t.TempDir()

	out, _, err := runCLI(t, []string{"save", destDir}, env.configPath, "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	saved := filepath.Join(destDir, "GenScene.mp4")
	requireContains(t, out, "Saved "+saved)
	if data, err := os.ReadFile(saved); err != nil || string(data) != "video" {
		t.Fatalf("saved video: %q %v", data, err)
	}
}

func TestSaveWithoutVideo(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"save", t.TempDir()}, env.configPath, ""); err == nil {
		t.Fatal("expected error without a published video")
	}
}

func TestOpenUsesPlatformOpener(t *testing.T) {
	env := setupCLITestEnv(t)
	if out, _, err := runCLI(t, []string{"generate", "x"}, env.configPath, ""); err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}
	var gotName string
	var gotArgs []string
	orig := startDetached
	startDetached = func(name string, args []string) error {
		gotName, gotArgs = name, args
		return nil
	}
	t.Cleanup(func() { startDetached = orig })

	if _, _, err := runCLI(t, []string{"open"}, env.configPath, ""); err != nil {
		t.Fatalf("open: %v", err)
	}
	if gotName == "" || len(gotArgs) == 0 || gotArgs[len(gotArgs)-1] != filepath.Join(env.outputDir, "GenScene.mp4") {
		t.Fatalf("unexpected opener %s %v", gotName, gotArgs)
	}
}

func TestOpenerCommand(t *testing.T) {
	cases := []struct {
		goos string
		name string
		args []string
	}{
		{"linux", "xdg-open", []string{"/v.mp4"}},
		{"darwin", "open", []string{"/v.mp4"}},
		{"windows", "cmd", []string{"/c", "start", "", "/v.mp4"}},
	}
	for _, tc := range cases {
		name, args := openerCommand(tc.goos, "/v.mp4")
		if name != tc.name || !slices.Equal(args, tc.args) {
			t.Fatalf("%s: got %s %v", tc.goos, name, args)
		}
	}
}
