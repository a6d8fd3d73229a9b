package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGo(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLintLedgerQueries(t *testing.T) {
	vs, err := lint([]string{filepath.Join("..", "..", "credits")})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(vs) != 0 {
		t.Fatalf("unexpected violations: %v", vs)
	}
}

func TestLintReportsMissingAndDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "a.go", "package a\n\nconst qOK = `\n--sql 11111111-2222-4333-8444-555555555555\nSELECT 1`\n\nconst prompt = \"Select the best photo\"\n")
	writeGo(t, dir, "b.go", "package a\n\nconst qDup = `\n--sql 11111111-2222-4333-8444-555555555555\nDELETE FROM t`\n\nvar qBare = \"UPDATE t SET x = 1\"\n\nconst qBad = `--sql not-a-uuid\nSELECT 2`\n")
	writeGo(t, dir, "b_test.go", "package a\n\nconst qIgnored = \"SELECT 3\"\n")

	vs, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	got := map[string]string{}
	for _, v := range vs {
		got[v.name] = v.message
	}
	if len(got) != 3 {
		t.Fatalf("violations = %v", vs)
	}
	if !strings.Contains(got["qDup"], "already used at") {
		t.Fatalf("qDup = %q", got["qDup"])
	}
	for _, name := range []string{"qBare", "qBad"} {
		if !strings.Contains(got[name], "missing or invalid") {
			t.Fatalf("%s = %q", name, got[name])
		}
	}
}

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()
	clean := writeGo(t, dir, "ok.go", "package a\n\nconst q = `\n--sql 11111111-2222-4333-8444-555555555555\nSELECT 1`\n")

	var stderr bytes.Buffer
	if code := run([]string{clean}, &stderr); code != 0 {
		t.Fatalf("clean exit = %d, stderr %s", code, stderr.String())
	}
	bad := writeGo(t, dir, "bad.go", "package a\n\nconst q2 = \"INSERT INTO t VALUES (1)\"\n")
	stderr.Reset()
	if code := run([]string{bad}, &stderr); code != 1 {
		t.Fatalf("bad exit = %d", code)
	}
	if !strings.Contains(stderr.String(), "bad.go:3") {
		t.Fatalf("stderr = %s", stderr.String())
	}
	if code := run([]string{filepath.Join(dir, "missing")}, &stderr); code != 2 {
		t.Fatalf("missing target exit = %d", code)
	}
}
