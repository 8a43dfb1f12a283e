package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

type record struct {
	Payload  json.RawMessage `json:"payload"`
	Metadata map[string]any  `json:"metadata"`
}

func (r record) text(t *testing.T) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(r.Payload, &s); err != nil {
		t.Fatalf("payload is not a string: %s", r.Payload)
	}
	return s
}

func execute(t *testing.T, args ...string) ([]record, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())

	var recs []record
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var r record
		if jerr := json.Unmarshal([]byte(line), &r); jerr != nil {
			t.Fatalf("invalid output line %q: %v", line, jerr)
		}
		recs = append(recs, r)
	}
	return recs, err
}

func texts(t *testing.T, recs []record) []string {
	t.Helper()
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.text(t))
	}
	return out
}

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"a.txt": "x\ny\n",
		"b.txt": "z\n",
		"c.csv": "col\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestList(t *testing.T) {
	dir := fixtureDir(t)
	recs, err := execute(t, "list", dir, "-p", "*.txt")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.ToSlash(filepath.Join(dir, "a.txt")),
		filepath.ToSlash(filepath.Join(dir, "b.txt")),
	}
	if got := texts(t, recs); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if recs[0].Metadata["protocol"] != "file" {
		t.Errorf("metadata = %v", recs[0].Metadata)
	}
}

func TestLines(t *testing.T) {
	dir := fixtureDir(t)
	recs, err := execute(t, "lines", dir, "-p", "*.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got := texts(t, recs); !reflect.DeepEqual(got, []string{"x", "y", "z"}) {
		t.Fatalf("got %v", got)
	}
	var idx []float64
	for _, r := range recs {
		idx = append(idx, r.Metadata["item_idx"].(float64))
	}
	if !reflect.DeepEqual(idx, []float64{0, 1, 0}) {
		t.Errorf("item_idx = %v", idx)
	}
}

func TestRead(t *testing.T) {
	dir := fixtureDir(t)

	t.Run("text", func(t *testing.T) {
		recs, err := execute(t, "read", dir, "-p", "b.txt")
		if err != nil {
			t.Fatal(err)
		}
		if got := texts(t, recs); !reflect.DeepEqual(got, []string{"z\n"}) {
			t.Errorf("got %q", got)
		}
	})

	t.Run("binary", func(t *testing.T) {
		recs, err := execute(t, "read", dir, "-p", "b.txt", "--binary")
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 1 {
			t.Fatalf("expected 1 record, got %d", len(recs))
		}
		raw, err := base64.StdEncoding.DecodeString(recs[0].text(t))
		if err != nil || string(raw) != "z\n" {
			t.Errorf("payload = %q, %v", raw, err)
		}
	})

	t.Run("missing base directory lists nothing", func(t *testing.T) {
		_, err := execute(t, "read", filepath.Join(dir, "nope"), "-p", "*")
		if err != nil {
			t.Errorf("an empty listing is not an error, got %v", err)
		}
	})
}

func TestLines_ResumeFromCheckpointDir(t *testing.T) {
	dir := fixtureDir(t)
	cpDir := t.TempDir()
	common := []string{"-p", "*.txt", "--checkpoint-key", "job", "--checkpoint-dir", cpDir, "--interval", "1"}

	first, err := execute(t, append([]string{"lines", dir, "--limit", "2"}, common...)...)
	if err != nil {
		t.Fatal(err)
	}
	if got := texts(t, first); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Fatalf("first run = %v", got)
	}
	if _, err := os.Stat(filepath.Join(cpDir, "job.json")); err != nil {
		t.Fatalf("checkpoint file missing: %v", err)
	}

	second, err := execute(t, append([]string{"lines", dir}, common...)...)
	if err != nil {
		t.Fatal(err)
	}
	if got := texts(t, second); !reflect.DeepEqual(got, []string{"z"}) {
		t.Errorf("second run = %v, want [z]", got)
	}

	third, err := execute(t, append([]string{"lines", dir}, common...)...)
	if err != nil {
		t.Fatal(err)
	}
	if len(third) != 0 {
		t.Errorf("a finished run should resume at the end, got %v", texts(t, third))
	}
}

func TestLines_ResumeFromRedis(t *testing.T) {
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer mini.Close()

	dir := fixtureDir(t)
	common := []string{"-p", "*.txt", "--checkpoint-key", "job", "--redis-addr", mini.Addr()}

	first, err := execute(t, append([]string{"lines", dir, "--limit", "1"}, common...)...)
	if err != nil {
		t.Fatal(err)
	}
	if !mini.Exists("filestream:checkpoint:job") {
		t.Fatalf("checkpoint key missing, have %v", mini.Keys())
	}
	rest, err := execute(t, append([]string{"lines", dir}, common...)...)
	if err != nil {
		t.Fatal(err)
	}
	if got := append(texts(t, first), texts(t, rest)...); !reflect.DeepEqual(got, []string{"x", "y", "z"}) {
		t.Errorf("combined runs = %v", got)
	}
}

func TestConfigFile(t *testing.T) {
	dir := fixtureDir(t)
	cfgPath := filepath.Join(t.TempDir(), "filestream.yml")
	content := "source:\n  base_uri: " + dir + "\n  patterns: [\"*.csv\"]\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	recs, err := execute(t, "lines", "--config", cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if got := texts(t, recs); !reflect.DeepEqual(got, []string{"col"}) {
		t.Errorf("got %v", got)
	}
}

func TestInvalidInvocations(t *testing.T) {
	dir := fixtureDir(t)
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no base uri", []string{"lines"}, "base_uri is required"},
		{"key without store", []string{"lines", dir, "--checkpoint-key", "k"}, "needs either dir or redis.addr"},
		{"two stores", []string{"lines", dir, "--checkpoint-key", "k", "--checkpoint-dir", dir, "--redis-addr", "localhost:1"}, "mutually exclusive"},
		{"bad encoding", []string{"lines", dir, "--encoding", "klingon"}, "unknown text encoding"},
		{"bad compression", []string{"read", dir, "--compression", "rar"}, "unknown codec"},
		{"too many args", []string{"list", dir, dir}, "accepts at most 1 arg"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, tc.args...)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLines_ExportsMetrics(t *testing.T) {
	var exports atomic.Int32
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/v1/metrics" {
			exports.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	dir := fixtureDir(t)
	endpoint := strings.TrimPrefix(collector.URL, "http://")
	recs, err := execute(t, "lines", dir, "-p", "*.txt", "--metrics-endpoint", endpoint)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records", len(recs))
	}
	if exports.Load() == 0 {
		t.Error("expected the final collection to be exported on exit")
	}
}

func TestVersion(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "filestream ") {
		t.Errorf("unexpected output %q", out.String())
	}
}
