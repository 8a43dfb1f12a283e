package fileio_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/kbukum/filestream/errors"
	"github.com/kbukum/filestream/fileio"
	"github.com/kbukum/filestream/item"
	"github.com/kbukum/filestream/logger"
	"github.com/kbukum/filestream/observability"
	"github.com/kbukum/filestream/observability/metrictest"
	"github.com/kbukum/filestream/pipeline"
	"github.com/kbukum/filestream/storage"
)

func newLineStreamer(t *testing.T, src pipeline.Node[item.Item[string]], fs storage.FileSystem) *fileio.LineStreamer {
	t.Helper()
	s, err := fileio.NewLineStreamer(src, openOpts(fs), logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func uris(paths ...string) pipeline.Node[item.Item[string]] {
	return item.URI(pipeline.FromSlice(paths))
}

func TestLineStreamer_ListedFiles(t *testing.T) {
	fs := newStore(map[string]string{"data/a.txt": "x\ny\n", "data/b.txt": "z\n"})
	s := newLineStreamer(t, fileio.NewLister(base, listerOpts(fs, "*.txt"), logger.Nop()), fs)

	got := collectLines(t, s)
	want := []line{
		{"x", "memory://data/a.txt", 0},
		{"y", "memory://data/a.txt", 1},
		{"z", "memory://data/b.txt", 0},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLineStreamer_LineEndings(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"trailing newline", "a\nb\n", []string{"a", "b"}},
		{"no trailing newline", "a\nb", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"blank lines are kept", "a\n\nb\n", []string{"a", "", "b"}},
		{"single newline", "\n", []string{""}},
		{"empty file", "", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fs := newStore(map[string]string{"data/f.txt": tc.content})
			got := collectLines(t, newLineStreamer(t, uris("memory://data/f.txt"), fs))
			var texts []string
			for i, l := range got {
				if l.idx != i {
					t.Errorf("line %d has item_idx %d", i, l.idx)
				}
				texts = append(texts, l.text)
			}
			if !reflect.DeepEqual(texts, tc.want) {
				t.Errorf("got %q, want %q", texts, tc.want)
			}
		})
	}
}

func TestLineStreamer_SkipsBadFiles(t *testing.T) {
	fs := &faultyFS{
		FileSystem: newStore(map[string]string{
			"data/empty.txt":  "",
			"data/broken.txt": "ok1\nok2\npartial",
			"data/good.txt":   "g1\ng2\n",
		}),
		failRead: map[string]bool{"data/broken.txt": true},
	}
	s := newLineStreamer(t, uris(
		"memory://data/missing.txt",
		"memory://data/empty.txt",
		"memory://data/broken.txt",
		"nope://bucket/key",
		"memory://data/good.txt",
	), fs)

	got := collectLines(t, s)
	want := []line{
		{"ok1", "memory://data/broken.txt", 0},
		{"ok2", "memory://data/broken.txt", 1},
		{"g1", "memory://data/good.txt", 0},
		{"g2", "memory://data/good.txt", 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if fs.OpenHandles() != 0 {
		t.Errorf("%d handles left open", fs.OpenHandles())
	}
}

func TestLineStreamer_EmptyGzipIsNotABadFile(t *testing.T) {
	fs := newStore(map[string]string{"data/good.txt": "g1\n"})
	fs.Put("data/empty.txt.gz", nil)

	var logs bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "error", Format: "json"}, "test", &logs)
	s, err := fileio.NewLineStreamer(uris("memory://data/empty.txt.gz", "memory://data/good.txt"), openOpts(fs), log)
	if err != nil {
		t.Fatal(err)
	}

	got := collectLines(t, s)
	want := []line{{"g1", "memory://data/good.txt", 0}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if logs.Len() != 0 {
		t.Errorf("empty compressed file should not be logged as an error: %s", logs.String())
	}
}

func TestLineStreamer_LongRunOfBadFiles(t *testing.T) {
	fs := newStore(map[string]string{"data/good.txt": "only\n"})
	paths := make([]string, 0, 10001)
	for i := 0; i < 10000; i++ {
		paths = append(paths, fmt.Sprintf("memory://data/missing-%d.txt", i))
	}
	paths = append(paths, "memory://data/good.txt")

	got := collectLines(t, newLineStreamer(t, uris(paths...), fs))
	if len(got) != 1 || got[0].text != "only" {
		t.Errorf("got %v", got)
	}
}

func TestLineStreamer_MetadataMerge(t *testing.T) {
	fs := newStore(map[string]string{"data/a.txt": "x\n"})
	src := pipeline.FromSlice([]item.Item[string]{{
		Payload: "memory://data/a.txt",
		Metadata: item.Metadata{
			"tenant":         "t1",
			item.KeyFilePath: "stale",
			item.KeyItemIdx:  99,
			item.KeyProtocol: "memory",
		},
	}})
	s := newLineStreamer(t, src, fs)
	it, ok, err := s.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("Next = %v, %v", ok, err)
	}
	want := item.Metadata{
		"tenant":         "t1",
		item.KeyFilePath: "memory://data/a.txt",
		item.KeyItemIdx:  0,
		item.KeyProtocol: "memory",
	}
	if !reflect.DeepEqual(it.Metadata, want) {
		t.Errorf("metadata = %v, want %v", it.Metadata, want)
	}
}

func TestLineStreamer_FromURIs(t *testing.T) {
	fs := newStore(map[string]string{"data/a.txt": "x\n"})
	s, err := fileio.NewLineStreamerFromURIs(pipeline.FromSlice([]string{"memory://data/a.txt"}), openOpts(fs), logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	got := collectLines(t, s)
	if !reflect.DeepEqual(got, []line{{"x", "memory://data/a.txt", 0}}) {
		t.Errorf("got %v", got)
	}
}

func TestLineStreamer_ResumeEquivalence(t *testing.T) {
	fs := newStore(map[string]string{
		"data/a.txt": "a0\na1\na2\n",
		"data/b.txt": "",
		"data/c.txt": "c0\n",
		"data/d.txt": "d0\nd1",
	})
	ctx := context.Background()
	build := func() *fileio.LineStreamer {
		return newLineStreamer(t, fileio.NewLister(base, listerOpts(fs, "*.txt"), logger.Nop()), fs)
	}
	full, err := pipeline.Collect[item.Item[string]](ctx, build())
	if err != nil {
		t.Fatal(err)
	}
	if len(full) != 6 {
		t.Fatalf("expected 6 lines, got %d", len(full))
	}

	for n := 0; n <= len(full); n++ {
		s := build()
		if _, err := pipeline.Take[item.Item[string]](ctx, s, n); err != nil {
			t.Fatal(err)
		}
		saved := checkpoint(t, s.State())
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}

		resumed := build()
		if err := resumed.Reset(ctx, saved); err != nil {
			t.Fatalf("n=%d: reset: %v", n, err)
		}
		rest, err := pipeline.Collect[item.Item[string]](ctx, resumed)
		if err != nil {
			t.Fatal(err)
		}
		want := full[n:]
		if len(rest) != len(want) {
			t.Fatalf("n=%d: resumed %d items, want %d", n, len(rest), len(want))
		}
		for i := range rest {
			if !reflect.DeepEqual(rest[i], want[i]) {
				t.Errorf("n=%d item %d: got %+v, want %+v", n, i, rest[i], want[i])
			}
		}
	}
	if fs.OpenHandles() != 0 {
		t.Errorf("%d handles left open", fs.OpenHandles())
	}
}

func TestLineStreamer_State(t *testing.T) {
	fs := newStore(map[string]string{"data/a.txt": "x\ny\n"})
	ctx := context.Background()
	s := newLineStreamer(t, uris("memory://data/a.txt"), fs)
	defer s.Close()

	st := s.State()
	if st.Has(fileio.KeyCurrentFile) {
		t.Errorf("fresh streamer should have no current file, got %v", st)
	}

	if _, _, err := s.Next(ctx); err != nil {
		t.Fatal(err)
	}
	st = s.State()
	if f, _ := st.String(fileio.KeyCurrentFile); f != "memory://data/a.txt" {
		t.Errorf("current_file = %q", f)
	}
	if n, _ := st.Int(fileio.KeyCurrentLine); n != 1 {
		t.Errorf("current_line = %d, want 1", n)
	}
	if idx, _ := st[pipeline.KeySource].(pipeline.State).Int(pipeline.KeyCurrentIdx); idx != 1 {
		t.Errorf("source current_idx = %d, want 1", idx)
	}

	for {
		_, ok, err := s.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
	}
	if s.State().Has(fileio.KeyCurrentFile) {
		t.Error("current file should be cleared at end of file")
	}
}

func TestLineStreamer_ResetInvalidState(t *testing.T) {
	fs := newStore(map[string]string{"data/a.txt": "x\n"})
	tests := []struct {
		name  string
		state pipeline.State
	}{
		{"negative line", pipeline.State{fileio.KeyCurrentFile: "memory://data/a.txt", fileio.KeyCurrentLine: -1}},
		{"file is not a string", pipeline.State{fileio.KeyCurrentFile: 42}},
		{"metadata is not a map", pipeline.State{fileio.KeyMetadata: "nope"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newLineStreamer(t, uris("memory://data/a.txt"), fs)
			err := s.Reset(context.Background(), tc.state)
			if apperrors.CodeOf(err) != apperrors.ErrCodeInvalidState {
				t.Errorf("expected INVALID_STATE, got %v", err)
			}
		})
	}
}

func TestLineStreamer_ResumeOnChangedFile(t *testing.T) {
	fs := newStore(map[string]string{"data/a.txt": "x\n", "data/b.txt": "b0\n"})
	s := newLineStreamer(t, uris("memory://data/a.txt", "memory://data/b.txt"), fs)
	state := pipeline.State{
		pipeline.KeySource:    pipeline.State{pipeline.KeyCurrentIdx: 1},
		fileio.KeyCurrentFile: "memory://data/a.txt",
		fileio.KeyCurrentLine: 5,
		fileio.KeyMetadata:    map[string]any{},
	}
	if err := s.Reset(context.Background(), state); err != nil {
		t.Fatal(err)
	}
	got := collectLines(t, s)
	if !reflect.DeepEqual(got, []line{{"b0", "memory://data/b.txt", 0}}) {
		t.Errorf("got %v", got)
	}
	if fs.OpenHandles() != 0 {
		t.Errorf("%d handles left open", fs.OpenHandles())
	}
}

func TestLineStreamer_ReleasesHandles(t *testing.T) {
	fs := newStore(map[string]string{"data/a.txt": "x\ny\n"})
	ctx := context.Background()

	t.Run("on close", func(t *testing.T) {
		s := newLineStreamer(t, uris("memory://data/a.txt"), fs)
		if _, _, err := s.Next(ctx); err != nil {
			t.Fatal(err)
		}
		if fs.OpenHandles() != 1 {
			t.Fatalf("expected 1 open handle, got %d", fs.OpenHandles())
		}
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
		if fs.OpenHandles() != 0 {
			t.Errorf("%d handles left open", fs.OpenHandles())
		}
	})

	t.Run("on reset", func(t *testing.T) {
		s := newLineStreamer(t, uris("memory://data/a.txt"), fs)
		defer s.Close()
		if _, _, err := s.Next(ctx); err != nil {
			t.Fatal(err)
		}
		if err := s.Reset(ctx, nil); err != nil {
			t.Fatal(err)
		}
		if fs.OpenHandles() != 0 {
			t.Errorf("%d handles left open", fs.OpenHandles())
		}
		it, _, err := s.Next(ctx)
		if err != nil || it.Payload != "x" {
			t.Errorf("after reset got %q, %v", it.Payload, err)
		}
	})
}

func TestLineStreamer_ContextCancelled(t *testing.T) {
	fs := newStore(map[string]string{"data/a.txt": "x\n"})
	s := newLineStreamer(t, uris("memory://data/a.txt"), fs)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := s.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLineStreamer_Metrics(t *testing.T) {
	m, reader := metrictest.New(t)
	fs := &faultyFS{
		FileSystem: newStore(map[string]string{
			"data/empty.txt":  "",
			"data/broken.txt": "ok1\nok2\npartial",
			"data/good.txt":   "g1\ng2\n",
		}),
		failRead: map[string]bool{"data/broken.txt": true},
	}
	s := newLineStreamer(t, uris(
		"memory://data/missing.txt",
		"memory://data/empty.txt",
		"memory://data/broken.txt",
		"nope://bucket/key",
		"memory://data/good.txt",
	), fs).WithMetrics(m)

	if got := len(collectLines(t, s)); got != 4 {
		t.Fatalf("expected 4 lines, got %d", got)
	}

	stage := attribute.String(observability.AttrStage, "line_streamer")
	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{"lines emitted", reader.Sum(observability.MetricItemsEmitted, stage), 4},
		{"files opened", reader.Sum(observability.MetricFilesOpened, stage), 3},
		{"skipped on open", reader.Sum(observability.MetricFilesSkipped, stage,
			attribute.String(observability.AttrReason, observability.ReasonOpenFailed)), 2},
		{"skipped mid-read", reader.Sum(observability.MetricFilesSkipped, stage,
			attribute.String(observability.AttrReason, observability.ReasonReadFailed)), 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %d, want %d", tc.got, tc.want)
			}
		})
	}
}
