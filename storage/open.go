package storage

import (
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"strings"
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/kbukum/filestream/codec"
	apperrors "github.com/kbukum/filestream/errors"
	"github.com/kbukum/filestream/logger"
)

// Mode selects how a Handle's content is interpreted.
type Mode string

// Open modes.
const (
	ModeText   Mode = "text"
	ModeBinary Mode = "binary"
)

// DefaultEncoding is the text encoding assumed when none is configured.
const DefaultEncoding = "utf-8"

// OpenOptions configures an Opener.
type OpenOptions struct {
	// Mode is text or binary. Empty means text.
	Mode Mode `yaml:"mode" mapstructure:"mode"`
	// Encoding is the character set of text files, by WHATWG label
	// (utf-8, latin1, windows-1252, shift_jis, ...). Ignored in binary mode.
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
	// Compression forces a codec by extension, or "disable". Empty infers
	// the codec from the URI.
	Compression string `yaml:"compression" mapstructure:"compression"`
	// Storage holds backend transport options.
	Storage Options `yaml:"storage" mapstructure:"storage"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (o *OpenOptions) ApplyDefaults() {
	if o.Mode == "" {
		o.Mode = ModeText
	}
	if o.Encoding == "" {
		o.Encoding = DefaultEncoding
	}
}

// Validate checks mode, encoding and compression override.
func (o *OpenOptions) Validate() error {
	if o.Mode != ModeText && o.Mode != ModeBinary {
		return apperrors.InvalidInput("mode", "must be text or binary")
	}
	if _, err := lookupEncoding(o.Encoding); err != nil {
		return err
	}
	if _, err := codec.Select("", o.Compression); err != nil {
		return err
	}
	return nil
}

// Opener is the universal open: it turns any supported URI into a Handle.
// It caches one FileSystem per protocol for its lifetime and is safe for
// concurrent use.
type Opener struct {
	opts    OpenOptions
	decoder encoding.Encoding
	log     *logger.Logger

	mu  sync.Mutex
	fss map[string]FileSystem
}

// NewOpener validates opts and returns an Opener.
func NewOpener(opts OpenOptions, log *logger.Logger) (*Opener, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	enc, _ := lookupEncoding(opts.Encoding)
	return &Opener{
		opts:    opts,
		decoder: enc,
		log:     logger.OrNop(log),
		fss:     make(map[string]FileSystem),
	}, nil
}

// Options returns the effective options.
func (o *Opener) Options() OpenOptions { return o.opts }

// FileSystem returns the cached FileSystem for protocol, creating it on
// first use.
func (o *Opener) FileSystem(protocol string) (FileSystem, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if fs, ok := o.fss[protocol]; ok {
		return fs, nil
	}
	fs, err := New(protocol, o.opts.Storage, o.log)
	if err != nil {
		return nil, err
	}
	o.fss[protocol] = fs
	return fs, nil
}

// Open opens uri and layers decompression and text decoding on top.
// Errors from the backend are returned unwrapped.
func (o *Opener) Open(ctx context.Context, uri string) (*Handle, error) {
	protocol, path := SplitProtocol(uri)
	fs, err := o.FileSystem(protocol)
	if err != nil {
		return nil, err
	}
	raw, err := fs.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	decompressed, err := codec.Wrap(raw, uri, o.opts.Compression)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}

	var r io.Reader = decompressed
	if o.opts.Mode == ModeText && o.decoder != nil {
		r = transform.NewReader(decompressed, o.decoder.NewDecoder())
	}
	return &Handle{
		uri:    uri,
		layers: []io.Closer{decompressed, raw},
		r:      bufio.NewReader(r),
	}, nil
}

// lookupEncoding resolves a WHATWG label. UTF-8 resolves to nil, meaning
// no transformation.
func lookupEncoding(label string) (encoding.Encoding, error) {
	if label == "" || strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "utf8") {
		return nil, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, apperrors.InvalidInput("encoding", "unknown text encoding "+label)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return nil, nil
	}
	return enc, nil
}

// Handle is an open resource. It is not safe for concurrent use.
type Handle struct {
	uri    string
	layers []io.Closer
	r      *bufio.Reader
	closed bool
}

// URI returns the URI the handle was opened with.
func (h *Handle) URI() string { return h.uri }

// Read implements io.Reader over the decoded content.
func (h *Handle) Read(p []byte) (int, error) {
	if h.closed {
		return 0, io.ErrClosedPipe
	}
	return h.r.Read(p)
}

// ReadAll reads the remaining content.
func (h *Handle) ReadAll() ([]byte, error) {
	if h.closed {
		return nil, io.ErrClosedPipe
	}
	return io.ReadAll(h.r)
}

// ReadLine returns the next line without its trailing "\n" (and a "\r"
// before it). At end of content it returns io.EOF. A final line without a
// newline is returned normally.
//
// Only "\n" ends a line. A bare "\r" (old Mac line endings) stays inside
// the line, so such a file reads as a single line.
func (h *Handle) ReadLine() (string, error) {
	if h.closed {
		return "", io.ErrClosedPipe
	}
	line, err := h.r.ReadString('\n')
	if err != nil && !stderrors.Is(err, io.EOF) {
		return "", err
	}
	if line == "" {
		return "", io.EOF
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

// Close closes every layer once. Later calls are no-ops.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	var errs []error
	for _, c := range h.layers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
