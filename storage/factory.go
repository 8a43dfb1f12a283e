package storage

import (
	"sort"
	"sync"

	apperrors "github.com/kbukum/filestream/errors"
	"github.com/kbukum/filestream/logger"
)

// Factory creates the FileSystem for one protocol from transport options.
type Factory func(opts Options, log *logger.Logger) (FileSystem, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterFactory registers a backend factory for the given protocol.
// Backend packages call this in an init function.
func RegisterFactory(protocol string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[protocol] = f
}

// Protocols lists the registered protocols in sorted order.
func Protocols() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	out := make([]string, 0, len(factories))
	for p := range factories {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// New creates the FileSystem for protocol. An injected opts.Client is
// returned as is. Ensure the backend package has been imported so its
// factory is registered.
func New(protocol string, opts Options, log *logger.Logger) (FileSystem, error) {
	if opts.Client != nil {
		return opts.Client, nil
	}
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, apperrors.InvalidInput("storage", err.Error()).WithCause(err)
	}

	factoriesMu.RLock()
	f, ok := factories[protocol]
	factoriesMu.RUnlock()
	if !ok {
		return nil, apperrors.UnsupportedProtocol(protocol)
	}

	l := logger.OrNop(log).WithComponent("storage")
	l.Debug("initializing filesystem", logger.Fields(logger.FieldProtocol, protocol))
	fs, err := f(opts, l)
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.BackendUnavailable(protocol, err)
	}
	return fs, nil
}
