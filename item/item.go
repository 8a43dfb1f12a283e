// Package item defines the envelope every filestream stage emits: a payload
// plus an open metadata map that downstream stages merge into their own.
package item

import (
	"context"
	"maps"

	"github.com/kbukum/filestream/pipeline"
)

// Reserved metadata keys.
const (
	KeyFilePath = "file_path"
	KeyItemIdx  = "item_idx"
	KeyProtocol = "protocol"
	KeySource   = "source"
)

// Metadata is the open key-value map carried alongside a payload.
type Metadata map[string]any

// Clone returns a shallow copy. A nil map clones to an empty one.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+2)
	maps.Copy(out, m)
	return out
}

// Merge returns a new map holding upstream overlaid with own.
// Keys present in both take the value from own.
func Merge(upstream Metadata, own Metadata) Metadata {
	out := upstream.Clone()
	maps.Copy(out, own)
	return out
}

// Item is a payload with its metadata.
type Item[P any] struct {
	Payload  P        `json:"payload"`
	Metadata Metadata `json:"metadata"`
}

// New wraps payload with a copy of md.
func New[P any](payload P, md Metadata) Item[P] {
	return Item[P]{Payload: payload, Metadata: md.Clone()}
}

// FilePath returns the file_path metadata value, if set.
func (it Item[P]) FilePath() string {
	s, _ := it.Metadata[KeyFilePath].(string)
	return s
}

// URI adapts a source of bare URI strings into a source of URI items with
// empty metadata. Its checkpoint is the wrapped source's, unchanged.
func URI(src pipeline.Node[string]) pipeline.Node[Item[string]] {
	return &uriNode{source: src}
}

type uriNode struct {
	source pipeline.Node[string]
}

func (n *uriNode) Reset(ctx context.Context, state pipeline.State) error {
	return n.source.Reset(ctx, state)
}

func (n *uriNode) Next(ctx context.Context) (Item[string], bool, error) {
	uri, ok, err := n.source.Next(ctx)
	if err != nil || !ok {
		return Item[string]{}, false, err
	}
	return Item[string]{Payload: uri, Metadata: Metadata{}}, true, nil
}

func (n *uriNode) State() pipeline.State { return n.source.State() }

func (n *uriNode) Close() error { return n.source.Close() }
