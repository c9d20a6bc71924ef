// Package api wraps item collections in the versioned response envelope
// served to API clients.
package api

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Version is the envelope protocol version.
const Version = "1.0"

// Item is anything that can be listed in an envelope.
type Item interface {
	Kind() string
}

// Envelope is {apiVersion, data: {kind, id, currentItemCount, items}}.
// The count always equals the number of items; use AddItem to append.
type Envelope[T Item] struct {
	kind    string
	id      string
	updated *time.Time
	count   int
	items   []T

	Warning string
	Meta    map[string]any
}

// New builds an envelope whose kind comes from T.
func New[T Item](id string, items []T) *Envelope[T] {
	var zero T
	if items == nil {
		items = []T{}
	}
	return &Envelope[T]{
		kind:  zero.Kind(),
		id:    id,
		count: len(items),
		items: items,
	}
}

// AddItem appends item and updates the count.
func (e *Envelope[T]) AddItem(item T) {
	e.items = append(e.items, item)
	e.count = len(e.items)
}

// SetUpdated records when the collection was last changed.
func (e *Envelope[T]) SetUpdated(t time.Time) {
	e.updated = &t
}

func (e *Envelope[T]) Kind() string        { return e.kind }
func (e *Envelope[T]) ID() string          { return e.id }
func (e *Envelope[T]) Count() int          { return e.count }
func (e *Envelope[T]) Items() []T          { return slices.Clone(e.items) }
func (e *Envelope[T]) Updated() *time.Time { return e.updated }

type collection[T Item] struct {
	Kind             string     `json:"kind"`
	ID               string     `json:"id"`
	Updated          *time.Time `json:"updated,omitempty"`
	CurrentItemCount int        `json:"currentItemCount"`
	Items            []T        `json:"items"`
}

type wireEnvelope[T Item] struct {
	APIVersion string         `json:"apiVersion"`
	Data       collection[T]  `json:"data"`
	Warning    string         `json:"warning,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// MarshalJSON panics if the count and the items have diverged.
func (e *Envelope[T]) MarshalJSON() ([]byte, error) {
	if e.count != len(e.items) {
		panic(fmt.Sprintf("api: %s envelope count %d != %d items", e.kind, e.count, len(e.items)))
	}
	return json.Marshal(wireEnvelope[T]{
		APIVersion: Version,
		Data: collection[T]{
			Kind:             e.kind,
			ID:               e.id,
			Updated:          e.updated,
			CurrentItemCount: e.count,
			Items:            e.items,
		},
		Warning: e.Warning,
		Meta:    e.Meta,
	})
}

// UnmarshalJSON accepts envelopes produced by MarshalJSON and rejects
// version, kind or count mismatches.
func (e *Envelope[T]) UnmarshalJSON(data []byte) error {
	var w wireEnvelope[T]
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var zero T
	switch {
	case w.APIVersion != Version:
		return fmt.Errorf("unsupported api version %q", w.APIVersion)
	case w.Data.Kind != zero.Kind():
		return fmt.Errorf("envelope kind %q, want %q", w.Data.Kind, zero.Kind())
	case w.Data.CurrentItemCount != len(w.Data.Items):
		return fmt.Errorf("envelope count %d != %d items", w.Data.CurrentItemCount, len(w.Data.Items))
	}
	items := w.Data.Items
	if items == nil {
		items = []T{}
	}
	*e = Envelope[T]{
		kind:    w.Data.Kind,
		id:      w.Data.ID,
		updated: w.Data.Updated,
		count:   len(items),
		items:   items,
		Warning: w.Warning,
		Meta:    w.Meta,
	}
	return nil
}

// Post wraps a single item: {apiVersion, data: item}.
type Post[T Item] struct {
	Data T
}

func (p Post[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		APIVersion string `json:"apiVersion"`
		Kind       string `json:"kind"`
		Data       T      `json:"data"`
	}{Version, p.Data.Kind(), p.Data})
}

// DecodePost reads a single item body written by a client.
func DecodePost[T Item](data []byte) (T, error) {
	var body struct {
		APIVersion string `json:"apiVersion"`
		Data       T      `json:"data"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return body.Data, err
	}
	if body.APIVersion != "" && body.APIVersion != Version {
		return body.Data, fmt.Errorf("unsupported api version %q", body.APIVersion)
	}
	return body.Data, nil
}

// PostList carries items of different kinds: {apiVersion, data: {currentItemCount,
// items: [{kind, data}]}}.
type PostList struct {
	items []Item
}

// Add appends item.
func (p *PostList) Add(item Item) {
	p.items = append(p.items, item)
}

// Len returns the number of items.
func (p *PostList) Len() int { return len(p.items) }

type kindedItem struct {
	Kind string `json:"kind"`
	Data Item   `json:"data"`
}

func (p *PostList) MarshalJSON() ([]byte, error) {
	items := make([]kindedItem, len(p.items))
	for i, it := range p.items {
		items[i] = kindedItem{Kind: it.Kind(), Data: it}
	}
	return json.Marshal(struct {
		APIVersion string `json:"apiVersion"`
		Data       struct {
			CurrentItemCount int          `json:"currentItemCount"`
			Items            []kindedItem `json:"items"`
		} `json:"data"`
	}{
		APIVersion: Version,
		Data: struct {
			CurrentItemCount int          `json:"currentItemCount"`
			Items            []kindedItem `json:"items"`
		}{len(items), items},
	})
}
