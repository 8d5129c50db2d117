package webclient

import (
	"context"
	"errors"
	"time"

	"wabot/pkg/browser"
)

type fakeNode struct {
	text     string
	attrs    map[string]string
	children map[string][]*fakeNode
	findErr  error
	evalOut  string
	evalErr  error
	clickErr error

	clicks  int
	cleared int
	typed   []string
	onClick func()
}

func (n *fakeNode) Text() (string, error) { return n.text, nil }

func (n *fakeNode) Attribute(name string) (string, bool, error) {
	value, ok := n.attrs[name]
	return value, ok, nil
}

func (n *fakeNode) Find(selector string) (browser.Node, bool, error) {
	if n.findErr != nil {
		return nil, false, n.findErr
	}
	matches := n.children[selector]
	if len(matches) == 0 {
		return nil, false, nil
	}
	return matches[0], true, nil
}

func (n *fakeNode) FindAll(selector string) ([]browser.Node, error) {
	return asNodes(n.children[selector]), nil
}

func (n *fakeNode) Click() error {
	n.clicks++
	if n.onClick != nil {
		n.onClick()
	}
	return n.clickErr
}

func (n *fakeNode) Clear() error {
	n.cleared++
	return nil
}

func (n *fakeNode) Input(text string) error {
	n.typed = append(n.typed, text)
	return nil
}

func (n *fakeNode) EvalString(string) (string, error) { return n.evalOut, n.evalErr }

// fakeDOM resolves page-level selectors from a map.
type fakeDOM struct {
	nodes   map[string][]*fakeNode
	errs    map[string]error
	waitErr error
}

func newFakeDOM() *fakeDOM {
	return &fakeDOM{nodes: map[string][]*fakeNode{}, errs: map[string]error{}}
}

func (d *fakeDOM) Find(_ context.Context, selector string) (browser.Node, bool, error) {
	if err := d.errs[selector]; err != nil {
		return nil, false, err
	}
	matches := d.nodes[selector]
	if len(matches) == 0 {
		return nil, false, nil
	}
	return matches[0], true, nil
}

func (d *fakeDOM) FindAll(_ context.Context, selector string) ([]browser.Node, error) {
	if err := d.errs[selector]; err != nil {
		return nil, err
	}
	return asNodes(d.nodes[selector]), nil
}

func (d *fakeDOM) Wait(ctx context.Context, selector string, _ time.Duration) (browser.Node, error) {
	if d.waitErr != nil {
		return nil, d.waitErr
	}
	node, ok, err := d.Find(ctx, selector)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, browser.ErrNotFound
	}
	return node, nil
}

func asNodes(in []*fakeNode) []browser.Node {
	out := make([]browser.Node, 0, len(in))
	for _, n := range in {
		out = append(out, n)
	}
	return out
}

var errDriver = errors.New("driver gone")

func row(title string, unread bool) *fakeNode {
	sel := DefaultSelectors()
	n := &fakeNode{children: map[string][]*fakeNode{
		sel.Title: {{attrs: map[string]string{"title": title}}},
	}}
	if unread {
		n.children[sel.UnreadBadge] = []*fakeNode{{text: "1"}}
	}
	return n
}

func message(meta, body string) *fakeNode {
	sel := DefaultSelectors()
	n := &fakeNode{children: map[string][]*fakeNode{}}
	if meta != "" {
		n.children[sel.MessageMeta] = []*fakeNode{{attrs: map[string]string{"data-pre-plain-text": meta}}}
	}
	if body != "<none>" {
		n.children[sel.MessageBody] = []*fakeNode{{text: body}}
	}
	return n
}
