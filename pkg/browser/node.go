package browser

import (
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// Node is one element resolved on the current page. It is only valid while
// the page's DOM still contains it.
type Node interface {
	Text() (string, error)
	Attribute(name string) (string, bool, error)
	Find(selector string) (Node, bool, error)
	FindAll(selector string) ([]Node, error)
	Click() error
	Clear() error
	Input(text string) error
	EvalString(js string) (string, error)
}

type rodNode struct {
	el *rod.Element
}

func wrapElements(elements rod.Elements) []Node {
	nodes := make([]Node, 0, len(elements))
	for _, el := range elements {
		nodes = append(nodes, &rodNode{el: el})
	}
	return nodes
}

func (n *rodNode) Text() (string, error) {
	return n.el.Text()
}

func (n *rodNode) Attribute(name string) (string, bool, error) {
	value, err := n.el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

func (n *rodNode) Find(selector string) (Node, bool, error) {
	has, el, err := n.el.Has(selector)
	if err != nil {
		return nil, false, fmt.Errorf("find %q: %w", selector, err)
	}
	if !has {
		return nil, false, nil
	}
	return &rodNode{el: el}, true, nil
}

func (n *rodNode) FindAll(selector string) ([]Node, error) {
	elements, err := n.el.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("find all %q: %w", selector, err)
	}
	return wrapElements(elements), nil
}

func (n *rodNode) Click() error {
	return n.el.Click(proto.InputMouseButtonLeft, 1)
}

func (n *rodNode) Clear() error {
	if err := n.el.SelectAllText(); err != nil {
		return err
	}
	return n.el.Type(input.Backspace)
}

func (n *rodNode) Input(text string) error {
	return n.el.Input(text)
}

// EvalString runs a JS function definition with this bound to the element.
func (n *rodNode) EvalString(js string) (string, error) {
	res, err := n.el.Eval(js)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}
