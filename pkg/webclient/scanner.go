package webclient

import (
	"context"
	"fmt"
	"strings"

	"wabot/pkg/browser"
)

// Conversation references one chat row in the current DOM. It must be
// re-resolved every poll and never kept across polls.
type Conversation struct {
	Title    string
	Position int

	node browser.Node
}

// NewConversation wraps a resolved row node.
func NewConversation(title string, position int, node browser.Node) Conversation {
	return Conversation{Title: title, Position: position, node: node}
}

// UnreadConversations lists rows carrying an unread badge in page order.
func (c *Client) UnreadConversations(ctx context.Context) ([]Conversation, error) {
	rows, err := c.dom.FindAll(ctx, c.sel.ConversationRow)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	unread := make([]Conversation, 0, len(rows))
	for position, row := range rows {
		_, hasBadge, err := row.Find(c.sel.UnreadBadge)
		if err != nil {
			c.log.Debug("Unread badge lookup failed", "position", position, "error", err)
			continue
		}
		if !hasBadge {
			continue
		}

		unread = append(unread, NewConversation(conversationTitle(row, c.sel.Title), position, row))
	}

	return unread, nil
}

func conversationTitle(row browser.Node, selector string) string {
	titleNode, ok, err := row.Find(selector)
	if err != nil || !ok {
		return ""
	}

	if title, ok, err := titleNode.Attribute("title"); err == nil && ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}

	text, err := titleNode.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
