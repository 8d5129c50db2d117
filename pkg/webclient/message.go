package webclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UnknownSender is used when the message metadata cannot be parsed.
const UnknownSender = "Unknown"

// Message is one inbound message read from an open conversation.
type Message struct {
	Conversation string `json:"conversation"`
	Sender       string `json:"sender"`
	Body         string `json:"body"`
	Marker       string `json:"marker"`
}

// Key identifies a physical message for deduplication.
func (m Message) Key() string {
	return m.Marker + "|" + m.Sender + "|" + m.Body
}

// Outcome tags an Extraction.
type Outcome int

const (
	OutcomeMessage Outcome = iota
	OutcomeSkip
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMessage:
		return "message"
	case OutcomeSkip:
		return "skip"
	default:
		return "error"
	}
}

// Skip reasons.
const (
	SkipNoMessages  = "no messages"
	SkipUnsupported = "unsupported message type"
	SkipEmptyBody   = "empty body"
	SkipReserved    = "reserved identity"
)

// Extraction is the result of reading a conversation's latest message:
// a Message, a Skip with a reason, or an Error.
type Extraction struct {
	Outcome Outcome
	Message Message
	Reason  string
	Err     error
}

func extracted(msg Message) Extraction { return Extraction{Outcome: OutcomeMessage, Message: msg} }

func skipped(reason string) Extraction { return Extraction{Outcome: OutcomeSkip, Reason: reason} }

func failed(err error) Extraction { return Extraction{Outcome: OutcomeError, Err: err} }

var errDetached = errors.New("conversation is not attached to the page")

// Open focuses conv and waits for its message list to render. The caller
// must hold the session focus lock.
func (c *Client) Open(ctx context.Context, conv Conversation) error {
	if conv.node == nil {
		return errDetached
	}

	if err := conv.node.Click(); err != nil {
		return fmt.Errorf("open conversation %q: %w", conv.Title, err)
	}
	if _, err := c.dom.Wait(ctx, c.sel.MessageList, c.lookupTimeout); err != nil {
		return fmt.Errorf("wait for messages of %q: %w", conv.Title, err)
	}
	return nil
}

// LatestMessage opens conv and reads its last message. The caller must hold
// the session focus lock.
func (c *Client) LatestMessage(ctx context.Context, conv Conversation) Extraction {
	if err := c.Open(ctx, conv); err != nil {
		return failed(err)
	}

	messages, err := c.dom.FindAll(ctx, c.sel.Message)
	if err != nil {
		return failed(fmt.Errorf("list messages of %q: %w", conv.Title, err))
	}
	if len(messages) == 0 {
		return skipped(SkipNoMessages)
	}
	last := messages[len(messages)-1]

	bodyNode, ok, err := last.Find(c.sel.MessageBody)
	if err != nil {
		return failed(fmt.Errorf("find message body: %w", err))
	}
	if !ok {
		return skipped(SkipUnsupported)
	}
	body, err := bodyNode.Text()
	if err != nil {
		return failed(fmt.Errorf("read message body: %w", err))
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return skipped(SkipEmptyBody)
	}

	marker := ""
	if metaNode, ok, err := last.Find(c.sel.MessageMeta); err == nil && ok {
		if value, ok, err := metaNode.Attribute("data-pre-plain-text"); err == nil && ok {
			marker = strings.TrimSpace(value)
		}
	}

	sender := parseSender(marker)
	if c.reserved != "" && strings.EqualFold(sender, c.reserved) {
		return skipped(SkipReserved)
	}

	return extracted(Message{
		Conversation: conv.Title,
		Sender:       sender,
		Body:         body,
		Marker:       marker,
	})
}

// parseSender reads the sender from "[time, date] sender: ". Anything that
// does not fit yields UnknownSender.
func parseSender(meta string) string {
	_, rest, found := strings.Cut(meta, "] ")
	if !found {
		return UnknownSender
	}

	name, _, found := strings.Cut(rest, ":")
	name = strings.TrimSpace(name)
	if !found || name == "" {
		return UnknownSender
	}
	return name
}
