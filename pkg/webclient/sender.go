package webclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrComposerMissing   = errors.New("composer not found")
	ErrSendButtonMissing = errors.New("send control not found")
)

// Send types text into the open conversation's composer and submits it.
// It reports false when the reply could not be delivered yet.
func (c *Client) Send(ctx context.Context, text string) bool {
	if err := c.deliver(ctx, text); err != nil {
		c.log.Warn("Reply not delivered", "error", err)
		return false
	}
	return true
}

func (c *Client) deliver(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("reply text is empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for send slot: %w", err)
	}

	composer, ok, err := c.dom.Find(ctx, c.sel.Composer)
	if err != nil {
		return fmt.Errorf("find composer: %w", err)
	}
	if !ok {
		return ErrComposerMissing
	}

	if err := composer.Click(); err != nil {
		return fmt.Errorf("focus composer: %w", err)
	}
	if err := composer.Clear(); err != nil {
		return fmt.Errorf("clear composer: %w", err)
	}
	if err := composer.Input(text); err != nil {
		return fmt.Errorf("type reply: %w", err)
	}

	button, ok, err := c.dom.Find(ctx, c.sel.SendButton)
	if err != nil {
		return fmt.Errorf("find send control: %w", err)
	}
	if !ok {
		return ErrSendButtonMissing
	}
	if err := button.Click(); err != nil {
		return fmt.Errorf("click send: %w", err)
	}
	return nil
}
