package webclient

import "strings"

// Selectors are the CSS lookups for the target page's markup. They are
// expected to drift with the site and can be overridden from config.
type Selectors struct {
	QRMarker        string
	QRCanvas        string
	ChatList        string
	ConversationRow string
	UnreadBadge     string
	Title           string
	MessageList     string
	Message         string
	MessageMeta     string
	MessageBody     string
	Composer        string
	SendButton      string
}

// DefaultSelectors targets the current WhatsApp Web markup.
func DefaultSelectors() Selectors {
	return Selectors{
		QRMarker:        `div[data-ref]`,
		QRCanvas:        `div[data-ref] canvas`,
		ChatList:        `#pane-side`,
		ConversationRow: `#pane-side div[role="listitem"]`,
		UnreadBadge:     `span[aria-label*="unread message"]`,
		Title:           `span[title]`,
		MessageList:     `#main div[role="application"]`,
		Message:         `#main div.message-in, #main div.message-out`,
		MessageMeta:     `div.copyable-text[data-pre-plain-text]`,
		MessageBody:     `span.selectable-text`,
		Composer:        `#main footer div[contenteditable="true"]`,
		SendButton:      `#main footer button[aria-label="Send"]`,
	}
}

// WithOverrides returns a copy with the non-empty overrides applied. Keys are
// the snake_case field names, e.g. "unread_badge".
func (s Selectors) WithOverrides(overrides map[string]string) Selectors {
	fields := map[string]*string{
		"qr_marker":        &s.QRMarker,
		"qr_canvas":        &s.QRCanvas,
		"chat_list":        &s.ChatList,
		"conversation_row": &s.ConversationRow,
		"unread_badge":     &s.UnreadBadge,
		"title":            &s.Title,
		"message_list":     &s.MessageList,
		"message":          &s.Message,
		"message_meta":     &s.MessageMeta,
		"message_body":     &s.MessageBody,
		"composer":         &s.Composer,
		"send_button":      &s.SendButton,
	}

	for key, value := range overrides {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if field, ok := fields[strings.ToLower(strings.TrimSpace(key))]; ok {
			*field = value
		}
	}
	return s
}
