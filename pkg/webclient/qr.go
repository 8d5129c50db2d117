package webclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

const pngDataURLPrefix = "data:image/png;base64,"

// QRCode returns the login QR as a base64 PNG payload. ok is false when the
// canvas is absent, not yet rendered, or empty; callers retry later. err is
// reserved for driver failures.
func (c *Client) QRCode(ctx context.Context) (code string, ok bool, err error) {
	canvas, found, err := c.dom.Find(ctx, c.sel.QRCanvas)
	if err != nil {
		return "", false, fmt.Errorf("find qr canvas: %w", err)
	}
	if !found {
		return "", false, nil
	}

	dataURL, err := canvas.EvalString(`() => this.toDataURL("image/png")`)
	if err != nil {
		// The canvas can be swapped out between lookup and eval while the QR refreshes.
		c.log.Debug("QR canvas not readable", "error", err)
		return "", false, nil
	}

	payload, found := strings.CutPrefix(strings.TrimSpace(dataURL), pngDataURLPrefix)
	if !found || payload == "" {
		return "", false, nil
	}
	return payload, true, nil
}

// QRImage is QRCode decoded to raw PNG bytes.
func (c *Client) QRImage(ctx context.Context) ([]byte, bool, error) {
	code, ok, err := c.QRCode(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}

	data, err := base64.StdEncoding.DecodeString(code)
	if err != nil {
		return nil, false, fmt.Errorf("decode qr payload: %w", err)
	}
	return data, true, nil
}
