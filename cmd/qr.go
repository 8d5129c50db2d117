package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"wabot/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	qrAddr     string
	qrWatch    bool
	qrInterval time.Duration
)

var errQRUnavailable = errors.New("qr code not available")

var qrCmd = &cobra.Command{
	Use:   "qr",
	Short: "Render the login QR code of a running instance in the terminal",
	Long:  "Fetches the login QR code from a running `wabot run` and draws it in the terminal. With --watch, redraws as the code refreshes until the session is logged in.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		client := &http.Client{Timeout: 15 * time.Second}
		base := strings.TrimRight(qrAddr, "/")
		out := cmd.OutOrStdout()

		var last string
		for {
			done, rendered, err := showLogin(ctx, client, base, out, last)
			if err != nil {
				return err
			}
			last = rendered
			if done || !qrWatch {
				return nil
			}

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(qrInterval):
			}
		}
	},
}

// showLogin prints the current login state of the instance at base. It
// skips redrawing a QR code identical to last and reports whether the
// session is logged in.
func showLogin(ctx context.Context, client *http.Client, base string, out io.Writer, last string) (bool, string, error) {
	status, err := fetchLoginStatus(ctx, client, base)
	if err != nil {
		return false, last, err
	}

	switch status {
	case "authenticated":
		fmt.Fprintln(out, ui.RenderStatus(status, "session is logged in"))
		return true, last, nil
	case "unauthenticated":
		image, err := fetchQRImage(ctx, client, base)
		if errors.Is(err, errQRUnavailable) {
			fmt.Fprintln(out, ui.RenderStatus("qr_unavailable", "waiting for the QR code to render"))
			return false, last, nil
		}
		if err != nil {
			return false, last, err
		}
		rendered, err := ui.RenderQR(image, "Scan with the phone app to log in")
		if err != nil {
			return false, last, err
		}
		if rendered != last {
			fmt.Fprintln(out, rendered)
		}
		return false, rendered, nil
	case "qr_unavailable":
		fmt.Fprintln(out, ui.RenderStatus(status, "waiting for the QR code to render"))
	default:
		fmt.Fprintln(out, ui.RenderStatus(status, "page not ready yet"))
	}
	return false, last, nil
}

func init() {
	rootCmd.AddCommand(qrCmd)
	qrCmd.Flags().StringVar(&qrAddr, "addr", "http://127.0.0.1:10000", "base URL of the running instance")
	qrCmd.Flags().BoolVarP(&qrWatch, "watch", "w", false, "keep redrawing until logged in")
	qrCmd.Flags().DurationVar(&qrInterval, "interval", 5*time.Second, "refresh interval with --watch")
}

func fetchLoginStatus(ctx context.Context, client *http.Client, base string) (string, error) {
	body, code, err := httpGet(ctx, client, base+"/")
	if err != nil {
		return "", err
	}

	var payload struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode login status: %w", err)
	}
	if code != http.StatusOK {
		return "", fmt.Errorf("login status: %s (HTTP %d)", payload.Error, code)
	}
	return payload.Status, nil
}

func fetchQRImage(ctx context.Context, client *http.Client, base string) ([]byte, error) {
	body, code, err := httpGet(ctx, client, base+"/qr.png")
	if err != nil {
		return nil, err
	}
	switch code {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, errQRUnavailable
	default:
		return nil, fmt.Errorf("fetch qr: HTTP %d", code)
	}
}

func httpGet(ctx context.Context, client *http.Client, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", url, err)
	}
	return body, resp.StatusCode, nil
}
