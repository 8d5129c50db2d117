package cmd

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wabot/pkg/reply"
)

func TestIsExitCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "exit", want: true},
		{input: " quit ", want: true},
		{input: ":q", want: true},
		{input: "EXIT", want: true},
		{input: "hello", want: false},
		{input: "quit now", want: false},
	}

	for _, tt := range tests {
		if got := isExitCommand(tt.input); got != tt.want {
			t.Fatalf("isExitCommand(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestResolveText(t *testing.T) {
	original := replyText
	t.Cleanup(func() { replyText = original })

	replyText = ""
	if got := resolveText([]string{" hello ", "there"}); got != "hello  there" {
		t.Fatalf("resolveText(args) = %q", got)
	}

	replyText = "  from flag "
	if got := resolveText([]string{"ignored"}); got != "from flag" {
		t.Fatalf("resolveText(flag) = %q, want %q", got, "from flag")
	}
}

func TestRunInteractive(t *testing.T) {
	responder := reply.NewRuleResponder(reply.NewEngine(reply.DefaultRules(), reply.DefaultFallback), nil)

	in := strings.NewReader("hello\n\nthanks a lot\nexit\nbye\n")
	var out bytes.Buffer
	if err := runInteractive(context.Background(), in, &out, responder); err != nil {
		t.Fatalf("runInteractive() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"greeting", "thanks"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "goodbye") {
		t.Fatalf("input after exit was processed:\n%s", got)
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("WABOT_TEST_ENV_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("WABOT_TEST_ENV_VALUE", "")
	os.Unsetenv("WABOT_TEST_ENV_VALUE")

	if err := loadEnvFiles([]string{filepath.Join(dir, "missing.env"), path}); err != nil {
		t.Fatalf("loadEnvFiles() error = %v", err)
	}
	if got := os.Getenv("WABOT_TEST_ENV_VALUE"); got != "from-file" {
		t.Fatalf("WABOT_TEST_ENV_VALUE = %q, want %q", got, "from-file")
	}
}

func TestShowLogin(t *testing.T) {
	tests := []struct {
		name     string
		login    string
		qr       []byte
		wantDone bool
		wantOut  string
		wantErr  bool
	}{
		{name: "authenticated", login: `{"status":"authenticated"}`, wantDone: true, wantOut: "authenticated"},
		{name: "qr not rendered", login: `{"status":"unauthenticated","qr":"x"}`, wantOut: "qr_unavailable"},
		{name: "indeterminate", login: `{"status":"indeterminate"}`, wantOut: "page not ready"},
		{name: "qr image", login: `{"status":"unauthenticated","qr":"x"}`, qr: qrPNG(t), wantOut: "Scan with the phone app"},
		{name: "bad payload", login: `not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/" {
					http.NotFound(w, r)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.login))
			})
			mux.HandleFunc("/qr.png", func(w http.ResponseWriter, r *http.Request) {
				if tt.qr == nil {
					http.Error(w, `{"error":"qr code not available"}`, http.StatusNotFound)
					return
				}
				w.Header().Set("Content-Type", "image/png")
				w.Write(tt.qr)
			})
			server := httptest.NewServer(mux)
			defer server.Close()

			var out bytes.Buffer
			done, _, err := showLogin(context.Background(), server.Client(), server.URL, &out, "")
			if tt.wantErr {
				if err == nil {
					t.Fatal("showLogin() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("showLogin() error = %v", err)
			}
			if done != tt.wantDone {
				t.Fatalf("showLogin() done = %v, want %v", done, tt.wantDone)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Fatalf("output missing %q:\n%s", tt.wantOut, out.String())
			}
		})
	}
}

func TestShowLoginSkipsUnchangedQR(t *testing.T) {
	data := qrPNG(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"unauthenticated","qr":"x"}`))
	})
	mux.HandleFunc("/qr.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	var first bytes.Buffer
	_, last, err := showLogin(context.Background(), server.Client(), server.URL, &first, "")
	if err != nil {
		t.Fatalf("showLogin() error = %v", err)
	}

	var second bytes.Buffer
	if _, _, err := showLogin(context.Background(), server.Client(), server.URL, &second, last); err != nil {
		t.Fatalf("showLogin() error = %v", err)
	}
	if second.Len() != 0 {
		t.Fatalf("unchanged QR redrawn:\n%s", second.String())
	}
}

func TestFetchLoginStatusServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"browser session unavailable"}`))
	}))
	defer server.Close()

	_, err := fetchLoginStatus(context.Background(), server.Client(), server.URL)
	if err == nil || !strings.Contains(err.Error(), "browser session unavailable") {
		t.Fatalf("fetchLoginStatus() error = %v", err)
	}
}

func TestVersionString(t *testing.T) {
	if got := versionString(); !strings.HasPrefix(got, "wabot dev") {
		t.Fatalf("versionString() = %q", got)
	}
}

// qrPNG draws a 21x21 symbol with the three finder patterns at 4px per module.
func qrPNG(t *testing.T) []byte {
	t.Helper()

	const n, scale, margin = 21, 4, 16
	dark := func(r, c int) bool {
		for _, origin := range [][2]int{{0, 0}, {0, n - 7}, {n - 7, 0}} {
			fr, fc := r-origin[0], c-origin[1]
			if fr < 0 || fr > 6 || fc < 0 || fc > 6 {
				continue
			}
			ring := fr == 0 || fr == 6 || fc == 0 || fc == 6
			core := fr >= 2 && fr <= 4 && fc >= 2 && fc <= 4
			return ring || core
		}
		return (r+c)%3 == 0 && r > 8 && c > 8
	}

	size := n*scale + 2*margin
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			img.Set(x, y, color.White)
		}
	}
	for r := range n {
		for c := range n {
			if !dark(r, c) {
				continue
			}
			for dy := range scale {
				for dx := range scale {
					img.Set(margin+c*scale+dx, margin+r*scale+dy, color.Black)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
