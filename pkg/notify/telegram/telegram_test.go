package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"wabot/pkg/bus"
	"wabot/pkg/config"

	"github.com/mymmrac/telego"
)

type fakeBot struct {
	mu       sync.Mutex
	messages []*telego.SendMessageParams
	photos   []*telego.SendPhotoParams
	err      error
}

func (b *fakeBot) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, params)
	return &telego.Message{}, b.err
}

func (b *fakeBot) SendPhoto(_ context.Context, params *telego.SendPhotoParams) (*telego.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.photos = append(b.photos, params)
	return &telego.Message{}, b.err
}

type fakeQR struct {
	calls int
	ready int
	err   error
}

func (q *fakeQR) QRImage(context.Context) ([]byte, bool, error) {
	q.calls++
	if q.calls >= q.ready && q.ready > 0 {
		return []byte("png"), true, nil
	}
	return nil, false, q.err
}

// sequenceQR returns images in order, repeating the last one.
type sequenceQR struct {
	mu     sync.Mutex
	images [][]byte
	calls  int
}

func (q *sequenceQR) QRImage(context.Context) ([]byte, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := min(q.calls, len(q.images)-1)
	q.calls++
	return q.images[i], true, nil
}

func (q *sequenceQR) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

func (b *fakeBot) photoCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.photos)
}

func TestParseChatIDs(t *testing.T) {
	ids, err := parseChatIDs([]string{" 123 ", "", "-456", "123"})
	if err != nil {
		t.Fatalf("parseChatIDs error = %v", err)
	}
	if len(ids) != 2 || ids[0] != 123 || ids[1] != -456 {
		t.Fatalf("ids = %v", ids)
	}

	if _, err := parseChatIDs([]string{"abc"}); err == nil {
		t.Fatal("expected error for non-numeric chat id")
	}
	if _, err := parseChatIDs([]string{" "}); err == nil {
		t.Fatal("expected error for empty chat ids")
	}
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(config.TelegramConfig{ChatIDs: []string{"1"}}, nil, nil); err == nil {
		t.Fatal("expected error without token")
	}
}

func TestUnauthenticatedSendsQRPhoto(t *testing.T) {
	bot := &fakeBot{}
	qr := &fakeQR{ready: 2}
	n := newNotifier(bot, []int64{1, 2}, false, qr, nil)
	n.qrRetry = time.Millisecond

	n.handle(context.Background(), bus.Event{Type: bus.EventAuthChanged, State: "unauthenticated"})

	if qr.calls != 2 {
		t.Fatalf("qr calls = %d, want 2", qr.calls)
	}
	if len(bot.photos) != 2 {
		t.Fatalf("photos = %d, want one per chat", len(bot.photos))
	}
	if !strings.Contains(bot.photos[0].Caption, "Login required") {
		t.Fatalf("caption = %q", bot.photos[0].Caption)
	}
}

func TestUnauthenticatedWithoutQRFallsBackToText(t *testing.T) {
	bot := &fakeBot{}
	qr := &fakeQR{err: errors.New("canvas gone")}
	n := newNotifier(bot, []int64{1}, false, qr, nil)
	n.qrRetry = time.Millisecond

	n.handle(context.Background(), bus.Event{Type: bus.EventAuthChanged, State: "unauthenticated"})

	if qr.calls != qrAttempts {
		t.Fatalf("qr calls = %d, want %d", qr.calls, qrAttempts)
	}
	if len(bot.photos) != 0 || len(bot.messages) != 1 {
		t.Fatalf("photos=%d messages=%d", len(bot.photos), len(bot.messages))
	}
}

func TestForwardRepliesOnlyWhenEnabled(t *testing.T) {
	event := bus.Event{Type: bus.EventReplySent, Conversation: "Alice", Sender: "Alice", Body: "hi", Reply: "hello"}

	quiet := &fakeBot{}
	newNotifier(quiet, []int64{1}, false, nil, nil).handle(context.Background(), event)
	if len(quiet.messages) != 0 {
		t.Fatalf("messages = %d, want none", len(quiet.messages))
	}

	loud := &fakeBot{}
	newNotifier(loud, []int64{1}, true, nil, nil).handle(context.Background(), event)
	if len(loud.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(loud.messages))
	}
	if !strings.Contains(loud.messages[0].Text, "Alice") || !strings.Contains(loud.messages[0].Text, "hello") {
		t.Fatalf("text = %q", loud.messages[0].Text)
	}
}

func TestRunStopsWhenEventsClose(t *testing.T) {
	bot := &fakeBot{err: errors.New("telegram down")}
	n := newNotifier(bot, []int64{1}, false, nil, nil)

	events := make(chan bus.Event, 2)
	events <- bus.Event{Type: bus.EventAuthChanged, State: "authenticated"}
	events <- bus.Event{Type: bus.EventSessionRestarted}
	close(events)

	if err := n.Run(context.Background(), events); err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if len(bot.messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(bot.messages))
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	n := newNotifier(&fakeBot{}, []int64{1}, false, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := n.Run(ctx, make(chan bus.Event)); err != nil {
		t.Fatalf("Run error = %v", err)
	}
}

func TestRefreshResendsRotatedQR(t *testing.T) {
	ctx := context.Background()
	bot := &fakeBot{}
	qr := &sequenceQR{images: [][]byte{[]byte("qr-1"), []byte("qr-1"), []byte("qr-2")}}
	n := newNotifier(bot, []int64{1}, false, qr, nil)

	n.refreshQR(ctx)
	if qr.callCount() != 0 {
		t.Fatalf("qr looked up %d times while logged in", qr.callCount())
	}

	n.handle(ctx, bus.Event{Type: bus.EventAuthChanged, State: "unauthenticated"})
	n.refreshQR(ctx)
	if got := bot.photoCount(); got != 1 {
		t.Fatalf("photos after unchanged refresh = %d, want 1", got)
	}

	n.refreshQR(ctx)
	if got := bot.photoCount(); got != 2 {
		t.Fatalf("photos after rotation = %d, want 2", got)
	}
	if !strings.Contains(bot.photos[1].Caption, "changed") {
		t.Fatalf("refresh caption = %q", bot.photos[1].Caption)
	}

	n.handle(ctx, bus.Event{Type: bus.EventAuthChanged, State: "authenticated"})
	calls := qr.callCount()
	n.refreshQR(ctx)
	if qr.callCount() != calls {
		t.Fatal("qr looked up after login")
	}
}

func TestRunResendsQRWhileLoggedOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bot := &fakeBot{}
	qr := &sequenceQR{images: [][]byte{[]byte("qr-1"), []byte("qr-2")}}
	n := newNotifier(bot, []int64{1}, false, qr, nil)
	n.qrRefresh = 5 * time.Millisecond

	events := make(chan bus.Event, 1)
	events <- bus.Event{Type: bus.EventAuthChanged, State: "unauthenticated"}

	done := make(chan error, 1)
	go func() {
		done <- n.Run(ctx, events)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for bot.photoCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("photos = %d, want the rotated QR resent", bot.photoCount())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if got := bot.photoCount(); got != 2 {
		t.Fatalf("photos = %d, want 2 (identical QR must not be resent)", got)
	}
}
