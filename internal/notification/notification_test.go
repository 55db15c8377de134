package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestPushPlusNotifier_Send(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := jsonDecode(r, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"code":200,"msg":"ok"}`))
	}))
	defer srv.Close()

	n := NewPushPlusNotifier("tok123")
	n.url = srv.URL

	err := n.Send(context.Background(), Alert{
		Level:   AlertWarning,
		Title:   "BTC_USDT BUY",
		Message: "golden cross at 104.00",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got["token"] != "tok123" {
		t.Errorf("token = %v", got["token"])
	}
	if got["title"] != "[WARN] BTC_USDT BUY" {
		t.Errorf("title = %v", got["title"])
	}
	if got["template"] != "markdown" {
		t.Errorf("template = %v", got["template"])
	}
}

func TestPushPlusNotifier_RejectedByBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":903,"msg":"invalid token"}`))
	}))
	defer srv.Close()

	n := NewPushPlusNotifier("bad")
	n.url = srv.URL

	if err := n.Send(context.Background(), Alert{Title: "x"}); err == nil {
		t.Fatal("expected error for non-200 body code")
	}
}

func TestPushPlusNotifier_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewPushPlusNotifier("tok")
	n.url = srv.URL

	if err := n.Send(context.Background(), Alert{Title: "x"}); err == nil {
		t.Fatal("expected error for HTTP 502")
	}
}

func TestWebhookNotifier_Send(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := jsonDecode(r, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.Send(context.Background(), Alert{
		Level:   AlertInfo,
		Title:   "ETH_USDT SELL",
		Message: "trailing stop at 2510.00",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got["source"] != "gatebot" {
		t.Errorf("source = %v", got["source"])
	}
	if got["level"] != "INFO" {
		t.Errorf("level = %v", got["level"])
	}
	if got["title"] != "ETH_USDT SELL" {
		t.Errorf("title = %v", got["title"])
	}
}

func TestWebhookNotifier_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{Title: "x"}); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

type recordingNotifier struct {
	name   string
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (r *recordingNotifier) Name() string {
	if r.name == "" {
		return "recording"
	}
	return r.name
}

func (r *recordingNotifier) Send(ctx context.Context, alert Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

func TestMulti_ContinuesPastFailure(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("down")}
	healthy := &recordingNotifier{}

	m := NewMulti(failing, healthy)
	err := m.Send(context.Background(), Alert{Title: "sig"})
	if err == nil {
		t.Error("expected error propagated from failing backend")
	}
	if healthy.count() != 1 {
		t.Errorf("healthy backend got %d alerts, want 1", healthy.count())
	}
}

func TestMulti_ReportsFailingChannel(t *testing.T) {
	failing := &recordingNotifier{name: "pushplus", err: errors.New("invalid token")}
	healthy := &recordingNotifier{name: "webhook"}

	var failed []string
	m := NewMulti(failing, healthy)
	m.OnFailure = func(channel string) { failed = append(failed, channel) }

	m.Send(context.Background(), Alert{Title: "sig"})

	if len(failed) != 1 || failed[0] != "pushplus" {
		t.Errorf("failure channels = %v, want [pushplus]", failed)
	}
}

func TestAsync_DeliversQueued(t *testing.T) {
	rec := &recordingNotifier{}
	a := NewAsync(rec, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		if err := a.Send(context.Background(), Alert{Title: "a"}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	for rec.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("delivered %d alerts, want 3", rec.count())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestAsync_DropsWhenFull(t *testing.T) {
	rec := &recordingNotifier{}
	a := NewAsync(rec, 2)
	// No Run goroutine: the queue fills and the overflow is dropped without
	// blocking.
	for i := 0; i < 5; i++ {
		if err := a.Send(context.Background(), Alert{Title: "x"}); err != nil {
			t.Fatalf("Send must not fail: %v", err)
		}
	}
	if got := len(a.queue); got != 2 {
		t.Errorf("queue holds %d, want 2", got)
	}
}

func TestAsync_FlushesOnShutdown(t *testing.T) {
	rec := &recordingNotifier{}
	a := NewAsync(rec, 8)

	for i := 0; i < 4; i++ {
		a.Send(context.Background(), Alert{Title: "x"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already cancelled: Run should still flush the queue
	a.Run(ctx)

	if rec.count() != 4 {
		t.Errorf("flushed %d alerts, want 4", rec.count())
	}
}

func TestAsync_WaitUnblocksAfterFlush(t *testing.T) {
	rec := &recordingNotifier{}
	a := NewAsync(rec, 8)

	for i := 0; i < 3; i++ {
		a.Send(context.Background(), Alert{Title: "x"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	go a.Run(ctx)

	waited := make(chan struct{})
	go func() {
		a.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not unblock after Run returned")
	}
	// Wait returning means the flush already happened.
	if rec.count() != 3 {
		t.Errorf("flushed %d alerts, want 3", rec.count())
	}
}

func jsonDecode(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
