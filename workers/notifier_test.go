package workers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func TestSendPostsToTelegram(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := &Notifier{
		botToken: "test-token",
		chatID:   "42",
		baseURL:  srv.URL,
		client:   &http.Client{Timeout: time.Second},
		printer:  message.NewPrinter(language.English),
	}

	if err := n.send("hello"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if got["chat_id"] != "42" || got["text"] != "hello" || got["parse_mode"] != "HTML" {
		t.Errorf("payload = %v", got)
	}
}

func TestSendDisabledWithoutCredentials(t *testing.T) {
	n := &Notifier{client: &http.Client{}}
	if err := n.send("ignored"); err != nil {
		t.Fatalf("disabled notifier should be a no-op, got %v", err)
	}
}

func TestFormatAmount(t *testing.T) {
	n := NewNotifier()

	cases := []struct {
		in   string
		want string
	}{
		{"15000.5", "15,000.50"},
		{"10", "10.00"},
		{"0.5", "0.50"},
		{"not-a-number", "not-a-number"},
	}
	for _, tc := range cases {
		if got := n.formatAmount(tc.in); got != tc.want {
			t.Errorf("formatAmount(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEscapeHTML(t *testing.T) {
	got := escapeHTML(`Fix <script> & "quotes"`)
	want := "Fix &lt;script&gt; &amp; &quot;quotes&quot;"
	if got != want {
		t.Errorf("escapeHTML = %q, want %q", got, want)
	}
}
