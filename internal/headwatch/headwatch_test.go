package headwatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestParseHead(t *testing.T) {
	msg := []byte(`{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0xabc","result":{"number":"0x1b4","hash":"0xdead"}}}`)
	num, ok := parseHead(msg)
	if !ok {
		t.Fatalf("expected head notification to parse")
	}
	if num != 436 {
		t.Fatalf("number = %d want 436", num)
	}
}

func TestParseHeadIgnoresOtherFrames(t *testing.T) {
	cases := [][]byte{
		[]byte(`{"jsonrpc":"2.0","id":1,"result":"0xsubid"}`), // subscribe ack
		[]byte(`{"jsonrpc":"2.0","method":"eth_subscription","params":{"result":{}}}`),
		[]byte(`{"jsonrpc":"2.0","method":"eth_subscription","params":{"result":{"number":"0xzz"}}}`),
		[]byte(`not json`),
		{},
	}
	for i, msg := range cases {
		if _, ok := parseHead(msg); ok {
			t.Errorf("case %d should not parse as a head", i)
		}
	}
}

// A dropped connection must end the whole session: read loop, ping loop,
// and the close watcher all exit, so reconnect cycles do not pile up
// goroutines.
func TestSessionGoroutinesExitWhenConnectionDrops(t *testing.T) {
	upgrader := websocket.Upgrader{}
	headFrame := `{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0x1","result":{"number":"0x10"}}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_, _, _ = conn.ReadMessage() // subscribe request
		_ = conn.WriteMessage(websocket.TextMessage, []byte(headFrame))
		_ = conn.Close()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	base := runtime.NumGoroutine()
	out := make(chan uint64, 4)
	errs := make(chan error, 4)
	_ = runSession(ctx, conn, time.Minute, out, errs)
	_ = conn.Close()

	select {
	case n := <-out:
		if n != 0x10 {
			t.Fatalf("head = %#x want 0x10", n)
		}
	default:
		t.Fatalf("head not delivered before disconnect")
	}

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > base && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if g := runtime.NumGoroutine(); g > base {
		t.Fatalf("session goroutines leaked: %d running, baseline %d", g, base)
	}
}
