package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/iwvelando/emi-calculator/pkg/mathutil"
)

func dialLive(t *testing.T) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(newTestHandler(t, nil))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/emi/live"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected status 101, got %d", resp.StatusCode)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}
	return conn
}

func exchange(t *testing.T, conn *websocket.Conn, payload string) liveMessage {
	t.Helper()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	var msg liveMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestLiveRecomputes(t *testing.T) {
	conn := dialLive(t)

	msg := exchange(t, conn, `{"principal": 100000, "rate": 7.5, "term": 5}`)
	if msg.Result == nil {
		t.Fatalf("expected a result, got %+v", msg)
	}
	if mathutil.Round(msg.Result.Result.MonthlyInstallment) != 2003.79 {
		t.Errorf("MonthlyInstallment = %.4f, expected 2003.79", msg.Result.Result.MonthlyInstallment)
	}

	msg = exchange(t, conn, `{"principal": 500000, "rate": 10, "term": 10}`)
	if msg.Result == nil || msg.Result.Formatted.MonthlyInstallment != "₹6,607.54" {
		t.Errorf("unexpected second result %+v", msg)
	}
}

func TestLiveKeepsConnectionAfterBadInput(t *testing.T) {
	conn := dialLive(t)

	msg := exchange(t, conn, `not json`)
	if msg.Error == "" || msg.Result != nil {
		t.Fatalf("expected a decode error, got %+v", msg)
	}

	msg = exchange(t, conn, `{"principal": 500, "rate": 7.5, "term": 5}`)
	if msg.Error == "" || len(msg.Fields) != 1 || msg.Fields[0].Field != "principal" {
		t.Fatalf("expected a principal field error, got %+v", msg)
	}
	if msg.Fields[0].Message != "Minimum loan amount is 1,000." {
		t.Errorf("message = %q", msg.Fields[0].Message)
	}

	msg = exchange(t, conn, `{"principal": 100000, "rate": 7.5, "term": 5}`)
	if msg.Result == nil {
		t.Fatalf("expected the connection to recover, got %+v", msg)
	}
}

func TestLiveRequiresUpgrade(t *testing.T) {
	rr := perform(t, newTestHandler(t, nil), http.MethodGet, "/api/emi/live", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without an upgrade, got %d", rr.Code)
	}
}

func TestLiveRejectsCrossOrigin(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/emi/live"
	header := http.Header{"Origin": []string{"http://elsewhere.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		_ = conn.Close()
		t.Fatal("expected the handshake to fail for a foreign origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected status 403, got %+v", resp)
	}

	header = http.Header{"Origin": []string{srv.URL}}
	conn, _, err = websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("same-origin Dial() error = %v", err)
	}
	_ = conn.Close()
}
