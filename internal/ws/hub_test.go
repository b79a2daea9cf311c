package ws_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"student-risk-monitor/internal/metrics"
	"student-risk-monitor/internal/model"
	"student-risk-monitor/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type fakeSource struct {
	alerts []model.Alert
}

func (f *fakeSource) RecentActive(limit int) []model.Alert {
	if len(f.alerts) > limit {
		return f.alerts[:limit]
	}
	return f.alerts
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func activeAlert(i int) model.Alert {
	a := model.NewAlert(fmt.Sprintf("s%d", i), fmt.Sprintf("Student %d", i),
		model.AlertRiskThreshold, model.LevelHigh, 0.80, 0.50, "risk crossed threshold", nil)
	return *a
}

// startHub serves the hub over httptest and returns the ws:// URL.
func startHub(t *testing.T, source ws.AlertSource) (string, *ws.Hub) {
	t.Helper()
	hub := ws.NewHub(source, metrics.New(prometheus.NewRegistry()), testLogger())
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

func TestConnectReceivesAckAndReplay(t *testing.T) {
	source := &fakeSource{alerts: []model.Alert{activeAlert(1), activeAlert(2)}}
	wsURL, _ := startHub(t, source)

	conn := dial(t, wsURL)

	first := readMessage(t, conn)
	if first["type"] != model.MsgConnectionEstablished {
		t.Fatalf("first message type: got %v, want %s", first["type"], model.MsgConnectionEstablished)
	}

	for i := 0; i < 2; i++ {
		msg := readMessage(t, conn)
		if msg["type"] != model.MsgStudentAlert {
			t.Fatalf("replay message %d type: got %v, want %s", i, msg["type"], model.MsgStudentAlert)
		}
		alert, ok := msg["alert"].(map[string]interface{})
		if !ok {
			t.Fatalf("replay message %d has no alert object", i)
		}
		if alert["alert_type"] != "RISK_THRESHOLD" {
			t.Errorf("replay alert_type: got %v", alert["alert_type"])
		}
	}
}

func TestReplayCapped(t *testing.T) {
	source := &fakeSource{}
	for i := 0; i < 15; i++ {
		source.alerts = append(source.alerts, activeAlert(i))
	}
	wsURL, _ := startHub(t, source)

	conn := dial(t, wsURL)
	readMessage(t, conn) // connection ack

	received := 0
	for {
		conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
		received++
	}
	if received != 10 {
		t.Fatalf("replayed alerts: got %d, want 10", received)
	}
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	wsURL, hub := startHub(t, &fakeSource{})

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, wsURL)
		readMessage(t, conns[i]) // connection ack
	}
	waitForCount(t, hub, 3)

	payload, _ := model.EncodeUpdateMessage("alert-1", model.UpdateAcknowledged)
	hub.Broadcast(payload)

	for i, conn := range conns {
		msg := readMessage(t, conn)
		if msg["type"] != model.MsgAlertUpdate {
			t.Errorf("subscriber %d: got type %v, want %s", i, msg["type"], model.MsgAlertUpdate)
		}
		if msg["alert_id"] != "alert-1" {
			t.Errorf("subscriber %d: alert_id got %v", i, msg["alert_id"])
		}
	}
}

func TestDeadSubscriberDoesNotBlockOthers(t *testing.T) {
	wsURL, hub := startHub(t, &fakeSource{})

	dead := dial(t, wsURL)
	readMessage(t, dead)
	alive := dial(t, wsURL)
	readMessage(t, alive)
	waitForCount(t, hub, 2)

	dead.Close()
	waitForCount(t, hub, 1)

	payload, _ := model.EncodeUpdateMessage("alert-2", model.UpdateResolved)
	hub.Broadcast(payload)

	msg := readMessage(t, alive)
	if msg["alert_id"] != "alert-2" {
		t.Fatalf("surviving subscriber: got %v", msg)
	}
	if got := hub.Count(); got != 1 {
		t.Fatalf("count after dead subscriber pruned: got %d, want 1", got)
	}
}

// Hammers Broadcast from many goroutines while subscribers connect and
// drop, the steady state of a busy deployment. Must run to completion
// without a send on a retired channel panicking the process.
func TestBroadcastSurvivesSubscriberChurn(t *testing.T) {
	wsURL, hub := startHub(t, &fakeSource{})

	stop := make(chan struct{})
	var wg sync.WaitGroup

	payload, _ := model.EncodeUpdateMessage("alert-churn", model.UpdateAcknowledged)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.Broadcast(payload)
				}
			}
		}()
	}

	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
				if err != nil {
					continue
				}
				conn.Close()
			}
		}()
	}

	time.Sleep(time.Second)
	close(stop)
	wg.Wait()

	waitForCount(t, hub, 0)
}

func TestAcknowledgeMessageForwarded(t *testing.T) {
	wsURL, hub := startHub(t, &fakeSource{})

	var mu sync.Mutex
	var gotAlertID, gotUserID string
	hub.SetAcknowledgeFunc(func(alertID, userID string) bool {
		mu.Lock()
		defer mu.Unlock()
		gotAlertID, gotUserID = alertID, userID
		return true
	})

	conn := dial(t, wsURL)
	readMessage(t, conn)

	err := conn.WriteJSON(map[string]string{
		"type":     "acknowledge_alert",
		"alert_id": "alert-9",
		"user_id":  "staff1",
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		done := gotAlertID != ""
		mu.Unlock()
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("acknowledge handler never called")
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotAlertID != "alert-9" || gotUserID != "staff1" {
		t.Fatalf("handler args: got %s/%s, want alert-9/staff1", gotAlertID, gotUserID)
	}
}

func TestPingGetsPong(t *testing.T) {
	wsURL, _ := startHub(t, &fakeSource{})

	conn := dial(t, wsURL)
	readMessage(t, conn)

	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readMessage(t, conn)
	if msg["type"] != model.MsgPong {
		t.Fatalf("got type %v, want %s", msg["type"], model.MsgPong)
	}
}

func TestNonWebsocketRequestRejected(t *testing.T) {
	hub := ws.NewHub(&fakeSource{}, metrics.New(prometheus.NewRegistry()), testLogger())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", resp.StatusCode)
	}
}

func waitForCount(t *testing.T, hub *ws.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber count: got %d, want %d", hub.Count(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
