package uiserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-trial/core/trial"
	"github.com/koscakluka/ema-trial/core/uistate"
)

type controlsStub struct {
	mu     sync.Mutex
	starts []trial.Setup
	stops  int
}

func (c *controlsStub) StartSession(_ context.Context, setup trial.Setup) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts = append(c.starts, setup)
	return nil
}

func (c *controlsStub) StopSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial hub: %v", err)
	}
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) uistate.Snapshot {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var message envelope
	if err := conn.ReadJSON(&message); err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	if message.Type != "snapshot" {
		t.Fatalf("expected snapshot message, got %q", message.Type)
	}
	return message.Snapshot
}

func TestHubSendsCurrentStateAndBroadcastsChanges(t *testing.T) {
	store := uistate.NewStore()
	hub := NewHub(store, nil, trial.Setup{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(hub.Handler())
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	if initial := readSnapshot(t, conn); initial.Status != uistate.StatusIdle {
		t.Fatalf("expected idle initial snapshot, got %+v", initial)
	}

	store.AppendMessages(trial.Message{ID: "1", Sender: trial.SenderOpponent, Text: "Please state your name."})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snapshot := readSnapshot(t, conn)
		if len(snapshot.Transcript) == 1 {
			if snapshot.Transcript[0].Text != "Please state your name." {
				t.Fatalf("unexpected transcript %+v", snapshot.Transcript)
			}
			return
		}
	}
	t.Fatalf("expected transcript change to be broadcast")
}

func TestHubForwardsCommands(t *testing.T) {
	controls := &controlsStub{}
	hub := NewHub(uistate.NewStore(), controls, trial.Setup{OpponentName: "Laura Chen", CaseSummary: "Burglary."})
	server := httptest.NewServer(hub.Handler())
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()
	readSnapshot(t, conn)

	if err := conn.WriteJSON(command{Type: "start", Phase: "voir-dire", Mode: "learn"}); err != nil {
		t.Fatalf("failed to send start: %v", err)
	}
	if err := conn.WriteJSON(command{Type: "stop"}); err != nil {
		t.Fatalf("failed to send stop: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		controls.mu.Lock()
		starts, stops := len(controls.starts), controls.stops
		controls.mu.Unlock()
		if starts == 1 && stops == 1 {
			controls.mu.Lock()
			setup := controls.starts[0]
			controls.mu.Unlock()
			if setup.Phase != trial.PhaseVoirDire || setup.Mode != trial.ModeLearn || setup.OpponentName != "Laura Chen" {
				t.Fatalf("unexpected setup %+v", setup)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected start and stop to reach the controls")
}

func TestSnapshotEndpoint(t *testing.T) {
	store := uistate.NewStore()
	store.SetVolume(12.5)
	server := httptest.NewServer(NewHub(store, nil, trial.Setup{}).Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/snapshot")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var snapshot uistate.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if snapshot.Volume != 12.5 {
		t.Fatalf("expected volume 12.5, got %g", snapshot.Volume)
	}
}

func TestHubRejectsForeignOrigins(t *testing.T) {
	controls := &controlsStub{}
	server := httptest.NewServer(NewHub(uistate.NewStore(), controls, trial.Setup{}).Handler())
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("expected a foreign origin to be refused, got %v", err)
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for a foreign origin, got %+v", resp)
	}

	for _, origin := range []string{server.URL, "http://localhost:5173", "http://127.0.0.1:3000"} {
		conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {origin}})
		if err != nil {
			t.Fatalf("expected origin %s to be accepted: %v", origin, err)
		}
		conn.Close()
	}
}
