package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"testing"
	"time"

	"github.com/ayusman/ishara/internal/gesture"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewCommitEvent(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := NewCommitEvent(gesture.Token{Key: "3aslema", Source: gesture.SourceWord, At: at})

	if ev.ID == "" {
		t.Error("expected an event ID")
	}
	if ev.Type != TypeCommit || ev.Key != "3aslema" || ev.Source != "word" || !ev.At.Equal(at) {
		t.Errorf("event = %+v", ev)
	}

	other := NewCommitEvent(gesture.Token{Key: "A"})
	if other.ID == ev.ID {
		t.Error("event IDs should be unique")
	}
	if other.Source != "letter" {
		t.Errorf("Source = %q, want letter", other.Source)
	}
}

func TestEvent_Marshal(t *testing.T) {
	ev := NewSpeakEvent("bonjour maison", "fr", time.Unix(0, 0).UTC())
	data, err := ev.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m["type"] != "speak" || m["text"] != "bonjour maison" || m["lang"] != "fr" {
		t.Errorf("payload = %s", data)
	}
	if _, ok := m["key"]; ok {
		t.Errorf("speak payload should omit key: %s", data)
	}
}

func TestMQTTNotifier_Topics(t *testing.T) {
	tests := []struct {
		name      string
		cfg       MQTTConfig
		wantURL   string
		wantTopic string
	}{
		{name: "bare host", cfg: MQTTConfig{Broker: "localhost:1883", Topic: "ishara/phrase"}, wantURL: "tcp://localhost:1883", wantTopic: "ishara/phrase/commit"},
		{name: "url and trailing slash", cfg: MQTTConfig{Broker: "ssl://broker:8883", Topic: "home/sign/"}, wantURL: "ssl://broker:8883", wantTopic: "home/sign/commit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewMQTT(tt.cfg, quietLogger())
			if got := n.BrokerURL(); got != tt.wantURL {
				t.Errorf("BrokerURL() = %q, want %q", got, tt.wantURL)
			}
			if got := n.Topic(TypeCommit); got != tt.wantTopic {
				t.Errorf("Topic() = %q, want %q", got, tt.wantTopic)
			}
		})
	}
}

func TestMQTTNotifier_NotConnected(t *testing.T) {
	n := NewMQTT(MQTTConfig{Broker: "localhost:1883", Topic: "t"}, quietLogger())

	err := n.Notify(context.Background(), NewSpeakEvent("x", "fr", time.Now()))
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Notify() error = %v, want ErrNotConnected", err)
	}
	if s := n.Stats(); s.Errors != 1 || s.Connected {
		t.Errorf("Stats() = %+v", s)
	}
	if err := n.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestMQTTNotifier_ConnectRefused(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	// Grab a free port and close it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	n := NewMQTT(MQTTConfig{Broker: addr, ClientID: "test", Topic: "t", ConnectTimeout: 2 * time.Second}, quietLogger())
	if err := n.Connect(context.Background()); err == nil {
		t.Fatal("expected connection error")
	}
	defer n.Close()

	if n.Stats().Connected {
		t.Error("should not report connected")
	}
}

func TestMQTTNotifier_Broker(t *testing.T) {
	broker := os.Getenv("ISHARA_TEST_MQTT_BROKER")
	if broker == "" {
		t.Skip("ISHARA_TEST_MQTT_BROKER not set")
	}

	n := NewMQTT(MQTTConfig{Broker: broker, ClientID: "ishara-test", Topic: "ishara/test", QoS: 1}, quietLogger())
	if err := n.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer n.Close()

	if err := n.Notify(context.Background(), NewCommitEvent(gesture.Token{Key: "B", At: time.Now()})); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if got := n.Stats().Published["ishara/test/commit"]; got != 1 {
		t.Errorf("published = %d, want 1", got)
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	var n Notifier = r

	n.Notify(context.Background(), NewCommitEvent(gesture.Token{Key: "A"}))
	n.Notify(context.Background(), NewSpeakEvent("A", "fr", time.Now()))

	if got := len(r.Events()); got != 2 {
		t.Fatalf("Events() len = %d, want 2", got)
	}
	if got := r.OfType(TypeSpeak); len(got) != 1 || got[0].Text != "A" {
		t.Errorf("OfType(speak) = %+v", got)
	}

	r.SetError(ErrNotConnected)
	if err := n.Notify(context.Background(), NewCommitEvent(gesture.Token{Key: "B"})); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Notify() error = %v", err)
	}

	var nop Notifier = Nop{}
	if err := nop.Notify(context.Background(), Event{}); err != nil {
		t.Errorf("Nop.Notify() error = %v", err)
	}
}
