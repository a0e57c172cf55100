package eventsocket

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"testing"
	"time"

	"github.com/m-lab/go/rtx"

	"github.com/EsteSystems/netctl/link"
	"github.com/EsteSystems/netctl/nlmonitor"
)

func TestServerPublishesEventsToClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	sockPath := dir + "/events.sock"

	s := New(sockPath)
	rtx.Must(s.Listen(), "could not listen")
	go s.Serve(ctx)

	conn, err := net.Dial("unix", sockPath)
	rtx.Must(err, "could not dial")
	defer conn.Close()

	// Give the server a moment to register the new client before
	// publishing, since Accept() runs in Serve's goroutine.
	time.Sleep(50 * time.Millisecond)

	s.Publish(nlmonitor.Event{
		Kind:      nlmonitor.InterfaceUp,
		Timestamp: time.Now(),
		Interface: &link.Interface{Name: "eth0"},
	})

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		t.Fatalf("expected a line from the server, got none (err: %v)", scanner.Err())
	}
	var got NetEvent
	rtx.Must(json.Unmarshal(scanner.Bytes(), &got), "bad json")
	if got.Kind != "interface_up" || got.Interface != "eth0" {
		t.Errorf("got %+v", got)
	}
}

func TestListenRemovesStaleSocketFile(t *testing.T) {
	dir := t.TempDir()
	sockPath := dir + "/stale.sock"
	f, err := os.Create(sockPath)
	rtx.Must(err, "could not create stale file")
	f.Close()

	s := New(sockPath)
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen failed on stale socket file: %v", err)
	}
}

func TestNullServerIsHarmless(t *testing.T) {
	s := NullServer()
	rtx.Must(s.Listen(), "NullServer.Listen should never fail")
	rtx.Must(s.Serve(context.Background()), "NullServer.Serve should never fail")
	s.Publish(nlmonitor.Event{}) // must not panic
}
