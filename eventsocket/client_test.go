package eventsocket

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/m-lab/go/rtx"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []NetEvent
}

func (h *recordingHandler) OnEvent(ctx context.Context, ev NetEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
}

func TestMustRunDeliversEventsToHandler(t *testing.T) {
	dir := t.TempDir()
	sockPath := dir + "/client.sock"

	listener, err := net.Listen("unix", sockPath)
	rtx.Must(err, "could not listen")
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		b, _ := json.Marshal(NetEvent{Kind: "interface_up", Interface: "eth0"})
		conn.Write(append(b, '\n'))
		time.Sleep(100 * time.Millisecond)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	handler := &recordingHandler{}
	done := make(chan struct{})
	go func() {
		MustRun(ctx, sockPath, handler)
		close(done)
	}()

	<-ctx.Done()
	<-done

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.events) != 1 || handler.events[0].Kind != "interface_up" {
		t.Fatalf("got %+v", handler.events)
	}
}
