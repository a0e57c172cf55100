package eventsocket

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"net"
	"strings"

	"github.com/m-lab/go/rtx"
)

// Filename is a command-line flag holding the name of the unix-domain
// socket used by the client and server.
var Filename = flag.String("netctl.eventsocket", "", "The filename of the unix-domain socket on which events are served.")

// Handler is implemented by callers interested in event notifications.
type Handler interface {
	OnEvent(ctx context.Context, ev NetEvent)
}

// MustRun reads from the given socket filename until the context is
// canceled. Any connection error is fatal.
func MustRun(ctx context.Context, socket string, handler Handler) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c, err := net.Dial("unix", socket)
	rtx.Must(err, "Could not connect to %q", socket)
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	// bufio.Scanner defaults to newline-delimited tokens, which matches
	// the JSONL wire protocol.
	s := bufio.NewScanner(c)
	for s.Scan() {
		var ev NetEvent
		rtx.Must(json.Unmarshal(s.Bytes(), &ev), "Could not unmarshal event")
		handler.OnEvent(ctx, ev)
	}

	// Reading on a closed socket doesn't give an EOF error; the error it
	// gives is unexported but equivalent. Scanner hides EOF itself, so
	// hide this one too; any other error is real and should propagate.
	err = s.Err()
	if err != nil && strings.Contains(err.Error(), "use of closed network connection") {
		err = nil
	}
	rtx.Must(err, "Scanning of %q died with non-EOF error", socket)
}
