// Package eventsocket serves nlmonitor.Event notifications as JSONL over
// a Unix domain socket, so out-of-process tools can watch link, address,
// route, and neighbor changes without linking against netctl directly.
package eventsocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/EsteSystems/netctl/metrics"
	"github.com/EsteSystems/netctl/nlmonitor"
)

// NetEvent is the JSONL wire shape sent to clients. Only the fields
// relevant to Kind are populated.
type NetEvent struct {
	Kind      string
	Timestamp time.Time
	Interface string `json:",omitempty"`
	Address   string `json:",omitempty"`
	Details   string `json:",omitempty"`
}

func fromMonitorEvent(ev nlmonitor.Event) NetEvent {
	n := NetEvent{Kind: ev.Kind.String(), Timestamp: ev.Timestamp}
	if ev.Interface != nil {
		n.Interface = ev.Interface.Name
	}
	if ev.Address != nil {
		n.Address = fmt.Sprintf("%s/%d", ev.Address.IP, ev.Address.PrefixLen)
	}
	if ev.Route != nil {
		n.Details = fmt.Sprintf("dst=%s/%d gw=%s", ev.Route.Dst, ev.Route.DstLen, ev.Route.Gateway)
	}
	if ev.Neighbor != nil {
		n.Details = fmt.Sprintf("ip=%s lladdr=%s state=%s", ev.Neighbor.IP, ev.Neighbor.LLAddr, ev.Neighbor.StateName())
	}
	return n
}

// Server is the interface that serves events over the unix domain
// socket. Make new Server objects with New or NullServer.
type Server interface {
	Listen() error
	Serve(context.Context) error
	Publish(ev nlmonitor.Event)
}

type server struct {
	eventC       chan *NetEvent
	filename     string
	clients      map[net.Conn]struct{}
	unixListener net.Listener
	mutex        sync.Mutex
	servingWG    sync.WaitGroup
}

func (s *server) addClient(c net.Conn) {
	log.Println("Adding new event client", c)
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.clients[c] = struct{}{}
}

func (s *server) removeClient(c net.Conn) {
	s.servingWG.Add(1)
	defer s.servingWG.Done()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, ok := s.clients[c]
	if !ok {
		log.Println("Tried to remove event client", c, "that was not present")
		return
	}
	delete(s.clients, c)
}

func (s *server) sendToAllListeners(data string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for c := range s.clients {
		_, err := fmt.Fprintln(c, data)
		if err != nil {
			log.Println("Write to client", c, "failed with error", err, " - removing the client.")
			// Remove in a goroutine because removeClient needs to grab the
			// mutex, so let the goroutine block until the mutex is released
			// when this method returns. This also prevents mid-iteration
			// modification of s.clients.
			go s.removeClient(c)
			go c.Close()
		}
	}
}

func (s *server) notifyClients(ctx context.Context) {
	s.servingWG.Add(1)
	defer s.servingWG.Done()
	for ctx.Err() == nil {
		event := <-s.eventC
		var b []byte
		var err error
		if event != nil {
			b, err = json.Marshal(*event)
		}
		if event == nil || err != nil {
			log.Printf("WARNING: Bad event received %v (err: %v)\n", event, err)
			continue
		}
		s.sendToAllListeners(string(b))
	}
}

// Listen returns quickly. After Listen has been called, connections to
// the server will not immediately fail. In order for them to succeed,
// Serve() should be called. This function should only be called once
// for a given Server.
func (s *server) Listen() error {
	// Add to the waitgroup inside Listen(), subtract from it in Serve().
	// That way, even if the Serve() goroutine is scheduled weirdly,
	// servingWG.Wait() will definitely wait for Serve() to finish.
	s.servingWG.Add(1)
	var err error
	// Delete any existing socket file before trying to listen on it.
	// Unclean shutdowns can cause orphaned, stale socket files to hang
	// around, causing this service to fail to start.
	os.Remove(s.filename)
	s.unixListener, err = net.Listen("unix", s.filename)
	return err
}

// Serve all clients that connect to this server until the context is
// canceled. Expected to run in a goroutine, after Listen has been
// called. Should only be called once for a given server.
func (s *server) Serve(ctx context.Context) error {
	defer s.servingWG.Done()
	derivedCtx, derivedCancel := context.WithCancel(ctx)
	defer derivedCancel()

	go s.notifyClients(derivedCtx)

	s.servingWG.Add(1) // cleanup goroutine
	go func() {
		<-derivedCtx.Done()
		s.unixListener.Close()
		close(s.eventC)
		s.servingWG.Done()
	}()

	var err error
	for derivedCtx.Err() == nil {
		var conn net.Conn
		conn, err = s.unixListener.Accept()
		if err != nil {
			log.Printf("Could not Accept on socket %q: %s\n", s.filename, err)
			continue
		}
		s.addClient(conn)
	}
	return err
}

// Publish should be called for every event the monitor delivers.
func (s *server) Publish(ev nlmonitor.Event) {
	n := fromMonitorEvent(ev)
	s.eventC <- &n
	metrics.EventCount.WithLabelValues(n.Kind).Inc()
}

// New makes a new server that serves clients on the provided Unix
// domain socket.
func New(filename string) Server {
	c := make(chan *NetEvent, 100)
	return &server{
		filename: filename,
		eventC:   c,
		clients:  make(map[net.Conn]struct{}),
	}
}

type nullServer struct{}

func (nullServer) Listen() error               { return nil }
func (nullServer) Serve(context.Context) error { return nil }
func (nullServer) Publish(ev nlmonitor.Event)  {}

// NullServer returns a Server that does nothing, so code that may or
// may not want an eventsocket can receive a Server interface unconditionally.
func NullServer() Server {
	return nullServer{}
}
