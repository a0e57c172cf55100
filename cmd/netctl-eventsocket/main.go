// netctl-eventsocket runs the event monitor and republishes every
// notification over a Unix domain socket as JSONL, so other processes
// can watch link/address/route/neighbor changes without linking netctl.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"

	"github.com/EsteSystems/netctl/eventsocket"
	"github.com/EsteSystems/netctl/nlmonitor"
)

var (
	promPort            = flag.String("prom", ":9090", "Prometheus metrics export address and port.")
	mainCtx, mainCancel = context.WithCancel(context.Background())
)

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from environment variables")
	defer mainCancel()

	if *eventsocket.Filename == "" {
		log.Fatal("-netctl.eventsocket path is required")
	}

	promSrv := prometheusx.MustStartPrometheus(*promPort)
	defer promSrv.Shutdown(mainCtx)

	srv := eventsocket.New(*eventsocket.Filename)
	rtx.Must(srv.Listen(), "Could not listen on %q", *eventsocket.Filename)
	go srv.Serve(mainCtx)

	mon, err := nlmonitor.Open(nlmonitor.DefaultGroups)
	rtx.Must(err, "Could not open event monitor")
	defer mon.Close()

	go func() {
		<-mainCtx.Done()
		mon.Close()
	}()

	err = mon.Run(func(ev nlmonitor.Event) {
		srv.Publish(ev)
	})
	if err != nil {
		log.Println("monitor loop exited:", err)
	}
}
