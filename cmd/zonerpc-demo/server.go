package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sammck-go/zonerpc/pkg/zonetransport"
	"github.com/sammck-go/zonerpc/zone"
)

var serverHelp = `
  Usage: zonerpc-demo server [options]

  Options:

    --host, listening host (defaults to 0.0.0.0)
    --port, -p, listening port (defaults to 7777)
    --zone, this zone's numeric id (defaults to 1)
    --pid, generate a pid file in the current working directory
    -v, enable verbose logging
    --help, this help text

`

type noopUpcalls struct{}

func (noopUpcalls) OnObjectReleased(object zone.Object) {}
func (noopUpcalls) OnTransportDown(err error)           {}

func (noopUpcalls) OnZoneTerminating(peerZone zone.Zone) {}

func runServer(ctx context.Context, args []string) {
	flags := flag.NewFlagSet("server", flag.ContinueOnError)
	host := flags.String("host", "0.0.0.0", "")
	port := flags.String("port", "7777", "")
	p := flags.String("p", "", "")
	zoneID := flags.Uint64("zone", 1, "")
	pid := flags.Bool("pid", false, "")
	verbose := flags.Bool("v", false, "")
	flags.Usage = func() {
		fmt.Print(serverHelp)
		os.Exit(1)
	}
	if err := flags.Parse(args); err != nil {
		os.Exit(1)
	}
	if *p != "" {
		*port = *p
	}
	if *pid {
		generatePidFile()
	}

	logger := newDemoLogger("zonerpc-demo-server", *verbose)

	svc := zone.NewService("calculator-server", zone.Zone(*zoneID), zone.NewScheduler(ctx, 16, logger), logger)
	if _, err := svc.RegisterStub(calculatorObjectID, calculator{}); err != nil {
		logger.Fatalf("registering calculator stub: %s", err)
	}

	addr := fmt.Sprintf("%s:%s", *host, *port)
	ln, err := zonetransport.ListenTCP(addr, logger)
	if err != nil {
		logger.Fatalf("listening on %s: %s", addr, err)
	}
	defer ln.Close()
	logger.ILogf("zone %s listening on %s", svc.ZoneID, ln.Addr())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			logger.ILogf("listener closed: %s", err)
			return
		}
		go attachPeer(ctx, svc, conn, logger)
	}
}

// attachPeer binds a freshly accepted connection to svc and brings it
// up as a peer zone. A production handshake would read the connecting
// zone's declared id from the wire before this point; the demo instead
// assigns each connection the next local zone id, since every caller
// attribution this runtime does (scheduler lanes, stub reference
// counts) only needs a zone id unique to this service, not one agreed
// with the peer in advance.
func attachPeer(ctx context.Context, svc *zone.Service, conn *zonetransport.TCPTransport, logger zone.Logger) {
	peerZone := svc.GenerateNewZoneID()
	handler := zonetransport.NewServiceHandler(svc, peerZone)
	conn.Bind(handler.Handle, noopUpcalls{})
	if err := conn.Connect(ctx); err != nil {
		logger.WLogf("connecting accepted transport: %s", err)
		return
	}
	logger.ILogf("accepted connection, attributed to peer zone %s", peerZone)
}
