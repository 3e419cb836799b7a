package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/sammck-go/zonerpc/pkg/zonetransport"
	"github.com/sammck-go/zonerpc/zone"
)

var clientHelp = `
  Usage: zonerpc-demo client [options] <server-addr> <op> <a> <b>

  <server-addr> is host:port of a running "zonerpc-demo server".
  <op> is "add" or "multiply"; <a> and <b> are its two operands.

  Options:

    --zone, this zone's numeric id (defaults to 2)
    --server-zone, the server's numeric zone id (defaults to 1)
    -v, enable verbose logging
    --help, this help text

`

func runClient(ctx context.Context, args []string) {
	flags := flag.NewFlagSet("client", flag.ContinueOnError)
	zoneID := flags.Uint64("zone", 2, "")
	serverZoneID := flags.Uint64("server-zone", 1, "")
	verbose := flags.Bool("v", false, "")
	flags.Usage = func() {
		fmt.Print(clientHelp)
		os.Exit(1)
	}
	if err := flags.Parse(args); err != nil {
		os.Exit(1)
	}

	rest := flags.Args()
	if len(rest) != 4 {
		flags.Usage()
		return
	}
	addr, op := rest[0], rest[1]
	a, err := strconv.ParseFloat(rest[2], 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid operand %q: %s\n", rest[2], err)
		os.Exit(1)
	}
	b, err := strconv.ParseFloat(rest[3], 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid operand %q: %s\n", rest[3], err)
		os.Exit(1)
	}
	method, ok := map[string]zone.Method{"add": methodAdd, "multiply": methodMultiply}[op]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown operation %q: want add or multiply\n", op)
		os.Exit(1)
	}

	logger := newDemoLogger("zonerpc-demo-client", *verbose)
	client := zone.NewService("calculator-client", zone.Zone(*zoneID), zone.NewScheduler(ctx, 4, logger), logger)
	serverZone := zone.Zone(*serverZoneID)

	handler := zonetransport.NewServiceHandler(client, serverZone)
	transport, err := zonetransport.DialTCP(ctx, addr, handler.Handle, noopUpcalls{}, logger)
	if err != nil {
		logger.Fatalf("dialing %s: %s", addr, err)
	}
	defer transport.Close()

	proxy, err := client.ConnectToZone(ctx, serverZone, transport)
	if err != nil {
		logger.Fatalf("connecting to zone %s at %s: %s", serverZone, addr, err)
	}

	op2, err := proxy.ObjectProxyFor(ctx, calculatorObjectID)
	if err != nil {
		logger.Fatalf("referencing calculator object: %s", err)
	}
	defer op2.Release(ctx, zone.Plain)

	input, err := marshalAddRequest(a, b)
	if err != nil {
		logger.Fatalf("encoding request: %s", err)
	}

	out, err := op2.Invoke(ctx, calculatorOrdinal, method, input)
	if err != nil {
		logger.Fatalf("invoking %s: %s", op, err)
	}
	result, err := unmarshalAddResponse(out)
	if err != nil {
		logger.Fatalf("decoding response: %s", err)
	}
	fmt.Printf("%g %s %g = %g\n", a, op, b, result)
}
