// Command ltp-sink runs a standalone LTP sink daemon: it advertises itself
// over mDNS, accepts a control connection, and renders whatever stream gets
// set up against it to the configured backend (spec §4.4.1).
/*
 * Copyright (c) 2024, LTP fabric contributors.
 */
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/ltpfabric/ltp/backend"
	"github.com/ltpfabric/ltp/cmn/cos"
	"github.com/ltpfabric/ltp/cmn/nlog"
	"github.com/ltpfabric/ltp/device"
	"github.com/ltpfabric/ltp/discovery"
	"github.com/ltpfabric/ltp/wire"
	"github.com/ltpfabric/ltp/xport"
)

var (
	fgreen = color.New(color.FgGreen).SprintFunc()
	fred   = color.New(color.FgRed).SprintFunc()
	fcyan  = color.New(color.FgCyan).SprintFunc()
)

func main() {
	app := cli.NewApp()
	app.Name = "ltp-sink"
	app.Usage = "run an LED Transport Protocol sink endpoint"
	app.Version = device.ProtocolVersion
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "name", Value: "sink", Usage: "device display name, advertised over mDNS"},
		cli.StringFlag{Name: "description", Usage: "human-readable device description"},
		cli.IntFlag{Name: "control-port", Value: 0, Usage: "TCP control port (0: OS-chosen)"},
		cli.StringFlag{Name: "dimensions", Value: "60", Usage: `pixel count ("N") or matrix dimensions ("WxH")`},
		cli.StringFlag{Name: "origin", Value: string(device.OriginTopLeft), Usage: "matrix origin corner"},
		cli.StringFlag{Name: "order", Value: string(device.OrderRowMajor), Usage: "matrix traversal order"},
		cli.BoolFlag{Name: "serpentine", Usage: "matrix wiring alternates direction every row/column"},
		cli.StringFlag{Name: "color-formats", Value: "rgb", Usage: "comma-separated supported color formats"},
		cli.Float64Flag{Name: "max-refresh-hz", Value: 60, Usage: "maximum refresh rate this sink accepts"},
		cli.BoolFlag{Name: "verbose", Usage: "log info-level lines in addition to warnings/errors"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, fred(err.Error()))
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	nlog.SetVerbose(c.Bool("verbose"))

	topo, err := parseTopology(c.String("dimensions"), device.Origin(c.String("origin")), device.Order(c.String("order")), c.Bool("serpentine"))
	if err != nil {
		cos.ExitLogf("invalid --dimensions: %v", err)
	}
	colorFormats := splitCSV(c.String("color-formats"))

	id := device.NewIdentity(c.String("name"), c.String("description"), device.RoleSink)
	fb := backend.NewFrameBuffer()
	sink := device.NewSink(id, topo, c.Float64("max-refresh-hz"), fb)
	registerStandardControls(sink.Controls)

	var server *xport.ControlServer
	server, err = xport.Listen(fmt.Sprintf(":%d", c.Int("control-port")), func(conn *xport.Conn, msg wire.Message) wire.Message {
		return dispatchSink(sink, colorFormats, msg)
	})
	if err != nil {
		cos.ExitLogf("listen control: %v", err)
	}
	for _, ctl := range sink.Controls.List() {
		sink.Controls.OnChange(ctl.ID, func(ctlID string, _, newVal any) {
			server.Broadcast(wire.NewControlChanged(map[string]any{ctlID: newVal}))
		})
	}

	w, h := dims(topo)
	adv := discovery.NewAdvertiser(c.String("name"), discovery.ServiceSink, server.Port(), id.ID.String(), id.Name, id.Description, device.ProtocolVersion, true)
	adv.SetDimensions(w, h)
	adv.SetField("pixels", strconv.Itoa(topo.Len()))
	adv.SetField("color", strings.Join(colorFormats, ","))
	if err := adv.Start(); err != nil {
		cos.ExitLogf("start advertiser: %v", err)
	}

	fmt.Printf("%s %s listening on control port %d, %d pixels (%s)\n",
		fgreen("ltp-sink"), fcyan(id.Name), server.Port(), topo.Len(), topo.Kind())

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := server.Serve(); err != nil {
			nlog.Errorf("ltp-sink: control server stopped: %v", err)
		}
	}()

	<-done
	adv.Stop()
	server.Close()
	nlog.Flush(true)
	return nil
}

// dispatchSink implements the sink's half of the control protocol (spec
// §4.1): capability, stream_setup, stream_control, control_get/set.
func dispatchSink(sink *device.Sink, colorFormats []string, msg wire.Message) wire.Message {
	seq, _ := msg.GetSeq()
	switch m := msg.(type) {
	case *wire.CapabilityRequest:
		return wire.NewCapabilityResponse(seq, sink.Capability(colorFormats))
	case *wire.StreamSetup:
		streamID, udpPort, err := sink.StreamSetup(":0", m.Format)
		if err != nil {
			return wire.NewError(&seq, wire.Internal, "stream_setup_failed", err.Error())
		}
		return wire.NewStreamSetupResponse(seq, wire.OK, udpPort, streamID)
	case *wire.StreamControl:
		if perr := sink.StreamControl(m.StreamID, m.Action); perr != nil {
			return wire.NewStreamControlResponse(seq, perr.Code, m.StreamID)
		}
		if m.Action == wire.ActionStop {
			sink.Teardown(m.StreamID)
		}
		return wire.NewStreamControlResponse(seq, wire.OK, m.StreamID)
	case *wire.ControlGet:
		return wire.NewControlGetResponse(seq, wire.OK, sink.Controls.GetValues(m.IDs))
	case *wire.ControlSet:
		applied, errs := sink.Controls.SetValues(m.Values)
		status := "ok"
		if len(errs) > 0 {
			status = "partial"
		}
		return wire.NewControlSetResponse(seq, status, applied, errs)
	default:
		return wire.NewError(&seq, wire.InvalidFormat, "unsupported", fmt.Sprintf("sink does not handle %q", msg.GetType()))
	}
}

// registerStandardControls adds the controls every sink exposes regardless
// of backend (spec §4.4.3 "standard controls").
func registerStandardControls(reg *device.Registry) {
	minB, maxB := 0.0, 1.0
	reg.Register(&device.Control{ID: "brightness", Type: device.TypeNumber, Name: "Brightness", Min: &minB, Max: &maxB, Value: 1.0})
	reg.Register(&device.Control{ID: "power", Type: device.TypeBoolean, Name: "Power", Value: true})
}

func parseTopology(spec string, origin device.Origin, order device.Order, serpentine bool) (device.Topology, error) {
	if strings.ContainsRune(spec, 'x') {
		parts := strings.SplitN(spec, "x", 2)
		w, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("bad width %q", parts[0])
		}
		h, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("bad height %q", parts[1])
		}
		return device.NewMatrixTopology(w, h, origin, order, serpentine), nil
	}
	n, err := strconv.Atoi(spec)
	if err != nil {
		return nil, fmt.Errorf("bad pixel count %q", spec)
	}
	return device.NewLinearTopology(n), nil
}

func dims(t device.Topology) (w, h int) {
	if mt, ok := t.(*device.MatrixTopology); ok {
		return mt.Width, mt.Height
	}
	return t.Len(), 1
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
