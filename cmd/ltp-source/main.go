// Command ltp-source runs a standalone LTP source daemon: it advertises
// itself over mDNS, accepts a control connection, and fans out frames from
// its media input to every subscriber at the configured rate (spec §4.4.2).
/*
 * Copyright (c) 2024, LTP fabric contributors.
 */
package main

import (
	"fmt"
	"math/rand"
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
	app.Name = "ltp-source"
	app.Usage = "run an LED Transport Protocol source endpoint"
	app.Version = device.ProtocolVersion
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "name", Value: "source", Usage: "device display name, advertised over mDNS"},
		cli.StringFlag{Name: "description", Usage: "human-readable device description"},
		cli.IntFlag{Name: "control-port", Value: 0, Usage: "TCP control port (0: OS-chosen)"},
		cli.StringFlag{Name: "dimensions", Value: "60", Usage: `pixel count ("N") or "WxH"`},
		cli.StringFlag{Name: "color", Value: "rgb", Usage: "native color format"},
		cli.Float64Flag{Name: "rate-hz", Value: 30, Usage: "render loop rate"},
		cli.StringFlag{Name: "mode", Value: string(device.ModeStream), Usage: "stream | static | interactive"},
		cli.StringFlag{Name: "input", Value: "noise", Usage: "media input: noise | static"},
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

	dims, err := parseDims(c.String("dimensions"))
	if err != nil {
		cos.ExitLogf("invalid --dimensions: %v", err)
	}
	colorFmt := c.String("color")
	bpp := wire.ColorFormat(colorByte(colorFmt)).BytesPerPixel()
	pixelCount := 1
	for _, d := range dims {
		pixelCount *= d
	}

	input := buildInput(c.String("input"), pixelCount, bpp)

	id := device.NewIdentity(c.String("name"), c.String("description"), device.RoleSource)
	src := device.NewSource(id, dims, colorFmt, c.Float64("rate-hz"), device.SourceMode(c.String("mode")), input)
	registerStandardControls(src)

	var server *xport.ControlServer
	server, err = xport.Listen(fmt.Sprintf(":%d", c.Int("control-port")), func(conn *xport.Conn, msg wire.Message) wire.Message {
		return dispatchSource(src, msg)
	})
	if err != nil {
		cos.ExitLogf("listen control: %v", err)
	}
	for _, ctl := range src.Controls.List() {
		src.Controls.OnChange(ctl.ID, func(ctlID string, _, newVal any) {
			if ctlID == "rate_hz" {
				if f, ok := newVal.(float64); ok {
					src.Rate = f
				}
			}
			server.Broadcast(wire.NewControlChanged(map[string]any{ctlID: newVal}))
		})
	}

	adv := discovery.NewAdvertiser(c.String("name"), discovery.ServiceSource, server.Port(), id.ID.String(), id.Name, id.Description, device.ProtocolVersion, true)
	adv.SetField("output", colorFmt)
	adv.SetField("mode", string(src.Mode))
	if err := adv.Start(); err != nil {
		cos.ExitLogf("start advertiser: %v", err)
	}

	fmt.Printf("%s %s listening on control port %d, %d pixels @ %.0fHz (%s)\n",
		fgreen("ltp-source"), fcyan(id.Name), server.Port(), pixelCount, src.Rate, src.Mode)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := server.Serve(); err != nil {
			nlog.Errorf("ltp-source: control server stopped: %v", err)
		}
	}()

	<-done
	src.Stop()
	adv.Stop()
	server.Close()
	nlog.Flush(true)
	return nil
}

// dispatchSource implements the source's half of the control protocol
// (spec §4.1): capability, subscribe, stream_control, control_get/set.
func dispatchSource(src *device.Source, msg wire.Message) wire.Message {
	seq, _ := msg.GetSeq()
	switch m := msg.(type) {
	case *wire.CapabilityRequest:
		return wire.NewCapabilityResponse(seq, src.Capability())
	case *wire.Subscribe:
		streamID, actual, err := src.Subscribe(m.Target, m.CallbackHost, m.CallbackPort)
		if err != nil {
			return wire.NewError(&seq, wire.Internal, "subscribe_failed", err.Error())
		}
		return wire.NewSubscribeResponse(seq, wire.OK, actual, streamID)
	case *wire.StreamControl:
		if perr := src.StreamControl(m.StreamID, m.Action); perr != nil {
			return wire.NewStreamControlResponse(seq, perr.Code, m.StreamID)
		}
		return wire.NewStreamControlResponse(seq, wire.OK, m.StreamID)
	case *wire.ControlGet:
		return wire.NewControlGetResponse(seq, wire.OK, src.Controls.GetValues(m.IDs))
	case *wire.ControlSet:
		applied, errs := src.Controls.SetValues(m.Values)
		status := "ok"
		if len(errs) > 0 {
			status = "partial"
		}
		return wire.NewControlSetResponse(seq, status, applied, errs)
	default:
		return wire.NewError(&seq, wire.InvalidFormat, "unsupported", fmt.Sprintf("source does not handle %q", msg.GetType()))
	}
}

// registerStandardControls adds a source's control-adjustable render rate,
// matching the rate field the capability record also publishes.
func registerStandardControls(src *device.Source) {
	minR, maxR := 1.0, 240.0
	src.Controls.Register(&device.Control{ID: "rate_hz", Type: device.TypeNumber, Name: "Rate (Hz)", Min: &minR, Max: &maxR, Value: src.Rate})
}

// buildInput constructs the media input a bare daemon runs against when no
// real camera/generator is attached (spec §6 "Backend seam — source").
func buildInput(kind string, pixelCount, bpp int) device.MediaInput {
	switch kind {
	case "static":
		frame := make([]byte, pixelCount*bpp)
		for i := range frame {
			frame[i] = 128
		}
		return backend.NewStaticInput(frame)
	default: // "noise"
		return device.MediaInputFunc(func() ([]byte, bool) {
			frame := make([]byte, pixelCount*bpp)
			_, _ = rand.Read(frame)
			return frame, true
		})
	}
}

func parseDims(spec string) ([]int, error) {
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
		return []int{w, h}, nil
	}
	n, err := strconv.Atoi(spec)
	if err != nil {
		return nil, fmt.Errorf("bad pixel count %q", spec)
	}
	return []int{n}, nil
}

func colorByte(colorFmt string) byte {
	switch colorFmt {
	case "rgbw":
		return 0x02
	case "hsv":
		return 0x03
	case "grayscale":
		return 0x04
	default:
		return 0x01
	}
}
