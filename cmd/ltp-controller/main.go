// Command ltp-controller runs the routing engine: it browses for sinks and
// sources over mDNS, maintains the route table, and exposes a control
// channel of its own for route_create/route_delete (spec §4.5).
/*
 * Copyright (c) 2024, LTP fabric contributors.
 */
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/ltpfabric/ltp/cmn"
	"github.com/ltpfabric/ltp/cmn/cos"
	"github.com/ltpfabric/ltp/cmn/nlog"
	"github.com/ltpfabric/ltp/config"
	"github.com/ltpfabric/ltp/device"
	"github.com/ltpfabric/ltp/discovery"
	"github.com/ltpfabric/ltp/routing"
	"github.com/ltpfabric/ltp/routing/virtualsource"
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
	app.Name = "ltp-controller"
	app.Usage = "run the LED Transport Protocol routing controller"
	app.Version = device.ProtocolVersion
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "name", Value: "controller", Usage: "display name, advertised over mDNS"},
		cli.IntFlag{Name: "control-port", Value: 0, Usage: "TCP control port (0: OS-chosen)"},
		cli.StringFlag{Name: "config", Usage: "bootstrap YAML: virtual sources and pre-wired routes"},
		cli.StringFlag{Name: "export-routes", Usage: "write the configured route table as YAML to this path and exit"},
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

	engine := routing.NewEngine()

	var cfg *config.Controller
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			cos.ExitLogf("load config: %v", err)
		}
		ct, hi, ri, rm := cfg.RuntimeConfig()
		cmn.Rom.Set(&cmn.RuntimeConfig{ControlTimeout: ct, HealthCheckInterval: hi, ReconnectInitial: ri, ReconnectMax: rm})
		wireVirtualSources(engine, cfg.VirtualSources)
		wireRoutes(engine, cfg.Routes)
	}

	if path := c.String("export-routes"); path != "" {
		b, err := config.ExportRoutes(engine.Routes())
		if err != nil {
			cos.ExitLogf("export routes: %v", err)
		}
		if err := os.WriteFile(path, b, 0o644); err != nil {
			cos.ExitLogf("write %s: %v", path, err)
		}
		fmt.Printf("%s wrote %d route(s) to %s\n", fgreen("ltp-controller"), len(engine.Routes()), path)
		return nil
	}

	browser, err := discovery.NewBrowser(
		[]string{discovery.ServiceSink, discovery.ServiceSource, discovery.ServiceController},
		engine.OnDiscoveryChange,
	)
	if err != nil {
		cos.ExitLogf("new browser: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := browser.Start(ctx); err != nil {
		cos.ExitLogf("start browser: %v", err)
	}

	var server *xport.ControlServer
	server, err = xport.Listen(fmt.Sprintf(":%d", c.Int("control-port")), func(conn *xport.Conn, msg wire.Message) wire.Message {
		return dispatchController(engine, msg)
	})
	if err != nil {
		cos.ExitLogf("listen control: %v", err)
	}

	id := device.NewIdentity(c.String("name"), "routing controller", device.RoleController)
	adv := discovery.NewAdvertiser(c.String("name"), discovery.ServiceController, server.Port(), id.ID.String(), id.Name, id.Description, device.ProtocolVersion, false)
	if err := adv.Start(); err != nil {
		cos.ExitLogf("start advertiser: %v", err)
	}

	go engine.Run()

	fmt.Printf("%s %s listening on control port %d, %d virtual source(s), %d route(s)\n",
		fgreen("ltp-controller"), fcyan(id.Name), server.Port(), len(cfgOrEmpty(cfg).VirtualSources), len(engine.Routes()))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := server.Serve(); err != nil {
			nlog.Errorf("ltp-controller: control server stopped: %v", err)
		}
	}()

	<-done
	engine.Stop()
	server.Close()
	adv.Stop()
	browser.Close()
	nlog.Flush(true)
	return nil
}

func cfgOrEmpty(cfg *config.Controller) *config.Controller {
	if cfg == nil {
		return &config.Controller{}
	}
	return cfg
}

// dispatchController implements the controller's own control surface:
// external tooling (a UI, a CLI client) creates and deletes routes over the
// same wire protocol peers use (spec §4.1 "route_create"/"route_delete").
func dispatchController(engine *routing.Engine, msg wire.Message) wire.Message {
	seq, _ := msg.GetSeq()
	switch m := msg.(type) {
	case *wire.RouteCreate:
		tr := routing.Transform{
			ScaleMode:  routing.ScaleMode(m.Transform.ScaleMode),
			Brightness: m.Transform.Brightness,
			Gamma:      m.Transform.Gamma,
			MirrorX:    m.Transform.MirrorX,
			MirrorY:    m.Transform.MirrorY,
		}
		if tr.ScaleMode == "" {
			tr = routing.DefaultTransform()
		}
		mode := routing.ModeProxy
		if routing.RouteMode(m.Mode) == routing.ModeDirect {
			mode = routing.ModeDirect
		}
		route, err := engine.CreateRoute(m.Name, m.SourceID, m.SinkID, mode, tr)
		if err != nil {
			return wire.NewError(&seq, wire.Internal, "route_create_failed", err.Error())
		}
		return wire.NewRouteCreateResponse(seq, wire.OK, route.ID)
	case *wire.RouteDelete:
		if err := engine.DeleteRoute(m.RouteID); err != nil {
			if cos.IsErrNotFound(err) {
				return wire.NewError(&seq, wire.NotFound, "not_found", err.Error())
			}
			return wire.NewError(&seq, wire.Internal, "route_delete_failed", err.Error())
		}
		return wire.NewRouteDeleteResponse(seq, wire.OK)
	default:
		return wire.NewError(&seq, wire.InvalidFormat, "unsupported", fmt.Sprintf("controller does not handle %q", msg.GetType()))
	}
}

func wireVirtualSources(engine *routing.Engine, specs []config.VirtualSourceSpec) {
	for _, spec := range specs {
		var vs virtualsource.VirtualSource
		switch spec.Kind {
		case "solid":
			vs = &virtualsource.SolidVirtualSource{
				PixelCount: spec.PixelCount,
				Color:      [3]byte{byte(spec.Color[0]), byte(spec.Color[1]), byte(spec.Color[2])},
				RateHz:     spec.RateHz,
			}
		case "rainbow":
			period := spec.PeriodSeconds
			if period <= 0 {
				period = 10
			}
			vs = &virtualsource.RainbowVirtualSource{
				PixelCount: spec.PixelCount,
				Period:     time.Duration(period * float64(time.Second)),
				RateHz:     spec.RateHz,
			}
		case "scalar":
			start := time.Now()
			vs = &virtualsource.ScalarVirtualSource{
				PixelCount: spec.PixelCount,
				RateHz:     spec.RateHz,
				Min:        -1,
				Max:        1,
				Palette: []virtualsource.PaletteStop{
					{Pos: 0, Color: [3]byte{0, 0, 160}},
					{Pos: 0.5, Color: [3]byte{0, 160, 0}},
					{Pos: 1, Color: [3]byte{160, 0, 0}},
				},
				Value: func(now time.Time) float64 {
					return math.Sin(now.Sub(start).Seconds())
				},
			}
		default:
			nlog.Warningf("ltp-controller: virtual source %s: unknown kind %q, skipping", spec.ID, spec.Kind)
			continue
		}
		engine.RegisterVirtualSource(spec.ID, spec.Name, vs)
	}
}

func wireRoutes(engine *routing.Engine, specs []config.RouteSpec) {
	for _, spec := range specs {
		if !spec.Enabled {
			nlog.Infof("ltp-controller: route %s disabled in config, skipping", spec.ID)
			continue
		}
		if _, err := engine.CreateRoute(spec.Name, spec.SourceID, spec.SinkID, spec.RouteMode(), spec.BuildTransform()); err != nil {
			nlog.Warningf("ltp-controller: route %s: %v", spec.ID, err)
		}
	}
}
