package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/sercom.go/pkg/board"
	"github.com/robotalks/sercom.go/pkg/bridge"
	"github.com/robotalks/sercom.go/pkg/bridge/mqtt"
	"github.com/robotalks/sercom.go/pkg/bridge/port"
	"github.com/robotalks/sercom.go/pkg/bridge/stream"
	"github.com/robotalks/sercom.go/pkg/bridge/websocket"
	"github.com/robotalks/sercom.go/pkg/console"
	"github.com/robotalks/sercom.go/pkg/env"
	"github.com/robotalks/sercom.go/pkg/framework"
	"github.com/robotalks/sercom.go/pkg/link"
	"github.com/robotalks/sercom.go/pkg/sercom"
	"github.com/robotalks/sercom.go/pkg/sercom/sim"
	"github.com/robotalks/sercom.go/pkg/serial"
)

// Request codes answered by the link app.
const (
	CodeEcho  byte = 0x02
	CodeBoard byte = 0x04
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := env.NewConfig()
	b, err := conf.LoadBoard()
	if err != nil {
		glog.Exit(err)
	}
	inst, err := board.Build(b, sim.New(), sercom.DefaultPool())
	if err != nil {
		glog.Exit(err)
	}
	defer inst.Close()

	runner := framework.NewRunner().HandleSignals()
	loop := framework.NewLoop()
	loop.Interval = conf.LoopInterval
	loop.Add(inst)
	if err := setup(runner.Context(), conf, inst, loop); err != nil {
		glog.Exit(err)
	}
	glog.Infof("board %s: %d controllers", b.Name, len(b.Controllers))
	if err := runner.Go(loop).Wait(); err != nil {
		glog.Exit(err)
	}
}

func setup(ctx context.Context, conf *env.Config, inst *board.Instance, loop *framework.Loop) error {
	b := inst.Board
	var mqttBridge *mqtt.Bridge
	if b.MQTT != "" {
		q, err := mqtt.NewQueueFromURL(b.MQTT, conf.MQTTClientID())
		if err != nil {
			return err
		}
		mqttBridge = mqtt.New(q, b.Name)
		reporter := bridge.NewReporter(b.Name, mqttBridge, inst.Snapshotters()...)
		reporter.Interval = conf.ReportInterval
		loop.AddRunnable(mqttBridge)
		loop.Add(reporter)
	}
	var wsServer *websocket.Server
	if b.WebSocket != "" {
		wsServer = websocket.NewServer(b.WebSocket)
		if mqttBridge != nil {
			wsServer.Tap = mqttBridge
		}
		loop.AddRunnable(wsServer)
	}

	for _, c := range b.Controllers {
		ctl, ok := inst.UARTs[c.Name]
		if !ok {
			continue
		}
		var tap bridge.Tap
		if mqttBridge != nil {
			tap = mqttBridge
		}
		free := false
		switch {
		case c.App == board.AppConsole:
			loop.AddController(framework.PrLvApp, console.New(c.Name, ctl, nil))
		case c.App == board.AppLink:
			server := link.NewServer(link.New(serial.NewStream(ctx, ctl.Controller)))
			server.
				Handle(CodeEcho, func(ctx context.Context, data []byte) ([]byte, error) {
					return data, nil
				}).
				Handle(CodeBoard, func(ctx context.Context, data []byte) ([]byte, error) {
					return []byte(b.Name), nil
				})
			loop.AddRunnable(framework.NamedRun("link:"+c.Name, server))
		case c.TCP != "":
			s := stream.NewServer(c.Name, c.TCP, ctl)
			s.Framed, s.Tap = c.Framed, tap
			loop.AddRunnable(s)
		case c.Port != "":
			rw, err := port.Open(c.Port, ctl.Peripheral)
			if err != nil {
				return fmt.Errorf("%s: %w", c.Name, err)
			}
			pump := bridge.NewPump(c.Name, ctl, rw)
			pump.Tap = tap
			loop.AddRunnable(pump)
		default:
			free = true
		}

		switch {
		case free && wsServer != nil:
			wsServer.Add(c.Name, ctl)
			if mqttBridge != nil {
				mqttBridge.Control(c.Name, ctl)
			}
		case free && mqttBridge != nil:
			loop.AddRunnable(mqttBridge.Attach(c.Name, ctl))
		case mqttBridge != nil:
			mqttBridge.Control(c.Name, ctl)
		}
	}
	return nil
}
