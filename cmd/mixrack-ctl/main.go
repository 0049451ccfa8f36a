package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/vsariola/mixrack"
	"github.com/vsariola/mixrack/backend"
	"github.com/vsariola/mixrack/bus"
	"github.com/vsariola/mixrack/console"
	"github.com/vsariola/mixrack/report"
	"github.com/vsariola/mixrack/rpc"
	"github.com/vsariola/mixrack/version"
)

const usage = `Usage: mixrack-ctl [flags] command [arguments]

Commands:
  status                               print the rack
  add-strip                            add a strip with default routes
  remove-strip STRIP                   remove a strip
  clear                                remove all strips
  set-effect STRIP SLOT TYPE           put a new effect in a slot
  remove-effect STRIP SLOT             empty a slot
  set-value STRIP SLOT CONTROL VALUE   set an effect control
  set-route STRIP in|out ROUTE         route a strip, e.g. "stereo(0, 1)", "bus(drums)", "Sine"
  set-gain STRIP GAIN                  set the gain of a strip
  nudge STRIP SLOT CONTROL DELTA       change an effect control by DELTA
  nudge-gain STRIP DELTA               change the gain of a strip by DELTA
  hosts                                list the audio hosts
  set-host NAME                        select the audio host
  outputs | inputs                     list the audio devices
  set-output | set-input NAME          select an audio device
  buffer-size out|in SIZE              set a buffer size
  play-sample PATH                     play a sample
  midi-list                            list the MIDI inputs
  midi-start PORT | midi-stop          listen to a MIDI input
  save FILE | load FILE                write or read a session file
  effects                              list the effect types

Flags:
`

var errTimeout = errors.New("timed out waiting for the engine")

type ctl struct {
	ctx     context.Context
	model   *console.Model
	broker  *bus.Broker
	timeout time.Duration
}

func main() {
	addr := flag.String("addr", "localhost:"+rpc.DefaultPort, "Address of the engine.")
	timeout := flag.Duration("timeout", 3*time.Second, "How long to wait for the engine.")
	watch := flag.Bool("watch", false, "After the command, keep printing the messages from the engine.")
	tmpl := flag.String("t", "", "Print the rack with the template in this file instead of the standard one.")
	verbose := flag.Bool("verbose", false, "Log debug messages.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String())
		os.Exit(0)
	}
	if flag.NArg() == 0 && !*watch {
		flag.Usage()
		os.Exit(2)
	}
	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	renderer, err := newRenderer(*tmpl)
	if err != nil {
		log.Fatal(err)
	}
	client, err := rpc.Dial(*addr)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()
	client.Logger = logger
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	broker := bus.NewBroker()
	go func() {
		if err := client.Attach(ctx, broker); err != nil && ctx.Err() == nil {
			logger.Error("connection to the engine lost", "err", err)
			stop()
		}
	}()
	c := &ctl{
		ctx:     ctx,
		model:   console.New(broker, console.Options{Backend: client, Logger: logger}),
		broker:  broker,
		timeout: *timeout,
	}
	if err := c.sync(); err != nil {
		log.Fatal(err)
	}
	if flag.NArg() > 0 {
		show, err := c.run(flag.Arg(0), flag.Args()[1:])
		for _, m := range c.model.Messages() {
			fmt.Fprintf(os.Stderr, "%s: %s\n", m.Kind, m.Text)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if show {
			if err := c.sync(); err != nil {
				log.Fatal(err)
			}
			if err := renderer.Render(os.Stdout, c.model.Rack()); err != nil {
				log.Fatal(err)
			}
		}
	}
	if *watch {
		c.watch()
	}
}

func newRenderer(path string) (*report.Renderer, error) {
	if path == "" {
		return report.New()
	}
	return report.NewFromFile(path)
}

// await processes the messages to the model until cond holds for one of
// them.
func (c *ctl) await(cond func(bus.MsgToModel) bool) error {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	for {
		select {
		case msg := <-c.broker.ToModel:
			c.model.ProcessMsg(msg)
			if cond(msg) {
				return nil
			}
		case <-timer.C:
			return errTimeout
		case <-c.ctx.Done():
			return c.ctx.Err()
		}
	}
}

// sync brings the local rack up to date with the engine.
func (c *ctl) sync() error {
	c.model.RequestSnapshotAction().Do()
	return c.await(func(msg bus.MsgToModel) bool { return msg.Message.Topic == bus.RackSnapshot })
}

// wait waits for the backend calls made so far.
func (c *ctl) wait() error {
	if c.model.PendingCalls() == 0 {
		return nil
	}
	return c.await(func(bus.MsgToModel) bool { return c.model.PendingCalls() == 0 })
}

func (c *ctl) watch() {
	for {
		select {
		case msg := <-c.broker.ToModel:
			c.model.ProcessMsg(msg)
			if msg.Continuation == nil {
				fmt.Println(msg.Message)
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func ints(args []string, n int) ([]int, error) {
	if len(args) < n {
		return nil, fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	ret := make([]int, n)
	for i := range ret {
		v, err := strconv.Atoi(args[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		ret[i] = v
	}
	return ret, nil
}

func need(args []string, n int) error {
	if len(args) < n {
		return fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	return nil
}

func rejected(what string) error { return fmt.Errorf("%s rejected, see mixrack-ctl status", what) }

// run executes a command. show tells if the rack should be printed
// afterwards.
func (c *ctl) run(cmd string, args []string) (show bool, err error) {
	m := c.model
	printNames := func(names backend.Names, err error) {
		if err == nil {
			for _, n := range names {
				fmt.Println(n)
			}
		}
	}
	switch cmd {
	case "status":
		return true, nil
	case "add-strip":
		m.AddStrip()
		return true, nil
	case "remove-strip":
		a, err := ints(args, 1)
		if err != nil {
			return false, err
		}
		if !m.RemoveStrip(a[0]) {
			return false, rejected(cmd)
		}
		return true, nil
	case "clear":
		m.ClearStrips()
		return true, nil
	case "set-effect":
		a, err := ints(args, 2)
		if err != nil {
			return false, err
		}
		if err := need(args, 3); err != nil {
			return false, err
		}
		if !m.SetEffect(a[0], a[1], args[2]) {
			return false, rejected(cmd)
		}
		return true, nil
	case "remove-effect":
		a, err := ints(args, 2)
		if err != nil {
			return false, err
		}
		if !m.RemoveEffect(a[0], a[1]) {
			return false, rejected(cmd)
		}
		return true, nil
	case "set-value":
		a, err := ints(args, 2)
		if err != nil {
			return false, err
		}
		if err := need(args, 4); err != nil {
			return false, err
		}
		v, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			return false, err
		}
		if !m.SetControlValue(a[0], a[1], args[2], v) {
			return false, rejected(cmd)
		}
		return true, nil
	case "set-route":
		a, err := ints(args, 1)
		if err != nil {
			return false, err
		}
		if err := need(args, 3); err != nil {
			return false, err
		}
		r, err := mixrack.ParseRoute(strings.Join(args[2:], " "))
		if err != nil {
			return false, err
		}
		if !m.SetRoute(a[0], args[1] == "in", r) {
			return false, rejected(cmd)
		}
		return true, nil
	case "set-gain":
		a, err := ints(args, 1)
		if err != nil {
			return false, err
		}
		if err := need(args, 2); err != nil {
			return false, err
		}
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return false, err
		}
		if !m.SetGain(a[0], v) {
			return false, rejected(cmd)
		}
		return true, nil
	case "nudge":
		a, err := ints(args, 2)
		if err != nil {
			return false, err
		}
		if err := need(args, 4); err != nil {
			return false, err
		}
		d, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			return false, err
		}
		if !m.ControlValue(a[0], a[1], args[2]).Add(d) {
			return false, rejected(cmd)
		}
		return true, nil
	case "nudge-gain":
		a, err := ints(args, 1)
		if err != nil {
			return false, err
		}
		if err := need(args, 2); err != nil {
			return false, err
		}
		d, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return false, err
		}
		if !m.StripGain(a[0]).Add(d) {
			return false, rejected(cmd)
		}
		return true, nil
	case "hosts":
		m.ListHosts(printNames)
	case "outputs":
		m.ListOutputDevices(printNames)
	case "inputs":
		m.ListInputDevices(printNames)
	case "set-host", "set-output", "set-input":
		if err := need(args, 1); err != nil {
			return false, err
		}
		switch cmd {
		case "set-host":
			m.SetHost(args[0], nil)
		case "set-output":
			m.SetOutputDevice(args[0], nil)
		default:
			m.SetInputDevice(args[0], nil)
		}
	case "buffer-size":
		if err := need(args, 2); err != nil {
			return false, err
		}
		size, err := strconv.Atoi(args[1])
		if err != nil {
			return false, err
		}
		if args[0] == "in" {
			m.SetInputBufferSize(size, nil)
		} else {
			m.SetOutputBufferSize(size, nil)
		}
	case "play-sample":
		if err := need(args, 1); err != nil {
			return false, err
		}
		m.PlaySample(args[0], nil)
		show = true
	case "midi-list":
		m.MIDIList(nil)
	case "midi-start":
		if err := need(args, 1); err != nil {
			return false, err
		}
		m.MIDIStart(args[0], nil)
	case "midi-stop":
		m.MIDIStop(nil)
	case "save":
		if err := need(args, 1); err != nil {
			return false, err
		}
		f, err := os.Create(args[0])
		if err != nil {
			return false, err
		}
		defer f.Close()
		return false, m.WriteSession(f)
	case "load":
		if err := need(args, 1); err != nil {
			return false, err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return false, err
		}
		defer f.Close()
		return true, m.ReadSession(f)
	case "effects":
		for _, name := range mixrack.EffectTypeNames() {
			fmt.Println(name)
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %q", cmd)
	}
	return show, c.wait()
}
