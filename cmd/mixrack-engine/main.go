package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/vsariola/mixrack/backend"
	"github.com/vsariola/mixrack/backend/gomidi"
	"github.com/vsariola/mixrack/bus"
	"github.com/vsariola/mixrack/config"
	"github.com/vsariola/mixrack/config/badgerkv"
	"github.com/vsariola/mixrack/engine"
	"github.com/vsariola/mixrack/rpc"
	"github.com/vsariola/mixrack/version"
)

func list(s string) []string {
	if s == "" {
		return nil
	}
	ret := strings.Split(s, ",")
	for i := range ret {
		ret[i] = strings.TrimSpace(ret[i])
	}
	return ret
}

func main() {
	addr := flag.String("addr", ":"+rpc.DefaultPort, "Address to listen on.")
	hosts := flag.String("hosts", "Default", "Comma separated list of audio hosts.")
	outputs := flag.String("outputs", "Default", "Comma separated list of output devices.")
	inputs := flag.String("inputs", "Default", "Comma separated list of input devices.")
	outStreams := flag.String("output-streams", "Default", "Comma separated list of output streams.")
	inStreams := flag.String("input-streams", "Default", "Comma separated list of input streams.")
	channels := flag.Int("channels", 2, "Number of audio channels. Routes to channels beyond this are rejected. 0 means no limit.")
	configPath := flag.String("config", "", "Settings file. Defaults to mixrack/config.yml in the user config directory.")
	badgerDir := flag.String("badger", "", "Keep the settings in a Badger database in this directory instead of a YAML file.")
	midiInput := flag.String("midi-input", "", "Listen to the MIDI input with this index or name prefix.")
	verbose := flag.Bool("verbose", false, "Log debug messages.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String())
		os.Exit(0)
	}
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	broker := bus.NewBroker()
	eng := engine.New(broker, engine.Options{
		Hosts:         list(*hosts),
		OutputDevices: list(*outputs),
		InputDevices:  list(*inputs),
		OutputStreams: list(*outStreams),
		InputStreams:  list(*inStreams),
		Channels:      *channels,
		Logger:        logger,
	})
	if err := eng.LoadConfig(config.LoadDefaults().Values()); err != nil {
		log.Fatal("could not load default settings: ", err)
	}
	persister, closePersister, err := openPersister(*configPath, *badgerDir)
	if err != nil {
		log.Fatal(err)
	}
	defer closePersister()
	if err := eng.LoadConfig(persister); err != nil {
		logger.Warn("could not load settings", "err", err)
	}

	mux := backend.NewMux()
	eng.Register(mux)
	midiContext := gomidi.NewContext(func(e gomidi.NoteEvent) {
		if e.On {
			eng.NoteOn(e.Key, e.Velocity)
		} else {
			eng.NoteOff(e.Key)
		}
	})
	defer midiContext.Close()
	midiContext.Register(mux)
	if *midiInput != "" {
		if name, err := midiContext.Start(*midiInput); err != nil {
			logger.Warn("could not open MIDI input", "port", *midiInput, "err", err)
		} else {
			logger.Info("listening to MIDI input", "name", name)
		}
	}

	bridge := &rpc.Bridge{
		Deliver:     func(msg bus.Message) bool { return bus.TrySend(broker.ToEngine, msg) },
		Backend:     mux,
		OnSubscribe: eng.Announce,
		Logger:      logger,
	}
	server, err := rpc.Serve(*addr, bridge)
	if err != nil {
		log.Fatal(err)
	}
	logger.Info("engine listening", "addr", server.Addr(), "version", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go eng.Run(ctx)
loop:
	for {
		select {
		case msg := <-broker.ToModel:
			bridge.Publish(msg.Message)
		case <-broker.FinishedEngine:
			break loop
		}
	}
	server.Close()
	if err := eng.SaveConfig(persister); err != nil {
		logger.Error("could not save settings", "err", err)
	}
}

func openPersister(path, badgerDir string) (config.Persister, func(), error) {
	if badgerDir != "" {
		db, err := badgerkv.Open(badgerDir)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open settings database: %w", err)
		}
		return db, func() { db.Close() }, nil
	}
	if path != "" {
		return config.YAMLFile{Path: path}, func() {}, nil
	}
	f, err := config.UserFile()
	if err != nil {
		return nil, nil, fmt.Errorf("could not find the user config directory: %w", err)
	}
	return f, func() {}, nil
}
