package rpc_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vsariola/mixrack"
	"github.com/vsariola/mixrack/backend"
	"github.com/vsariola/mixrack/bus"
	"github.com/vsariola/mixrack/engine"
	"github.com/vsariola/mixrack/rpc"
)

func serve(t *testing.T, bridge *rpc.Bridge) *rpc.Client {
	t.Helper()
	server, err := rpc.Serve("127.0.0.1:0", bridge)
	if err != nil {
		t.Fatalf("rpc.Serve error: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	client, err := rpc.Dial(server.Addr().String())
	if err != nil {
		t.Fatalf("rpc.Dial error: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSend(t *testing.T) {
	received := make(chan bus.Message, 1)
	client := serve(t, &rpc.Bridge{Deliver: func(msg bus.Message) bool { return bus.TrySend(received, msg) }})
	msg := bus.MustMessage(bus.RemoveStrip, bus.RemoveStripPayload{Strip: 2})
	if err := client.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	got, ok := bus.TimeoutReceive(received, time.Second)
	if !ok || got.String() != msg.String() {
		t.Fatalf("received %v, want %v", got, msg)
	}
	// the receiver is full now
	if err := client.Send(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if err := client.Send(context.Background(), msg); err == nil {
		t.Fatal("Send to a full queue succeeded")
	}
}

func TestCall(t *testing.T) {
	mux := backend.NewMux()
	backend.HandleFunc(mux, backend.SetHost, func(_ context.Context, a backend.NameArgs) (any, error) {
		if a.Name == "" {
			return nil, errors.New("no name")
		}
		return backend.Status{Message: "host set to " + a.Name, Value: a.Name}, nil
	})
	client := serve(t, &rpc.Bridge{Backend: mux})
	var status backend.Status
	if err := client.Call(context.Background(), backend.SetHost, backend.NameArgs{Name: "JACK"}, &status); err != nil {
		t.Fatal(err)
	}
	if status.Value != "JACK" || status.Message != "host set to JACK" {
		t.Fatalf("status %+v", status)
	}
	if err := client.Call(context.Background(), backend.SetHost, backend.NameArgs{}, &status); err == nil || err.Error() != "no name" {
		t.Fatalf("error %v, want no name", err)
	}
	if err := client.Call(context.Background(), backend.MIDIList, nil, nil); err == nil {
		t.Fatal("unknown command succeeded")
	}
}

func TestSubscribe(t *testing.T) {
	var announced atomic.Int32
	bridge := &rpc.Bridge{OnSubscribe: func() { announced.Add(1) }}
	client := serve(t, bridge)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan bus.Message, 16)
	go client.Subscribe(ctx, func(msg bus.Message) { got <- msg })
	deadline := time.Now().Add(time.Second)
	for bridge.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no subscriber")
		}
		time.Sleep(time.Millisecond)
	}
	if announced.Load() != 1 {
		t.Fatalf("OnSubscribe called %d times, want 1", announced.Load())
	}
	bridge.Publish(bus.MustMessage(bus.StripsCleared, nil))
	bridge.Publish(bus.MustMessage(bus.ThreadState, true))
	for _, want := range []bus.Topic{bus.StripsCleared, bus.ThreadState} {
		msg, ok := bus.TimeoutReceive(got, 2*time.Second)
		if !ok || msg.Topic != want {
			t.Fatalf("got %v, want %s", msg, want)
		}
	}
	cancel()
	deadline = time.Now().Add(2 * time.Second)
	for bridge.Subscribers() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not removed")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAttach(t *testing.T) {
	engineSide := make(chan bus.Message, 16)
	bridge := &rpc.Bridge{Deliver: func(msg bus.Message) bool { return bus.TrySend(engineSide, msg) }}
	client := serve(t, bridge)
	b := bus.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Attach(ctx, b) }()
	b.ToEngine <- bus.MustMessage(bus.ClearStrips, nil)
	msg, ok := bus.TimeoutReceive(engineSide, time.Second)
	if !ok || msg.Topic != bus.ClearStrips {
		t.Fatalf("engine got %v", msg)
	}
	for bridge.Subscribers() == 0 {
		time.Sleep(time.Millisecond)
	}
	bridge.Publish(bus.MustMessage(bus.StripsCleared, nil))
	reply, ok := bus.TimeoutReceive(b.ToModel, 2*time.Second)
	if !ok || reply.Message.Topic != bus.StripsCleared {
		t.Fatalf("model got %v", reply.Message)
	}
	cancel()
	if _, ok := bus.TimeoutReceive(done, 2*time.Second); !ok {
		t.Fatal("Attach did not return")
	}
}

func TestAttachSurvivesFullEngineQueue(t *testing.T) {
	var delivered atomic.Int32
	bridge := &rpc.Bridge{Deliver: func(bus.Message) bool {
		delivered.Add(1)
		return false
	}}
	client := serve(t, bridge)
	b := bus.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- client.Attach(ctx, b) }()
	drag := bus.SetEffectValuePayload{Index: 0, ValueName: "gain", ValueKind: "float"}
	for i := 0; i < 3; i++ {
		drag.Value = float64(i)
		b.ToEngine <- bus.MustMessage(bus.SetEffectValue, drag)
	}
	deadline := time.Now().Add(2 * time.Second)
	for delivered.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("%d messages reached the bridge, want 3", delivered.Load())
		}
		select {
		case err := <-done:
			t.Fatalf("Attach returned after a dropped message: %v", err)
		case <-time.After(time.Millisecond):
		}
	}
	for bridge.Subscribers() == 0 {
		time.Sleep(time.Millisecond)
	}
	bridge.Publish(bus.MustMessage(bus.ThreadState, true))
	reply, ok := bus.TimeoutReceive(b.ToModel, 2*time.Second)
	if !ok || reply.Message.Topic != bus.ThreadState {
		t.Fatalf("model got %v after dropped messages", reply.Message)
	}
	if err := client.Send(context.Background(), bus.MustMessage(bus.ClearStrips, nil)); !errors.Is(err, rpc.ErrQueueFull) {
		t.Fatalf("Send to a full queue: %v, want ErrQueueFull", err)
	}
}

func TestAbandonedSubscriberExpires(t *testing.T) {
	bridge := &rpc.Bridge{Expiry: 20 * time.Millisecond}
	server, err := rpc.Serve("127.0.0.1:0", bridge)
	if err != nil {
		t.Fatal(err)
	}
	defer server.Close()
	client, err := rpc.Dial(server.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	subscribed := make(chan error, 1)
	go func() { subscribed <- client.Subscribe(context.Background(), func(bus.Message) {}) }()
	deadline := time.Now().Add(2 * time.Second)
	for bridge.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no subscriber")
		}
		time.Sleep(time.Millisecond)
	}
	// the connection goes away without unsubscribing
	client.Close()
	if _, ok := bus.TimeoutReceive(subscribed, 2*time.Second); !ok {
		t.Fatal("Subscribe did not return after Close")
	}
	deadline = time.Now().Add(3 * time.Second)
	for bridge.Subscribers() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("abandoned subscriber was not dropped")
		}
		bridge.Publish(bus.MustMessage(bus.ThreadState, true))
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubscriberGetsRackAnnounced(t *testing.T) {
	b := bus.NewBroker()
	eng := engine.New(b, engine.Options{})
	eng.Handle(bus.MustMessage(bus.AddStrip, bus.AddStripPayload{ID: "a", Input: mixrack.MonoRoute(0), Output: mixrack.MonoRoute(1)}))
	<-b.ToModel
	bridge := &rpc.Bridge{OnSubscribe: eng.Announce}
	client := serve(t, bridge)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for {
			select {
			case msg := <-b.ToModel:
				bridge.Publish(msg.Message)
			case <-ctx.Done():
				return
			}
		}
	}()
	got := make(chan bus.Message, 16)
	go client.Subscribe(ctx, func(msg bus.Message) { got <- msg })
	for _, want := range []bus.Topic{bus.StripsCleared, bus.StripAnnounced} {
		msg, ok := bus.TimeoutReceive(got, 2*time.Second)
		if !ok || msg.Topic != want {
			t.Fatalf("got %v, want %s", msg, want)
		}
		if want == bus.StripAnnounced {
			var p bus.StripAnnouncedPayload
			if err := msg.Decode(&p); err != nil || p.ID != "a" {
				t.Fatalf("announced %+v, %v", p, err)
			}
		}
	}
}
