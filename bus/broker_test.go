package bus_test

import (
	"testing"
	"time"

	"github.com/vsariola/mixrack/bus"
)

func TestTrySendDropsWhenFull(t *testing.T) {
	c := make(chan int, 1)
	if !bus.TrySend(c, 1) {
		t.Fatal("send to empty channel failed")
	}
	if bus.TrySend(c, 2) {
		t.Fatal("send to full channel succeeded")
	}
	if v, ok := bus.TimeoutReceive(c, time.Second); !ok || v != 1 {
		t.Fatalf("received %v, %v", v, ok)
	}
	if _, ok := bus.TimeoutReceive(c, 10*time.Millisecond); ok {
		t.Fatal("receive from empty channel succeeded")
	}
}

func TestBrokerClose(t *testing.T) {
	b := bus.NewBroker()
	if !bus.TrySend(b.CloseEngine, struct{}{}) {
		t.Fatal("first close request dropped")
	}
	if bus.TrySend(b.CloseEngine, struct{}{}) {
		t.Fatal("second close request accepted")
	}
}
