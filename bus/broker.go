package bus

import "time"

type (
	// Broker connects the control surface model and the engine within one
	// process, with one buffered channel per recipient. Sends are expected to
	// use TrySend, so a full channel drops the message: delivery is at most
	// once, as on any other event bus transport.
	//
	// For stopping the engine goroutine, CloseEngine has a capacity of 1, so
	// an empty struct can always be sent to it without blocking; if it is
	// full, closing has already been requested. FinishedEngine is closed by
	// the engine once it has stopped:
	//    select {
	//      case <-FinishedEngine:
	//      case <-time.After(3 * time.Second):
	//    }
	Broker struct {
		ToModel  chan MsgToModel
		ToEngine chan Message

		CloseEngine    chan struct{}
		FinishedEngine chan struct{}
	}

	// MsgToModel is a message sent to the model goroutine. Either Message is
	// an event from the engine, or Continuation is a function that should be
	// run in the model goroutine, e.g. the completion of a backend call.
	MsgToModel struct {
		Message      Message
		Continuation func()
	}
)

const brokerCapacity = 1024

func NewBroker() *Broker {
	return &Broker{
		ToModel:        make(chan MsgToModel, brokerCapacity),
		ToEngine:       make(chan Message, brokerCapacity),
		CloseEngine:    make(chan struct{}, 1),
		FinishedEngine: make(chan struct{}),
	}
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive is a helper function to block until a value is received from a
// channel, or timing out after t. ok will be false if the timeout occurred or
// if the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
