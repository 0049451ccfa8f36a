//go:build !cgo

package gomidi

import "gitlab.com/gomidi/midi/v2/drivers"

// with no cgo, we cannot use rtmidi
func newDriver() (drivers.Driver, error) {
	return nil, errNoDriver
}
