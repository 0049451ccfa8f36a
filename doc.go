// Package mixrack is the routing and parameter model of a live mixing
// console: a Rack of Strips, each with an input Route, a fixed chain of
// Effect slots and an output Route.
//
// The model is mirrored between a control surface (package console) and an
// audio engine (package engine), which exchange the messages of package bus.
package mixrack
