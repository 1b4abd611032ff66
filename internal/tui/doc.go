// Package tui implements the operator monitor: a terminal UI that talks to
// a running portal's control server, listing the networks the device can
// see and following radio state changes live over the event stream.
package tui
