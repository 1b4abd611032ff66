// Package radio drives the device's single radio between access-point and
// station (client) mode.
//
// The Manager owns the RadioState tagged variant exclusively; every
// transition happens through StartAP, Join, or StopAP, which makes illegal
// combinations (for example "joining" while already "connected")
// unrepresentable. At most one scan and one join may be in flight at any
// time - concurrent attempts are rejected immediately with ErrScanBusy /
// ErrJoinBusy rather than queued.
//
// Both blocking operations are self-bounding: Scan and Join run under a
// context deadline and report a timeout outcome instead of hanging, which
// is what keeps the orchestrator's watchdog contract intact.
//
// The actual radio hardware is reached through the Driver interface; the
// platform supplies the real implementation and SimDriver serves
// development and tests.
package radio
