// Package portal is the top of the firmware: it loads configuration,
// brings up the access point, binds the DNS responder and control server,
// arms the hardware watchdog, and runs the cooperative tick loop until a
// stop signal arrives. Everything below it (radio, dnsd, httpd, watchdog)
// is a component; portal is the only package that sequences them.
package portal
