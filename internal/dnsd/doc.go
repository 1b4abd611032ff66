// Package dnsd implements the captive-portal DNS responder.
//
// The responder answers every syntactically valid query - regardless of the
// requested name - with a single A record pointing at the device's own
// address and a short TTL. It does no recursion and holds no zone data;
// redirecting every lookup to the portal page is the entire job.
//
// Wire handling is deliberately minimal: a fixed 12-byte header, exactly
// one question, and a fixed-shape answer using a compression pointer back
// to the question name. Malformed datagrams (truncated header, bad label
// lengths, multi-question packets) are dropped without a reply and without
// disturbing the serve loop.
package dnsd
