// Package dedupe suppresses duplicate message submissions using a
// time-based cache, so a double-clicked send or a retried request does not
// append the same user turn twice.
package dedupe
