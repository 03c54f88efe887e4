// Package rate implements Redis fixed-window counters for login and refresh
// throttling: INCR, plus EXPIRE on the first hit of a window.
//
// Key layout under the configured prefix:
//
//	<prefix>:rl:login:<identifier>
//	<prefix>:rl:ip:<ip>
//	<prefix>:rl:refresh:<sessionID>
package rate
