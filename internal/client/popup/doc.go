// Package popup drives the cross-window OAuth handshake.
//
// A handshake opens a small child window at the backend's provider route and
// waits for exactly one of two independent signals:
//
//   - the window was closed (polled every PollInterval), which means the user
//     gave up, or
//   - a message arrived on the Bus from the backend's exact origin, addressed
//     to this handshake's nonce and carrying the provider result.
//
// Whichever signal is observed first wins. A resolver guard makes the first
// resolution final and cancels the other watcher, so Run always yields exactly
// one Outcome.
//
// Each Run draws a fresh nonce and hands it to the URL builder, which passes it
// to the backend as the address the completion page must post to. Any process
// on the machine can claim the backend's origin when talking to the loopback
// relay, so a message is trusted only when it carries the nonce and reports
// the exact origin. Everything else is filtered out at the Bus, before it can
// take buffer space, and never resolves the handshake.
//
// Expected results (success, provider rejection, blocked popup, user
// cancellation, timeout) are reported through Outcome. Run returns an error
// only for unexpected conditions such as a malformed message payload.
package popup
