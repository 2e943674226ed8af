// Package expiry decouples the detection of an expired session from its
// presentation.
//
// A Notifier is a single-slot callback holder: the HTTP client's expiry
// observer calls Signal, and whichever UI layer is currently mounted has
// registered the callback. Registration is last-writer-wins and is undone
// by the function Register returns, so a stale unmount never clears a
// newer registration.
//
// A Prompt is the boolean latch behind the "session expired" modal.
// Raising it while it is already active does nothing, so any number of
// concurrent 401s produce exactly one presentation. The Prompt forwards
// transitions to a Presenter; Hub is a Presenter that pushes events to
// browser tabs over WebSocket and relays the user's refresh or relogin
// choice back to the session layer.
package expiry
