// Package console implements the rule console: the service directory, the
// per-service rule lists and the add/delete round trips against the rule
// backend, plus the password gate in front of it.
//
// The console does not draw anything itself. It keeps a View, a model of
// what is on screen, and every change to the View is published as a Patch.
// The web console replays patches into the browser DOM; the terminal
// console reads View.Snapshot.
package console
