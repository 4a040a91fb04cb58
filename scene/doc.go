// Package scene tracks the load state of named scenes shared by all viewers.
//
// A scene is fetched and parsed by the backend at most once per name,
// however many viewers reference it. Names are compared after Unicode NFC
// normalization, so "café" spelled with a combining accent and with a
// precomposed é refer to the same scene.
//
// Loading is two-phase: Request records the name and returns immediately,
// and Drain starts the fetch and parse of everything requested since the
// last drain. The scheduler drains once per frame tick.
//
// A scene whose fetch or parse failed is in state Failed. Failed is
// terminal and counts as ready, so viewers render the backend's error state
// instead of waiting forever.
package scene
