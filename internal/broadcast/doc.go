// Package broadcast relays sensor messages to live viewers.
//
// The Hub keeps the viewer set behind a mutex that is only held while the
// set changes or is copied. Each viewer owns a writer goroutine with a
// buffered queue, so a slow or broken viewer never delays the others. A
// write failure or a full queue unregisters that viewer only.
package broadcast
