// Package socket carries JSON event frames between the daemon and browser
// clients over websockets.
//
// Every frame is {"event", "id", "data"}. A frame with an id is a request and
// is answered with an "ack" frame carrying the same id. The Hub dispatches
// requests to registered handlers in arrival order per connection, fans
// broadcasts out to every connection through bounded per-connection queues,
// and notifies disconnect listeners once a connection is gone.
package socket
