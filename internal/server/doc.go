// Package server implements the HTTP side server that runs next to a stream
// connection.
//
// # Endpoints
//
//	GET /healthz   liveness and websocket client count
//	GET /metrics   Prometheus metrics of the protocol engine
//	GET /channels  JSON snapshot of the channel registry
//	GET /ws        websocket stream of client events as JSON text frames
//
// The /ws endpoint subscribes each client to the relay hub. Events are
// pushed as they arrive; a client too slow to keep up loses messages rather
// than stalling the stream reader.
//
// # Usage
//
//	srv := server.New(&server.Config{Addr: "127.0.0.1:9108"}, hub, collector, c.Snapshot)
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Shutdown(ctx)
//
// # Connection Management
//
// Websocket handlers are tracked so Shutdown can close hijacked connections,
// which http.Server.Shutdown does not, and wait for their goroutines.
package server
