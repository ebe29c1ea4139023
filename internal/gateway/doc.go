// Package gateway orchestrates the amity-gateway server components.
//
// # Overview
//
// The gateway package is the central coordinator of the amity-gateway server.
// It owns and manages all major components: the HTTP server, the live channel
// server, the connection registry, the friendship and messaging services, and
// the data store.
//
// # Gateway Struct
//
// The Gateway struct is the main entry point:
//
//	type Gateway struct {
//	    config      *config.Config
//	    store       store.Store
//	    registry    *registry.Registry
//	    friendships *friendship.Service
//	    messaging   *messaging.Service
//	    notifier    *Notifier
//	    ops         *Ops
//	    channel     *ChannelServer
//	    httpServer  *http.Server
//	    // ... and more
//	}
//
// # Shared Mutation Core
//
// Every mutation flows through Ops regardless of transport. Both the live
// channel dispatcher and the HTTP handlers call the same Ops method, which
// verifies the acting user, invokes the domain service, and pushes events
// through the Notifier. The two transports cannot diverge in behavior.
//
// # Live Channel
//
// Clients connect over a websocket at /channel and exchange JSON envelopes:
//
//	{"id": "req-1", "event": "message.send", "data": {...}}
//
// The first frame must be an auth frame carrying a bearer token. Every
// request envelope is answered by an ack frame; server-initiated events
// arrive as push frames with no id. One live connection per user: a new
// connection supersedes the old one.
//
// # HTTP API
//
// The fallback API in api.go mirrors the channel operations:
//
//   - POST /api/friendships - Send a friend request
//   - POST /api/friendships/{id}/{action} - Accept, reject, or cancel
//   - GET /api/contacts - List relationships with viewer-relative status
//   - GET /api/friends - List accepted friends
//   - POST /api/messages - Send a direct message
//   - GET /api/conversations/{userId} - Fetch a conversation (marks it read)
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check
//
// # Event Fan-Out
//
// The Notifier delivers events to the counterpart's live connection when one
// is registered. Delivery is best-effort: offline users and full send
// buffers drop the push, and clients reconcile through the fallback API.
//
// # Lifecycle
//
// Start the gateway:
//
//	gw, err := gateway.New(cfg, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	go gw.Run(ctx)
//
// Graceful shutdown:
//
//	cancel()
//
// # Key Files
//
//   - gateway.go: Gateway struct, initialization, Run/Shutdown
//   - ops.go: Shared mutation core used by both transports
//   - channel.go: Websocket live channel server
//   - api.go: HTTP fallback handlers
//   - events.go: Event names, wire views, and the Notifier
package gateway
