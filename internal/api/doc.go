// Package api provides the operations HTTP API and event WebSocket for the
// database core.
//
// Endpoints (all under /api/v1):
//
//	GET /health                          pool liveness, no auth
//	GET /pools                           statistics of every pool
//	GET /pools/{pool}                    statistics of one pool
//	GET /pools/{pool}/tables/{table}     table metadata from the catalog
//	GET /pools/{pool}/migrations         applied and pending migrations
//	GET /ws?token=...                    pool and statement event stream
//
// The stream accepts JSON requests and answers with frames:
//
//	{"type":"subscribe","id":"1","channels":["pool.event","statement.executed"]}
//	{"type":"ack","id":"1","data":{"subscribe":["pool.event","statement.executed"]}}
//	{"type":"event","channel":"pool.event","time":"...","data":{"pool":"main","kind":"opened"}}
//
// Every route except /health requires an HS256 bearer token signed with the
// configured secret. The API is read-only: it never runs caller-supplied SQL.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
