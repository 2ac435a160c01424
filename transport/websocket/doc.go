// Package websocket streams simulation runs to browser and tool subscribers.
//
// Clients connect to /ws?session=<id> and receive JSON frames for that
// session only:
//
//	{"session_id":"ab12","run_id":"...","event":"collision","tick":7,"data":{...}}
//	{"session_id":"ab12","run_id":"...","event":"tick","tick":7,"data":{"grid":[...]}}
//	{"session_id":"ab12","run_id":"...","event":"complete","tick":10,"data":[...]}
//
// Within a tick, collision frames precede the tick frame. Incoming frames are
// ignored. A central Hub owns the subscriber set; each connection has a read
// and a write goroutine. Slow consumers whose buffer fills are disconnected.
//
// Usage:
//
//	hub := websocket.NewHub(log)
//	go hub.Run(ctx)
//
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
//	hub.PublishRun(sessionID, runID, result)
package websocket
