// Package mcp exposes the simulation to AI agents over the Model Context Protocol.
//
// The Client is a thin proxy: every tool call is translated into a request
// against the REST API of a running server and the JSON answer is rendered as
// text for the agent.
//
// Tools:
//   - create_session: new session from a scenario or an empty field
//   - get_session, list_sessions, reset_session
//   - add_vehicle: place a vehicle with its command string
//   - run_simulation, get_result
//   - list_scenarios
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := client.ServeStdio(); err != nil {
//		log.Fatal(err)
//	}
package mcp
