// Package api provides the HTTP REST API of the simulator.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session ({"scenario_id": "..."} or {"width": W, "height": H})
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Get a session
//   - DELETE /api/sessions/{id} - Delete a session
//
// Simulation:
//   - POST /api/sessions/{id}/vehicles - Add a vehicle ({"name","x","y","direction","commands"})
//   - POST /api/sessions/{id}/run - Run the simulation (?ticks=false omits snapshots)
//   - POST /api/sessions/{id}/reset - Start over on the same field
//   - GET /api/sessions/{id}/result - Last run of the session
//
// Scenarios:
//   - GET /api/scenarios - List the catalogue
//   - POST /api/scenarios - Save a scenario
//   - GET /api/scenarios/{name} - Get a scenario
//
// Other:
//   - GET /api/metrics - Run counters
//   - GET /ws?session={id} - Live run events (see transport/websocket)
//   - GET /health - Liveness
//
// Errors are returned as {"error": "..."} with 404 for unknown sessions,
// scenarios and runs, 400 for invalid input and 500 otherwise.
package api
