// Package engine provides the core simulation logic for the auto-driving simulation.
//
// The engine package implements:
//   - Compass headings and rotation arithmetic
//   - Vehicles executing one command per tick against field bounds
//   - Lock-step tick advancement across all registered vehicles
//   - Same-cell collision detection and vehicle deactivation
//   - Per-tick snapshots and the final report
//   - Scenario definition, validation and loading
//
// Core Types:
//
// Engine advances a Field and an ordered set of Vehicles. Registration order is
// significant: it decides which vehicle arrived first at a cell within a tick.
// Scenario is the JSON description a collaborator supplies; Scenario.NewEngine
// builds a fresh engine from it for every run.
//
// Usage:
//
//	scenario, err := engine.LoadScenario("scenarios/crossing.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	eng, err := scenario.NewEngine()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := eng.Run()
//	for _, v := range result.Final {
//		fmt.Println(v)
//	}
//
// Rules:
//
// Each tick every active vehicle with a remaining command executes the command
// at the tick's index. A forward move that would leave the field is ignored.
// When a vehicle lands on a cell another vehicle already moved to during the
// same tick, both vehicles are deactivated and the collision is reported.
// Vehicles that swap cells or land on a vehicle that did not move this tick
// do not collide.
package engine
