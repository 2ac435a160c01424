// Package service provides the business logic layer of the simulator.
//
// The service package implements:
//   - Session management on top of a pluggable SessionManager
//   - Scenario catalogue access through a ScenarioManager
//   - Vehicle placement with validation against the session's field
//   - Simulation runs and run counters
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the simulation engine. A session owns a scenario (field plus vehicle
// definitions) and the last completed run. Every run builds a fresh engine
// from the scenario, so running twice gives identical results.
//
// Usage:
//
//	sessionMgr := session.NewManager(log)
//	scenarioMgr, _ := config.NewManager("scenarios")
//	svc := service.NewSimulationService(sessionMgr, scenarioMgr, log)
//
//	info, err := svc.CreateBlankSession(ctx, 10, 10)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	_, err = svc.AddVehicle(ctx, info.ID, engine.VehicleSpec{
//		Name: "A", X: 1, Y: 2, Direction: "N", Commands: "FFRFFFFRRL",
//	})
//	run, err := svc.RunSimulation(ctx, info.ID)
//	fmt.Print(run.Report)
package service
