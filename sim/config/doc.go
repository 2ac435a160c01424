// Package config manages the scenario catalogue.
//
// A catalogue is a directory of JSON scenario files. Each file defines a field
// and the vehicles placed on it:
//
//	{
//	  "name": "crossing",
//	  "description": "Two cars whose paths cross",
//	  "field": {"width": 10, "height": 10},
//	  "vehicles": [
//	    {"name": "A", "x": 1, "y": 2, "direction": "N", "commands": "FFRFFFFRRL"},
//	    {"name": "B", "x": 7, "y": 8, "direction": "W", "commands": "FFLFFFFFFF"}
//	  ]
//	}
//
// The file name without its extension is the scenario ID used to create
// sessions. Scenarios are validated on load and cached; invalid files are
// skipped when listing.
//
// Usage:
//
//	manager, err := config.NewManager("scenarios")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	scenario, err := manager.LoadScenario("crossing")
//	infos, err := manager.ListScenarios()
//
// The default scenario is default.json when present, otherwise the first
// valid scenario, otherwise a built-in two-car scenario.
package config
