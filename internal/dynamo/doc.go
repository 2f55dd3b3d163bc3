// Package dynamo provides the core primitives shared by every part of a
// coupled run.
//
// The package defines the contract between the coordinator and the
// independently time-stepped components it drives:
//
//   - [Engine]: the standard stepping contract every component implements
//   - [Value]: the payload exchanged between engines
//   - [QualifiedName]: an engine-scoped variable name ("engine.var")
//   - [Resolver]: turns unqualified names into qualified ones
//   - [Error]: an error tagged with a [Kind] that drives the fatal-vs-isolate policy
//
// # Example
//
//	var eng dynamo.Engine = physics.NewSpringMassEngine()
//	_ = eng.Initialize("waves.yaml")
//	_ = eng.Update(dynamo.AutoStep)
//	pos, _ := eng.GetVar("pos")
//
// # Thread Safety
//
// Engines are NOT thread-safe. The coordinator owns every engine and calls
// them from a single goroutine.
package dynamo
