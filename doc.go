package sluice

// Package sluice provides:
//
// - Chainable, reusable validation/transformation of untrusted input (Chain)
// - Schema-driven object validation with structured, path-aware errors (Schema)
// - Resolution of live domain objects into plain serializable structures (BuildStructure)
// - A shared declarative definition model driving both validation and the
//   JSON/XML codec (ObjectDefinition / codec package)
//
// Design policy:
// - Keep only public APIs in the root package; put detailed implementations under internal/.
// - Place the serializer under codec/, definition-file loading under defs/, and the CLI under cmd/sluice.
// - No ambient globals: object definitions and custom validators live on an
//   explicit *Registry handed to the compiler, builder and codec.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	reg := sluice.NewRegistry()
//	reg.Register(nodeDef)
//	schemas := sluice.CompileSchemas(reg)
//	cleaned, err := schemas["node"].Check(ctx, input)
//
//	st, err := sluice.BuildStructure(ctx, reg, domainObj)
//	xmlText, err := codec.New(reg).ToXML(st)
