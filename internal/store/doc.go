// Package store persists every pipeline entity in a single sqlite database
// and owns the lifecycle transition table. All mutations that cross entity
// boundaries happen in transactions here; callers never see a half-applied
// state.
package store
