// Package services holds cross-cutting helpers shared by pipeline
// components: the sentinel error taxonomy with stage/operation wrapping,
// and context annotation helpers used to thread asset, stage, lane, and
// correlation identifiers into logs.
//
// Errors produced by stages should be created through Wrap so the
// workflow manager can classify them (retryable, held, or fatal) without
// string matching.
package services
