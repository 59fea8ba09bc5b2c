// Package stages holds the five pipeline stage handlers. Each handler is a
// thin orchestration over the capability interfaces so tests can swap the
// remote services for fakes.
package stages
