// Package ranking projects profiles into listing order.
//
// A Projector is built from a catalog snapshot and the default plan. It is a
// pure function of its inputs and the instant passed in, so the same profiles
// always rank the same way and pagination stays stable.
package ranking
