// Package physics derives the numerical constants of a two-component BEC
// simulation from its physical description.
//
// A [Model] carries SI inputs (atom number, scattering lengths, trap frequencies,
// loss rates, grid resolution). [NewConstants] turns it into an immutable
// [Constants] value holding the grid, k-space vectors, trap potential, coupling
// and loss coefficients, and the truncated-Wigner projector mask.
//
//	c, err := physics.NewConstants(physics.DefaultModel())
//	cloud, err := physics.NewThomasFermi(c).CreateCloud()
//
// All frequencies stored in Constants are angular, in rad/s, and already divided
// by hbar, so the evolution engine never touches hbar itself.
package physics
