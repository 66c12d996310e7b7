// Package session houses concrete implementations of the core.SessionStore.
// The interface itself lives in the core package to centralize domain
// contracts; keeping only implementations here prevents higher level packages
// (engine, facade) from depending on concrete storage.
//
// Additional backends live in sub-packages (see session/redis) so the wiring
// layer alone decides which implementation to instantiate.
package session
