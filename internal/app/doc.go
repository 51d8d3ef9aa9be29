// Package app wires configuration, cache, remote repositories and the solver
// together and runs one command against them, decoupled from any specific
// entrypoint like a CLI.
package app
