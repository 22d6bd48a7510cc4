// Package app ties the pieces together into a runtime: one shared State, a
// startup schedule that runs once, a main schedule that runs once per tick,
// and a replaceable run driver deciding when those ticks happen. It is
// decoupled from any specific entrypoint like a CLI or server.
package app
