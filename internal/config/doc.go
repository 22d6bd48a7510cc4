// Package config loads the runtime settings of a tickgrid process from HCL
// files: logging, executor backend and sizing, the run driver and the health
// check server. Values are merged over Default in file order and can be
// overridden afterwards by command-line flags.
package config
