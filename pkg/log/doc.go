/*
Package log provides structured logging for the agent using zerolog.

Init configures the global Logger once at startup (JSON or console output,
level, destination). WithComponent, WithNodeID, and WithWorkloadID derive
child loggers carrying extra fields for call sites that want them; most
call sites chain directly off Logger instead.
*/
package log
