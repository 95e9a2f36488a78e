/*
Package runtime shells out to the container engine's CLI and parses its
tabular and JSON output into structured records. It intentionally talks
to the CLI rather than a client SDK: the tab-delimited listing format,
the lenient unit parsing in Stats, and the line-matching fallback in
Info are all observable only by parsing what the CLI prints.
*/
package runtime
