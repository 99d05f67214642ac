// Package validate probes observed stream candidates over HTTP and turns
// what it finds into structural validation results. Probes run strictly one
// at a time through a serialized queue so the sniffer never competes with
// the page's own playback traffic.
package validate
