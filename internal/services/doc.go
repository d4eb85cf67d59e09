// Package services wires configuration into the running pipeline.
//
// New builds the embedding provider, opens the live index generation into a
// swappable handle, and assembles the retriever, confidence gate, composer
// and answer service on top. The CLI and the daemon share it so both serve
// identical semantics from the same config.
package services
