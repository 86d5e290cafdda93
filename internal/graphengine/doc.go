// Package graphengine defines the call boundary to the external
// graph-reasoning engine: the collaborator that performs entity extraction,
// embedding, and graph writes. Only the interface and its wire types live
// here; concrete clients live under internal/platform.
package graphengine
