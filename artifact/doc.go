// Package artifact archives documents rendered for a session, such as the
// HTML travel plan sent by the mail handler, so they can be served again
// without re-rendering.
//
// Artifacts are addressed by session key and name. Saving under an existing
// name replaces the previous document. Clearing a session removes all of its
// artifacts.
package artifact
