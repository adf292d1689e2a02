// Package comfymobilegraph is the workflow graph session engine behind a
// touch-oriented ComfyUI client. It holds the live, mutable representation of
// a node-graph pipeline, keeps it consistent with its persisted document,
// manages navigation into and out of nested subgraphs, and stages widget
// edits without touching the saved workflow until they are committed.
package comfymobilegraph
