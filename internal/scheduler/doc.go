// Package scheduler runs the background poll loops that find due entities
// and hand them to a Handler.
//
// A Poller assumes it is the only active poller for its entity kind. Commits
// are conditional, so two pollers sharing a store cannot both deliver the
// same due instant, but they are not coordinated beyond that: horizontal
// scaling needs a leader election or per-entity lease in front of Start.
package scheduler
