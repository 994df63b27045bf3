// Package outbound is reserved for outbound collaborator ports beyond
// logging. The core logs directly through *slog.Logger passed into every
// constructor; there is no outbound collaborator interface to define today.
package outbound
