// Package ports defines the interfaces the loader and runtime consume.
// Domain logic depends on these abstractions; board-specific or host-specific
// adapters under infrastructure/ implement them.
package ports
