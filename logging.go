package vda

import (
	"log"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/golog"
)

// WithGoLogger routes the resolver's logging through a standard library
// logger.
func (r *Resolver) WithGoLogger(parentLogger *log.Logger) {
	r.WithLogWrapLogger(logwrap.New(golog.Wrap(parentLogger)))
}

// WithLogWrapLogger replaces the resolver's logger. Call before the first
// Resolve; the strategy chain captures the logger at construction.
func (r *Resolver) WithLogWrapLogger(lw logwrap.Logger) {
	r.logger = lw
	r.buildChain()
}
