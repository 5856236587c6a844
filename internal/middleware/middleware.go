// Package middleware implements the ordered pre/post chain that guards
// dispatch: logging, the read-only id list, and the tri-level security
// tier policy (§4.5).
package middleware

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/iamrichardD/pharos/internal/config"
	"github.com/iamrichardD/pharos/internal/log"
	"github.com/iamrichardD/pharos/internal/protocol"
)

// Context is the subset of session state a middleware needs to observe
// or stamp. It mirrors §3's session-context fields that are relevant to
// policy decisions.
type Context struct {
	ID            string
	Authenticated bool
	PeerAddr      string
	Roles         []string
	Tier          config.Tier
}

// HasRole reports whether role is present in the context's role list.
func (c *Context) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Action is the result of a Pre call: either continue to the next
// middleware/dispatch, or short-circuit with response bytes written
// verbatim (§4.5).
type Action struct {
	ShortCircuit bool
	Response     string
}

func cont() Action { return Action{} }

func shortCircuit(response string) Action { return Action{ShortCircuit: true, Response: response} }

// Middleware is one link in the ordered chain.
type Middleware interface {
	Pre(cmd protocol.Command, ctx *Context) Action
	Post(cmd protocol.Command, ctx *Context)
}

// Chain runs an ordered list of middlewares. Pre stops at the first
// short-circuit; Post always runs every middleware regardless.
type Chain struct {
	middlewares []Middleware
}

// NewChain builds a chain from ordered middlewares.
func NewChain(mw ...Middleware) *Chain {
	return &Chain{middlewares: mw}
}

// RunPre runs Pre on every middleware in order, stopping at the first
// short-circuit.
func (c *Chain) RunPre(cmd protocol.Command, ctx *Context) Action {
	for _, m := range c.middlewares {
		if a := m.Pre(cmd, ctx); a.ShortCircuit {
			return a
		}
	}
	return cont()
}

// RunPost runs Post on every middleware, regardless of how Pre ended.
func (c *Chain) RunPost(cmd protocol.Command, ctx *Context) {
	for _, m := range c.middlewares {
		m.Post(cmd, ctx)
	}
}

// Logging emits a structured record of peer, client id, and command; it
// never short-circuits (§4.5).
type Logging struct {
	lg *log.Logger
}

// NewLogging wraps lg for per-command observation.
func NewLogging(lg *log.Logger) *Logging {
	return &Logging{lg: lg}
}

func (l *Logging) Pre(cmd protocol.Command, ctx *Context) Action {
	corrID := uuid.NewString()
	l.lg.Info("command received",
		log.KV("correlation_id", corrID),
		log.KV("peer", ctx.PeerAddr),
		log.KV("client_id", ctx.ID),
		log.KV("kind", cmd.Kind.String()),
	)
	return cont()
}

func (l *Logging) Post(cmd protocol.Command, ctx *Context) {
	l.lg.Debug("command dispatched",
		log.KV("peer", ctx.PeerAddr),
		log.KV("client_id", ctx.ID),
		log.KV("kind", cmd.Kind.String()),
	)
}

// ReadOnly short-circuits write commands for any session whose id is in
// the configured list (§4.5).
type ReadOnly struct {
	ids map[string]struct{}
}

// NewReadOnly builds a ReadOnly middleware from a list of client ids
// (matched case-sensitively against the session's already case-folded
// id, per §3's "optional client identifier (case-folded)").
func NewReadOnly(ids []string) *ReadOnly {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return &ReadOnly{ids: set}
}

func isWrite(kind protocol.Kind) bool {
	switch kind {
	case protocol.Add, protocol.Delete, protocol.Change:
		return true
	default:
		return false
	}
}

func (r *ReadOnly) Pre(cmd protocol.Command, ctx *Context) Action {
	if !isWrite(cmd.Kind) {
		return cont()
	}
	if _, blocked := r.ids[ctx.ID]; blocked {
		return shortCircuit("500:Read-only access permitted for this ID\n")
	}
	return cont()
}

func (r *ReadOnly) Post(protocol.Command, *Context) {}

// SecurityTier stamps ctx.Tier and enforces the three-level policy
// table in §4.5.
type SecurityTier struct {
	tier config.Tier
}

// NewSecurityTier builds a SecurityTier middleware for the configured
// tier.
func NewSecurityTier(tier config.Tier) *SecurityTier {
	return &SecurityTier{tier: tier}
}

var protectedExempt = map[protocol.Kind]struct{}{
	protocol.Status: {},
	protocol.ID:     {},
	protocol.Auth:   {},
	protocol.Quit:   {},
}

func (s *SecurityTier) Pre(cmd protocol.Command, ctx *Context) Action {
	ctx.Tier = s.tier

	switch s.tier {
	case config.TierOpen:
		return cont()
	case config.TierProtected, config.TierScoped:
		if _, exempt := protectedExempt[cmd.Kind]; !exempt && !ctx.Authenticated {
			return shortCircuit(fmt.Sprintf("401:Authentication required for %s tier\n", tierLabel(s.tier)))
		}
		if s.tier == config.TierScoped && isWrite(cmd.Kind) && !ctx.HasRole("admin") {
			return shortCircuit("403:Forbidden: Admin role required for write operations\n")
		}
		return cont()
	default:
		return cont()
	}
}

func tierLabel(t config.Tier) string {
	switch t {
	case config.TierProtected:
		return "Protected"
	case config.TierScoped:
		return "Scoped"
	default:
		return string(t)
	}
}

func (s *SecurityTier) Post(protocol.Command, *Context) {}
