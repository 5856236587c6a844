// Package session implements the per-connection Ph protocol state
// machine: banner, dispatch loop, challenge/response auth, middleware
// enforcement, and multi-line record response streaming (§4.6).
package session

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/iamrichardD/pharos/internal/auth"
	"github.com/iamrichardD/pharos/internal/log"
	"github.com/iamrichardD/pharos/internal/middleware"
	"github.com/iamrichardD/pharos/internal/protocol"
	"github.com/iamrichardD/pharos/internal/store"
)

// Handler wires together the shared collaborators every session needs:
// the record store, the auth manager, and the middleware chain. A single
// Handler serves every connection the listener accepts.
type Handler struct {
	Store  store.Store
	Auth   *auth.Manager
	Chain  *middleware.Chain
	Logger *log.Logger

	// IdleTimeout, if non-zero, is applied as a read deadline before
	// every line read; a connection that sits idle past it is closed
	// (§5, "an implementation MAY add an idle timeout ... default
	// disabled").
	IdleTimeout time.Duration
}

// NewHandler builds a Handler from its collaborators. A nil Logger is
// replaced with a discard logger. idleTimeout of zero disables the idle
// read deadline.
func NewHandler(st store.Store, am *auth.Manager, chain *middleware.Chain, lg *log.Logger, idleTimeout time.Duration) *Handler {
	if lg == nil {
		lg = log.NewDiscardLogger()
	}
	return &Handler{Store: st, Auth: am, Chain: chain, Logger: lg, IdleTimeout: idleTimeout}
}

// context is the per-connection state described in §3: an optional
// client id, the authenticated flag, peer address, roles, tier, and the
// session's never-rotated challenge.
type context struct {
	middleware.Context
	challenge string
}

// defaultTypeFromID derives the default-type discriminator from a
// substring of the client id (§4.6): "ph" implies Person, "mdb" implies
// Machine, anything else implies no default.
func defaultTypeFromID(id string) store.RecordType {
	switch {
	case strings.Contains(id, "ph"):
		return store.Person
	case strings.Contains(id, "mdb"):
		return store.Machine
	default:
		return store.TypeNone
	}
}

func newChallenge() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Serve runs the session state machine for one accepted connection until
// EOF, quit, or an I/O error. It never panics on malformed input; parser
// and dispatch errors are translated to wire responses.
func (h *Handler) Serve(conn net.Conn) {
	defer conn.Close()

	peer := conn.RemoteAddr().String()
	challenge, err := newChallenge()
	if err != nil {
		h.Logger.Error("failed to generate session challenge", log.KVErr(err), log.KV("peer", peer))
		return
	}

	ctx := &context{
		Context:   middleware.Context{PeerAddr: peer},
		challenge: challenge,
	}

	w := bufio.NewWriter(conn)
	writeLine(w, "200:Database ready\n")
	if err := w.Flush(); err != nil {
		return
	}

	r := bufio.NewReader(conn)
	for {
		if h.IdleTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(h.IdleTimeout)); err != nil {
				h.Logger.Error("failed to set idle read deadline", log.KVErr(err), log.KV("peer", peer))
				return
			}
		}
		line, err := r.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				h.Logger.Error("session read failed", log.KVErr(err), log.KV("peer", peer))
			}
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		cont, fault := h.dispatchLine(w, ctx, line)
		if fault {
			// Internal fault (e.g. a directory-backend dial/search
			// failure): already logged by dispatch. §7 requires the
			// session close without a partial or faked response.
			return
		}
		if !cont {
			w.Flush()
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

// dispatchLine parses and dispatches a single request line, writing the
// full response. It returns cont=false when the session should close
// normally (quit), and fault=true when an internal fault requires the
// session to close without writing any response line (§7).
func (h *Handler) dispatchLine(w *bufio.Writer, ctx *context, line string) (cont bool, fault bool) {
	cmd, err := protocol.Parse(line)
	if err != nil {
		writeLine(w, parseErrorResponse(err))
		return true, false
	}

	action := h.Chain.RunPre(cmd, &ctx.Context)
	if action.ShortCircuit {
		writeLine(w, action.Response)
		h.Chain.RunPost(cmd, &ctx.Context)
		return true, false
	}

	cont, fault = h.dispatch(w, ctx, cmd)
	h.Chain.RunPost(cmd, &ctx.Context)
	return cont, fault
}

func parseErrorResponse(err error) string {
	switch err {
	case protocol.ErrUnknownCommand:
		return "598:Command unknown\n"
	case protocol.ErrInvalidArgument:
		return "512:Illegal value\n"
	default:
		return "599:Syntax error\n"
	}
}

// dispatch implements the per-command behavior in §4.6. It returns
// cont=false only for quit, and fault=true when an internal fault (as
// opposed to an empty result) requires the session to close without a
// response (§7).
func (h *Handler) dispatch(w *bufio.Writer, ctx *context, cmd protocol.Command) (cont bool, fault bool) {
	switch cmd.Kind {
	case protocol.Status:
		writeLine(w, "100:Pharos server active\n200:Ok\n")

	case protocol.ID:
		ctx.ID = strings.ToLower(cmd.Arg)
		writeLine(w, "200:Ok\n")

	case protocol.Auth:
		if h.Auth.Verify(cmd.PublicKey, cmd.Signature, ctx.challenge) {
			ctx.Authenticated = true
			ctx.Roles = h.Auth.Roles(cmd.PublicKey)
			writeLine(w, "200:Ok\n")
		} else {
			writeLine(w, "403:Forbidden\n")
		}

	case protocol.Quit:
		writeLine(w, "200:Bye!\n")
		return false, false

	case protocol.Add:
		if !ctx.Authenticated {
			writeLine(w, fmt.Sprintf("401:Authentication required. Challenge: %s\n", ctx.challenge))
			break
		}
		fields := make(map[string]string, len(cmd.Pairs))
		for _, p := range cmd.Pairs {
			fields[p.Field] = p.Value
		}
		if _, err := h.Store.Add(fields); err != nil {
			h.Logger.Error("store add failed", log.KVErr(err))
		}
		writeLine(w, "200:Ok\n")

	case protocol.Query:
		if !h.handleQuery(w, ctx, cmd) {
			return true, true
		}

	case protocol.Change, protocol.Delete:
		if !ctx.Authenticated {
			writeLine(w, fmt.Sprintf("401:Authentication required. Challenge: %s\n", ctx.challenge))
			break
		}
		writeLine(w, "598:Command not yet implemented\n")

	default:
		writeLine(w, "598:Command not yet implemented\n")
	}
	return true, false
}

// handleQuery writes the query response and reports ok=false on an
// internal store fault (e.g. a directory-backend dial/search failure):
// that is not the same as a query that simply matched nothing, and per
// §7 must not be papered over with a faked response line — the caller
// closes the session instead.
func (h *Handler) handleQuery(w *bufio.Writer, ctx *context, cmd protocol.Command) (ok bool) {
	defaultType := defaultTypeFromID(ctx.ID)

	sels := make([]store.Selection, len(cmd.Selections))
	for i, s := range cmd.Selections {
		sels[i] = store.Selection{Field: s.Field, Value: s.Value}
	}

	records, err := h.Store.Query(sels, defaultType)
	if err != nil {
		h.Logger.Error("store query failed", log.KVErr(err), log.KV("peer", ctx.PeerAddr))
		return false
	}
	if len(records) == 0 {
		writeLine(w, "501:No matches to query\n")
		return true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "102:There were %d matches to your request.\n", len(records))
	for i, rec := range records {
		for _, field := range returnedFields(rec, cmd.Returns) {
			fmt.Fprintf(&b, "-200:%d:%s: %s\n", i+1, field, rec.Fields[field])
		}
	}
	b.WriteString("200:Ok\n")
	writeLine(w, b.String())
	return true
}

// returnedFields resolves the field names to emit for rec: every field
// when the return clause is empty, otherwise just the requested names
// that exist on rec. Both cases are sorted lexicographically (§3).
func returnedFields(rec store.Record, returns []string) []string {
	var names []string
	if len(returns) == 0 {
		names = make([]string, 0, len(rec.Fields))
		for k := range rec.Fields {
			names = append(names, k)
		}
	} else {
		for _, r := range returns {
			if _, ok := rec.Fields[r]; ok {
				names = append(names, r)
			}
		}
	}
	sort.Strings(names)
	return names
}

func writeLine(w *bufio.Writer, s string) {
	w.WriteString(s)
}
