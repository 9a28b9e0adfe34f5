// Package ldapclient adapts diff.Handler calls onto a live LDAP
// connection. It is the seam named in the core's scope notes: "the LDAP
// wire client is out of scope for the core diff engine", realized as a
// pluggable, swappable diff.Handler built on github.com/go-ldap/ldap/v3.
// internal/diff itself never imports this package or go-ldap/ldap.
//
// diff.Handler's methods carry no context.Context (the core is
// synchronous and never blocks on I/O it doesn't already own), so
// Handler's Handle* methods match that signature exactly. The
// context.Context convention this package otherwise follows — grounded
// on oba/internal/server's request-scoped cancellation — lives instead in
// DialContext, the one place this package performs I/O the caller hasn't
// already committed to.
package ldapclient

import (
	"context"
	"fmt"

	"github.com/go-ldap/ldap/v3"

	"github.com/KilimcininKorOglu/ldvi/internal/diff"
	"github.com/KilimcininKorOglu/ldvi/internal/dn"
	"github.com/KilimcininKorOglu/ldvi/internal/model"
)

// Handler turns diff.Handler calls into requests against a *ldap.Conn.
// n (the numeric back-reference key, or -1 for immediate records) is
// accepted to satisfy the diff.Handler interface but carries no meaning
// for the wire protocol; it is ignored here.
type Handler struct {
	conn *ldap.Conn
}

var _ diff.Handler = (*Handler)(nil)

// New returns a Handler that issues requests over conn. The caller owns
// conn's lifecycle (dial, bind, close); Handler never dials or binds
// itself.
func New(conn *ldap.Conn) *Handler {
	return &Handler{conn: conn}
}

// DialContext dials addr and returns the connected, not yet bound
// *ldap.Conn (binding is left to the caller), honoring ctx's
// deadline/cancellation around the dial. go-ldap/ldap/v3's DialURL itself
// takes no context, so cancellation is enforced by racing it against
// ctx.Done in a goroutine.
func DialContext(ctx context.Context, addr string) (*ldap.Conn, error) {
	type result struct {
		conn *ldap.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := ldap.DialURL(addr)
		done <- result{conn, err}
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("ldapclient: dial %s: %w", addr, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("ldapclient: dial %s: %w", addr, r.err)
		}
		return r.conn, nil
	}
}

// HandleAdd issues an LDAP Add request.
func (h *Handler) HandleAdd(_ int, d model.DN, mods []model.Mod) error {
	req := ldap.NewAddRequest(string(d), nil)
	for _, m := range mods {
		req.Attribute(m.Description, valueStrings(m.Values))
	}
	if err := h.conn.Add(req); err != nil {
		return fmt.Errorf("ldapclient: add %s: %w", d, err)
	}
	return nil
}

// HandleDelete issues an LDAP Delete request.
func (h *Handler) HandleDelete(_ int, d model.DN) error {
	req := ldap.NewDelRequest(string(d), nil)
	if err := h.conn.Del(req); err != nil {
		return fmt.Errorf("ldapclient: delete %s: %w", d, err)
	}
	return nil
}

// HandleChange issues an LDAP Modify request. oldDN and newDN are always
// equal for a plain modification; renaming goes through
// HandleRename/HandleRename0 instead.
func (h *Handler) HandleChange(_ int, _, newDN model.DN, mods []model.Mod) error {
	req := ldap.NewModifyRequest(string(newDN), nil)
	for _, m := range mods {
		vals := valueStrings(m.Values)
		switch m.Op {
		case model.ModAdd:
			req.Add(m.Description, vals)
		case model.ModDelete:
			req.Delete(m.Description, vals)
		case model.ModReplace:
			req.Replace(m.Description, vals)
		}
	}
	if err := h.conn.Modify(req); err != nil {
		return fmt.Errorf("ldapclient: modify %s: %w", newDN, err)
	}
	return nil
}

// HandleRename issues an LDAP ModifyDN request, deriving deleteoldrdn from
// whether newEntry still carries oldDN's RDN value under the RDN's
// attribute — the same rule internal/diff's rename validation already
// checked before ever calling this.
func (h *Handler) HandleRename(n int, oldDN model.DN, newEntry *model.Entry) error {
	rdn, _ := dn.SplitRDN(string(oldDN))
	attr := dn.LeftmostAttribute(rdn)
	val := model.Value(dn.LeftmostValue(rdn))

	deleteOldRDN := true
	if a := newEntry.Attr(attr, false); a != nil && a.Has(val) {
		deleteOldRDN = false
	}
	return h.HandleRename0(n, oldDN, newEntry.DN, deleteOldRDN)
}

// HandleRename0 issues an LDAP ModifyDN request directly.
func (h *Handler) HandleRename0(_ int, oldDN, newDN model.DN, deleteOldRDN bool) error {
	newRDN, newSuperior := dn.SplitRDN(string(newDN))
	req := ldap.NewModifyDNRequest(string(oldDN), newRDN, deleteOldRDN, newSuperior)
	if err := h.conn.ModifyDN(req); err != nil {
		return fmt.Errorf("ldapclient: rename %s to %s: %w", oldDN, newDN, err)
	}
	return nil
}

func valueStrings(vs []model.Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}
