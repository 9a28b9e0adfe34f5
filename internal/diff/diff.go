// Package diff implements the stream-diff engine: comparing a clean
// (unedited) stream against a data (edited) stream, record by record, and
// reporting the minimal set of add/delete/modify/rename operations needed
// to bring the directory from one to the other. It is the one package
// that drives a record.Parser end to end; everything else in the module
// is a building block for this loop.
//
// Grounded on oba/internal/storage's snapshot/restore discipline around
// transactions (Begin/Commit/Rollback), generalized here to stream
// position snapshot/restore around each record instead of a DB
// transaction, and on oba/internal/ldap's sentinel-error-plus-offset
// convention for the errors this package surfaces.
package diff

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/KilimcininKorOglu/ldvi/internal/dn"
	"github.com/KilimcininKorOglu/ldvi/internal/model"
	"github.com/KilimcininKorOglu/ldvi/internal/record"
)

// Handler receives the operations the diff engine discovers. n is the
// numeric back-reference key for an ordinary record, or -1 for a record
// read directly off a change keyword.
type Handler interface {
	HandleAdd(n int, dn model.DN, mods []model.Mod) error
	HandleDelete(n int, dn model.DN) error
	HandleChange(n int, oldDN, newDN model.DN, mods []model.Mod) error
	HandleRename(n int, oldDN model.DN, newEntry *model.Entry) error
	HandleRename0(n int, oldDN, newDN model.DN, deleteOldRDN bool) error
}

// mark and unmark are the same involutive transform: mark(mark(o)) == o.
// The +2 guarantees the result is strictly negative even when o == 0.
func mark(o int64) int64    { return -(o + 2) }
func isMarked(o int64) bool { return o < 0 }

// CompareStreams compares clean against data and reports the difference
// through handler. offsets[k] gives the clean stream's byte offset for
// numeric key k; it is mutated while the comparison runs and restored to
// its original contents before CompareStreams returns, regardless of
// outcome.
func CompareStreams(parser record.Parser, handler Handler, clean, data io.ReadSeeker, offsets []int64) (err error) {
	var touched []int
	defer func() {
		for _, k := range touched {
			offsets[k] = mark(offsets[k])
		}
	}()

	dataPos := int64(0)
	for {
		peeked, perr := parser.PeekEntry(data, dataPos)
		if perr == io.EOF {
			break
		}
		if perr != nil {
			return perr
		}

		switch {
		case peeked.Key.IsNumeric():
			next, derr := compareNumericKey(parser, handler, clean, data, offsets, &touched, peeked, dataPos)
			if derr != nil {
				return derr
			}
			dataPos = next

		case peeked.Key.IsChangeKeyword() || peeked.Key == "replace":
			next, derr := dispatchImmediate(parser, handler, data, dataPos, peeked.Key)
			if derr != nil {
				return derr
			}
			dataPos = next

		default:
			return record.NewParseError(record.KindBadKey, peeked.Pos, fmt.Sprintf("unexpected key %q", peeked.Key), record.ErrBadKey)
		}
	}

	for k := 0; k < len(offsets); k++ {
		if isMarked(offsets[k]) {
			continue
		}
		rec, rerr := parser.ReadEntry(clean, offsets[k], true)
		if rerr != nil {
			return rerr
		}
		if herr := handler.HandleDelete(k, rec.Entry.DN); herr != nil {
			return wrapHandlerErr(herr)
		}
		offsets[k] = mark(offsets[k])
		touched = append(touched, k)
	}
	return nil
}

// compareNumericKey handles one numeric-key record: validates the key,
// tries the byte-equal fast path, and falls back to a structural diff.
// It returns the data stream offset of the record following this one.
func compareNumericKey(parser record.Parser, handler Handler, clean, data io.ReadSeeker, offsets []int64, touched *[]int, peeked record.Record, dataPos int64) (int64, error) {
	k, _ := peeked.Key.Int()
	if k < 0 || k >= len(offsets) || isMarked(offsets[k]) {
		return 0, record.NewParseError(record.KindBadKey, peeked.Pos, fmt.Sprintf("numeric key %d is duplicate or out of range", k), record.ErrBadKey)
	}
	cleanPos := offsets[k]

	equal, length, err := fastcmp(parser, clean, data, cleanPos, dataPos)
	if err != nil {
		return 0, err
	}
	if equal {
		offsets[k] = mark(cleanPos)
		*touched = append(*touched, k)
		return dataPos + length, nil
	}

	c, err := parser.ReadEntry(clean, cleanPos, true)
	if err != nil {
		return 0, err
	}
	d, err := parser.ReadEntry(data, dataPos, true)
	if err != nil {
		return 0, err
	}
	nextDataPos, err := data.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}

	if c.Entry.DN != d.Entry.DN {
		// validateRename's own result is not needed here: HandleRename
		// hands the handler D in full, and it derives deleteoldrdn from
		// whether D still carries C's RDN value. The call still enforces
		// the BadRename precondition before the handler ever sees it.
		if _, verr := validateRename(c.Entry, d.Entry); verr != nil {
			return 0, verr
		}
		if herr := handler.HandleRename(k, c.Entry.DN, d.Entry); herr != nil {
			return 0, wrapHandlerErr(herr)
		}
	} else if mods := diffAttributes(c.Entry, d.Entry, rdnAttribute(c.Entry.DN)); len(mods) > 0 {
		if herr := handler.HandleChange(k, c.Entry.DN, d.Entry.DN, mods); herr != nil {
			return 0, wrapHandlerErr(herr)
		}
	}

	offsets[k] = mark(cleanPos)
	*touched = append(*touched, k)
	return nextDataPos, nil
}

// dispatchImmediate reads and dispatches a record addressed by a change
// keyword (add/delete/modify/rename) or "replace", per the immediate-
// record dispatch table. It returns the data stream offset following the
// record just read.
func dispatchImmediate(parser record.Parser, handler Handler, data io.ReadSeeker, pos int64, key record.Key) (int64, error) {
	switch key {
	case record.KeyAdd, "replace":
		rec, err := parser.ReadEntry(data, pos, true)
		if err != nil {
			return 0, err
		}
		mods := rec.Entry.ToMods()
		var herr error
		if key == record.KeyAdd {
			herr = handler.HandleAdd(-1, rec.Entry.DN, mods)
		} else {
			herr = handler.HandleChange(-1, rec.Entry.DN, rec.Entry.DN, mods)
		}
		if herr != nil {
			return 0, wrapHandlerErr(herr)
		}

	case record.KeyDelete:
		d, _, err := parser.ReadDelete(data, pos)
		if err != nil {
			return 0, err
		}
		if herr := handler.HandleDelete(-1, d); herr != nil {
			return 0, wrapHandlerErr(herr)
		}

	case record.KeyModify:
		d, mods, _, err := parser.ReadModify(data, pos)
		if err != nil {
			return 0, err
		}
		if herr := handler.HandleChange(-1, d, d, mods); herr != nil {
			return 0, wrapHandlerErr(herr)
		}

	case record.KeyRename:
		oldDN, newDN, deleteOldRDN, _, err := parser.ReadRename(data, pos)
		if err != nil {
			return 0, err
		}
		if herr := handler.HandleRename0(-1, oldDN, newDN, deleteOldRDN); herr != nil {
			return 0, wrapHandlerErr(herr)
		}

	default:
		return 0, record.NewParseError(record.KindBadKey, pos, fmt.Sprintf("unexpected key %q", key), record.ErrBadKey)
	}
	return data.Seek(0, io.SeekCurrent)
}

// fastcmp compares the clean record at cleanPos against exactly that many
// bytes of the data stream at dataPos, where the length is the clean
// record's own byte span (body plus terminating blank line), as
// determined by SkipEntry. It always restores both streams' positions.
func fastcmp(parser record.Parser, clean, data io.ReadSeeker, cleanPos, dataPos int64) (equal bool, length int64, err error) {
	defer func() {
		clean.Seek(cleanPos, io.SeekStart)
		data.Seek(dataPos, io.SeekStart)
	}()
	if _, err := clean.Seek(cleanPos, io.SeekStart); err != nil {
		return false, 0, err
	}
	if _, err := parser.SkipEntry(clean, record.Current); err != nil {
		return false, 0, err
	}
	after, err := clean.Seek(0, io.SeekCurrent)
	if err != nil {
		return false, 0, err
	}
	length = after - cleanPos
	if _, err := clean.Seek(cleanPos, io.SeekStart); err != nil {
		return false, 0, err
	}

	cbuf := make([]byte, length)
	if _, err := io.ReadFull(clean, cbuf); err != nil {
		return false, 0, err
	}
	if _, err := clean.Seek(cleanPos, io.SeekStart); err != nil {
		return false, 0, err
	}

	dbuf := make([]byte, length)
	if _, err := data.Seek(dataPos, io.SeekStart); err != nil {
		return false, 0, err
	}
	_, rerr := io.ReadFull(data, dbuf)
	if _, serr := data.Seek(dataPos, io.SeekStart); serr != nil {
		return false, 0, serr
	}
	if rerr != nil {
		if rerr == io.ErrUnexpectedEOF || rerr == io.EOF {
			return false, length, nil
		}
		return false, 0, rerr
	}

	return bytes.Equal(cbuf, dbuf), length, nil
}

// rdnAttribute returns the attribute description named by d's leftmost RDN
// assertion, lowercased for comparison against diffAttributes' keys.
func rdnAttribute(d model.DN) string {
	rdn, _ := dn.SplitRDN(string(d))
	return strings.ToLower(dn.LeftmostAttribute(rdn))
}

// diffAttributes computes the minimal Mod list turning c's attributes
// into d's, case-insensitively by description, in the order attributes
// first appear across c then d. The attribute naming c's RDN is skipped
// entirely; a DN change there is validated and reported as a rename, not
// an ordinary modification.
func diffAttributes(c, d *model.Entry, skip string) []model.Mod {
	cByLower := make(map[string]*model.Attribute, len(c.Attributes))
	dByLower := make(map[string]*model.Attribute, len(d.Attributes))
	var order []string
	seen := make(map[string]bool)
	for _, a := range c.Attributes {
		lo := strings.ToLower(a.Description)
		cByLower[lo] = a
		if !seen[lo] {
			seen[lo] = true
			order = append(order, lo)
		}
	}
	for _, a := range d.Attributes {
		lo := strings.ToLower(a.Description)
		dByLower[lo] = a
		if !seen[lo] {
			seen[lo] = true
			order = append(order, lo)
		}
	}

	var mods []model.Mod
	for _, lo := range order {
		if lo == skip {
			continue
		}
		ca, cok := cByLower[lo]
		da, dok := dByLower[lo]
		switch {
		case dok && !cok:
			mods = append(mods, model.Mod{Op: model.ModAdd, Description: da.Description, Values: cloneValues(da.Values)})
		case cok && !dok:
			mods = append(mods, model.Mod{Op: model.ModDelete, Description: ca.Description})
		default:
			added, removed := valueDiff(ca.Values, da.Values)
			if len(added) == 0 && len(removed) == 0 {
				continue
			}
			if len(added)+len(removed) >= len(da.Values)+1 {
				mods = append(mods, model.Mod{Op: model.ModReplace, Description: da.Description, Values: cloneValues(da.Values)})
				continue
			}
			if len(removed) > 0 {
				mods = append(mods, model.Mod{Op: model.ModDelete, Description: ca.Description, Values: removed})
			}
			if len(added) > 0 {
				mods = append(mods, model.Mod{Op: model.ModAdd, Description: da.Description, Values: added})
			}
		}
	}
	return mods
}

func cloneValues(v []model.Value) []model.Value {
	out := make([]model.Value, len(v))
	copy(out, v)
	return out
}

// valueDiff computes added = d\c and removed = c\d as multisets, by exact
// byte equality.
func valueDiff(c, d []model.Value) (added, removed []model.Value) {
	cCount := make(map[string]int, len(c))
	for _, v := range c {
		cCount[string(v)]++
	}
	for _, v := range d {
		s := string(v)
		if cCount[s] > 0 {
			cCount[s]--
			continue
		}
		added = append(added, v)
	}
	dCount := make(map[string]int, len(d))
	for _, v := range d {
		dCount[string(v)]++
	}
	for _, v := range c {
		s := string(v)
		if dCount[s] > 0 {
			dCount[s]--
			continue
		}
		removed = append(removed, v)
	}
	return added, removed
}

// validateRename checks that c genuinely contains its own RDN value (the
// precondition for treating a DN change as a rename rather than a
// corrupt record) and decides deleteOldRDN: false if d's corresponding
// attribute still carries the old RDN value, true otherwise.
func validateRename(c, d *model.Entry) (deleteOldRDN bool, err error) {
	if c.DN == "" || d.DN == "" {
		return false, record.NewParseError(record.KindBadRename, -1, "rename requires both a non-empty old and new DN", record.ErrBadRename)
	}
	rdn, _ := dn.SplitRDN(string(c.DN))
	attr := dn.LeftmostAttribute(rdn)
	val := model.Value(dn.LeftmostValue(rdn))

	cAttr := c.Attr(attr, false)
	if cAttr == nil || !cAttr.Has(val) {
		return false, record.NewParseError(record.KindBadRename, -1, fmt.Sprintf("entry %s does not contain its own RDN value in attribute %q", c.DN, attr), record.ErrBadRename)
	}
	dAttr := d.Attr(attr, false)
	if dAttr != nil && dAttr.Has(val) {
		return false, nil
	}
	return true, nil
}

func wrapHandlerErr(err error) error {
	return fmt.Errorf("%w: %v", record.ErrHandlerAborted, err)
}
