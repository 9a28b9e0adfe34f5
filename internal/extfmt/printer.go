package extfmt

import (
	"bytes"
	"fmt"
	"io"

	"github.com/KilimcininKorOglu/ldvi/internal/codec"
	"github.com/KilimcininKorOglu/ldvi/internal/config"
	"github.com/KilimcininKorOglu/ldvi/internal/model"
	"github.com/KilimcininKorOglu/ldvi/internal/record"
)

// Printer writes the extended dialect. Every Print* method emits exactly
// one record, preceded by a single blank line, and never folds: the
// extended dialect's continuation mechanism is the backslash rule, not
// line folding (that belongs to internal/ldif).
type Printer struct {
	opts config.PrinterOptions
}

// NewPrinter returns a Printer using opts.Readability to decide which
// values need encoding.
func NewPrinter(opts config.PrinterOptions) *Printer {
	return &Printer{opts: opts}
}

// PrintEntry writes an attrval-shaped record: a numeric key, "add", or
// record.KeyEntry, followed by the entry's attributes.
func (p *Printer) PrintEntry(w io.Writer, key record.Key, e *model.Entry) error {
	if _, err := fmt.Fprintf(w, "\n%s %s\n", key, e.DN); err != nil {
		return err
	}
	for _, attr := range e.Attributes {
		for _, v := range attr.Values {
			if err := p.printValueLine(w, attr.Description, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// PrintDelete writes a delete record.
func (p *Printer) PrintDelete(w io.Writer, dn model.DN) error {
	_, err := fmt.Fprintf(w, "\n%s %s\n", record.KeyDelete, dn)
	return err
}

// PrintModify writes a modify record.
func (p *Printer) PrintModify(w io.Writer, dn model.DN, mods []model.Mod) error {
	if _, err := fmt.Fprintf(w, "\n%s %s\n", record.KeyModify, dn); err != nil {
		return err
	}
	for _, m := range mods {
		if _, err := fmt.Fprintf(w, "%s %s\n", modOpKeyword(m.Op), m.Description); err != nil {
			return err
		}
		for _, v := range m.Values {
			if _, err := fmt.Fprintf(w, " %s\n", v); err != nil {
				return err
			}
		}
	}
	return nil
}

func modOpKeyword(op model.ModOp) string {
	switch op {
	case model.ModAdd:
		return "add"
	case model.ModDelete:
		return "delete"
	case model.ModReplace:
		return "replace"
	default:
		return "add"
	}
}

// PrintRename writes a rename record.
func (p *Printer) PrintRename(w io.Writer, oldDN, newDN model.DN, deleteOldRDN bool) error {
	if _, err := fmt.Fprintf(w, "\n%s %s\n", record.KeyRename, oldDN); err != nil {
		return err
	}
	kw := "add"
	if deleteOldRDN {
		kw = "replace"
	}
	_, err := fmt.Fprintf(w, "%s %s\n", kw, newDN)
	return err
}

// printValueLine chooses an encoding for one attribute value and writes
// its header token plus content, per the component E encoding ladder:
// SAFE values print literally; values without a NUL but that aren't SAFE
// use ":;" with the value's embedded newlines backslash-escaped; values
// containing a NUL always fall back to base64.
func (p *Printer) printValueLine(w io.Writer, attr string, v model.Value) error {
	switch {
	case config.HasNUL(v):
		_, err := fmt.Fprintf(w, "%s:: %s\n", attr, codec.EncodeBase64(v))
		return err
	case config.IsSafe(v, p.opts.Readability):
		_, err := fmt.Fprintf(w, "%s %s\n", attr, v)
		return err
	default:
		return p.printLiteralEscaped(w, attr, v)
	}
}

// printLiteralEscaped writes attr:; followed by v's content, re-encoding
// each embedded '\n' via the inverse of codec.ResolveLineEnding so the
// parser's continuation rule reconstructs exactly v on read-back.
func (p *Printer) printLiteralEscaped(w io.Writer, attr string, v model.Value) error {
	if _, err := fmt.Fprintf(w, "%s:; ", attr); err != nil {
		return err
	}
	segments := bytes.Split(v, []byte("\n"))
	for i, seg := range segments {
		continues := i < len(segments)-1
		if _, err := w.Write(encodeLiteralSegment(seg, continues)); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

// encodeLiteralSegment re-escapes one '\n'-delimited segment of a value so
// that codec.ResolveLineEnding recovers exactly seg and the requested
// continues flag: a segment with L trailing literal backslashes needs
// 2*L backslashes on output (doubled, so they aren't misread as an escape
// run) plus one more when the line should continue.
func encodeLiteralSegment(seg []byte, continues bool) []byte {
	n := len(seg)
	l := 0
	for l < n && seg[n-1-l] == '\\' {
		l++
	}
	out := make([]byte, 0, n-l+2*l+1)
	out = append(out, seg[:n-l]...)
	reps := 2 * l
	if continues {
		reps++
	}
	for i := 0; i < reps; i++ {
		out = append(out, '\\')
	}
	return out
}
