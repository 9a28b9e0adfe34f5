package ldif

import (
	"fmt"
	"io"

	"github.com/KilimcininKorOglu/ldvi/internal/codec"
	"github.com/KilimcininKorOglu/ldvi/internal/config"
	"github.com/KilimcininKorOglu/ldvi/internal/dn"
	"github.com/KilimcininKorOglu/ldvi/internal/model"
	"github.com/KilimcininKorOglu/ldvi/internal/record"
)

// Printer writes RFC 2849 LDIF, folding lines at opts.FoldWidth and
// falling back to base64 for any value config.IsSafe rejects.
type Printer struct {
	opts config.PrinterOptions
}

// NewPrinter returns a Printer using opts.
func NewPrinter(opts config.PrinterOptions) *Printer {
	if opts.FoldWidth <= 0 {
		opts.FoldWidth = 76
	}
	return &Printer{opts: opts}
}

// PrintEntry writes a plain LDIF entry (no changetype).
func (p *Printer) PrintEntry(w io.Writer, e *model.Entry) error {
	if err := p.printDN(w, e.DN); err != nil {
		return err
	}
	for _, attr := range e.Attributes {
		for _, v := range attr.Values {
			if err := p.printAttrValueLine(w, attr.Description, v); err != nil {
				return err
			}
		}
	}
	return p.printTerminator(w)
}

// PrintKeyedEntry writes a clean- or data-file record addressed by key,
// the LDIF counterpart to how the extended printer puts the key directly
// in its header line. A plain, changetype-less record is classified as
// "add" on read, so key == record.KeyAdd is written with no extra line;
// any other key (numeric, to back-reference the clean file, or a change
// keyword restated for clarity) is carried on an "ldapvi-key:" line.
func (p *Printer) PrintKeyedEntry(w io.Writer, key record.Key, e *model.Entry) error {
	if err := p.printDN(w, e.DN); err != nil {
		return err
	}
	if key != record.KeyAdd {
		if err := p.printFolded(w, fmt.Sprintf("ldapvi-key: %s", key)); err != nil {
			return err
		}
	}
	for _, attr := range e.Attributes {
		for _, v := range attr.Values {
			if err := p.printAttrValueLine(w, attr.Description, v); err != nil {
				return err
			}
		}
	}
	return p.printTerminator(w)
}

// PrintAdd writes a "changetype: add" record.
func (p *Printer) PrintAdd(w io.Writer, e *model.Entry) error {
	if err := p.printDN(w, e.DN); err != nil {
		return err
	}
	if err := p.printFolded(w, "changetype: add"); err != nil {
		return err
	}
	for _, attr := range e.Attributes {
		for _, v := range attr.Values {
			if err := p.printAttrValueLine(w, attr.Description, v); err != nil {
				return err
			}
		}
	}
	return p.printTerminator(w)
}

// PrintDelete writes a "changetype: delete" record.
func (p *Printer) PrintDelete(w io.Writer, d model.DN) error {
	if err := p.printDN(w, d); err != nil {
		return err
	}
	if err := p.printFolded(w, "changetype: delete"); err != nil {
		return err
	}
	return p.printTerminator(w)
}

// PrintModify writes a "changetype: modify" record.
func (p *Printer) PrintModify(w io.Writer, d model.DN, mods []model.Mod) error {
	if err := p.printDN(w, d); err != nil {
		return err
	}
	if err := p.printFolded(w, "changetype: modify"); err != nil {
		return err
	}
	for _, m := range mods {
		if err := p.printFolded(w, fmt.Sprintf("%s: %s", modOpKeyword(m.Op), m.Description)); err != nil {
			return err
		}
		for _, v := range m.Values {
			if err := p.printAttrValueLine(w, m.Description, v); err != nil {
				return err
			}
		}
		if err := p.printFolded(w, "-"); err != nil {
			return err
		}
	}
	return p.printTerminator(w)
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

// PrintRename writes a "changetype: modrdn" record. newSuperior is emitted
// only when it differs from oldDN's current parent.
func (p *Printer) PrintRename(w io.Writer, oldDN, newDN model.DN, deleteOldRDN bool) error {
	if err := p.printDN(w, oldDN); err != nil {
		return err
	}
	if err := p.printFolded(w, "changetype: modrdn"); err != nil {
		return err
	}
	newRDN, newParent := dn.SplitRDN(string(newDN))
	if err := p.printAttrValueLine(w, "newrdn", model.Value(newRDN)); err != nil {
		return err
	}
	flag := "0"
	if deleteOldRDN {
		flag = "1"
	}
	if err := p.printFolded(w, "deleteoldrdn: "+flag); err != nil {
		return err
	}
	_, oldParent := dn.SplitRDN(string(oldDN))
	if newParent != oldParent {
		if err := p.printAttrValueLine(w, "newsuperior", model.Value(newParent)); err != nil {
			return err
		}
	}
	return p.printTerminator(w)
}

func (p *Printer) printDN(w io.Writer, d model.DN) error {
	return p.printAttrValueLine(w, "dn", model.Value(d))
}

func (p *Printer) printTerminator(w io.Writer) error {
	_, err := io.WriteString(w, "\n")
	return err
}

// printAttrValueLine chooses an encoding (literal, or base64 when the
// value isn't config.IsSafe) and folds the resulting line at FoldWidth.
func (p *Printer) printAttrValueLine(w io.Writer, attr string, v model.Value) error {
	if config.IsSafe(v, p.opts.Readability) {
		return p.printFolded(w, fmt.Sprintf("%s: %s", attr, v))
	}
	return p.printFolded(w, fmt.Sprintf("%s:: %s", attr, codec.EncodeBase64(v)))
}

// printFolded writes line, wrapping at opts.FoldWidth per RFC 2849: the
// first segment fills the full width, every continuation segment starts
// with a single SPACE and contributes FoldWidth-1 bytes.
func (p *Printer) printFolded(w io.Writer, line string) error {
	width := p.opts.FoldWidth
	if len(line) <= width {
		_, err := fmt.Fprintf(w, "%s\n", line)
		return err
	}
	if _, err := io.WriteString(w, line[:width]); err != nil {
		return err
	}
	rest := line[width:]
	for len(rest) > 0 {
		n := width - 1
		if n > len(rest) {
			n = len(rest)
		}
		if _, err := fmt.Fprintf(w, "\n %s", rest[:n]); err != nil {
			return err
		}
		rest = rest[n:]
	}
	_, err := io.WriteString(w, "\n")
	return err
}
