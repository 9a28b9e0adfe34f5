package diff

import "github.com/KilimcininKorOglu/ldvi/internal/model"

// op records one handler invocation, normalized enough for tests to
// compare against without caring which of HandleAdd/HandleChange/etc was
// actually called.
type op struct {
	kind         string
	n            int
	oldDN, newDN model.DN
	mods         []model.Mod
	deleteOldRDN bool
}

// recordingHandler collects every call it receives, in order, and never
// fails one.
type recordingHandler struct {
	ops []op
}

func (h *recordingHandler) HandleAdd(n int, d model.DN, mods []model.Mod) error {
	h.ops = append(h.ops, op{kind: "add", n: n, newDN: d, mods: mods})
	return nil
}

func (h *recordingHandler) HandleDelete(n int, d model.DN) error {
	h.ops = append(h.ops, op{kind: "delete", n: n, oldDN: d})
	return nil
}

func (h *recordingHandler) HandleChange(n int, oldDN, newDN model.DN, mods []model.Mod) error {
	h.ops = append(h.ops, op{kind: "change", n: n, oldDN: oldDN, newDN: newDN, mods: mods})
	return nil
}

func (h *recordingHandler) HandleRename(n int, oldDN model.DN, newEntry *model.Entry) error {
	h.ops = append(h.ops, op{kind: "rename", n: n, oldDN: oldDN, newDN: newEntry.DN})
	return nil
}

func (h *recordingHandler) HandleRename0(n int, oldDN, newDN model.DN, deleteOldRDN bool) error {
	h.ops = append(h.ops, op{kind: "rename0", n: n, oldDN: oldDN, newDN: newDN, deleteOldRDN: deleteOldRDN})
	return nil
}

// failingHandler always fails, to exercise HandlerAborted propagation.
type failingHandler struct{ err error }

func (h *failingHandler) HandleAdd(int, model.DN, []model.Mod) error                { return h.err }
func (h *failingHandler) HandleDelete(int, model.DN) error                          { return h.err }
func (h *failingHandler) HandleChange(int, model.DN, model.DN, []model.Mod) error    { return h.err }
func (h *failingHandler) HandleRename(int, model.DN, *model.Entry) error            { return h.err }
func (h *failingHandler) HandleRename0(int, model.DN, model.DN, bool) error          { return h.err }
