package main

import (
	"github.com/KilimcininKorOglu/ldvi/internal/diff"
	"github.com/KilimcininKorOglu/ldvi/internal/logging"
	"github.com/KilimcininKorOglu/ldvi/internal/model"
)

// printingHandler is the --dry-run diff.Handler: it logs each operation
// instead of sending it to a directory.
type printingHandler struct {
	log logging.Logger
}

var _ diff.Handler = (*printingHandler)(nil)

func (h *printingHandler) HandleAdd(n int, dn model.DN, mods []model.Mod) error {
	h.log.Info("would add", "key", n, "dn", string(dn), "attrs", len(mods))
	return nil
}

func (h *printingHandler) HandleDelete(n int, dn model.DN) error {
	h.log.Info("would delete", "key", n, "dn", string(dn))
	return nil
}

func (h *printingHandler) HandleChange(n int, oldDN, newDN model.DN, mods []model.Mod) error {
	h.log.Info("would modify", "key", n, "dn", string(newDN), "mods", len(mods))
	return nil
}

func (h *printingHandler) HandleRename(n int, oldDN model.DN, newEntry *model.Entry) error {
	h.log.Info("would rename", "key", n, "from", string(oldDN), "to", string(newEntry.DN))
	return nil
}

func (h *printingHandler) HandleRename0(n int, oldDN, newDN model.DN, deleteOldRDN bool) error {
	h.log.Info("would rename", "key", n, "from", string(oldDN), "to", string(newDN), "delete_old_rdn", deleteOldRDN)
	return nil
}
