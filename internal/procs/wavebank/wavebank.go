// Package wavebank is a label-keyed registry of wave-table banks and
// preset "takes", passed explicitly (as a Bank field) into the
// gutim_take_menu / gutim_ps_msg_table glue processors rather than held
// as package-level global state.
package wavebank

import (
	"sync"

	"github.com/larkecw/sfengine/internal/engerr"
)

// Take is one named preset entry: a sfx_id forwarded to poly's or
// xfade_ctl's preset_sfx_id input, plus free-form parameters a voice
// network's procs may read at preset-apply time.
type Take struct {
	Label  string
	SfxID  int
	Params map[string]float64
}

// Bank holds an ordered menu of Takes under a registry label (the
// wave-table bank name).
type Bank struct {
	mu    sync.RWMutex
	menus map[string][]Take
}

func New() *Bank {
	return &Bank{menus: make(map[string][]Take)}
}

// Register adds (or replaces) the named menu's take list.
func (b *Bank) Register(menu string, takes []Take) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.menus[menu] = append([]Take(nil), takes...)
}

// Menu returns the named menu's takes in registration order.
func (b *Bank) Menu(menu string) ([]Take, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	takes, ok := b.menus[menu]
	if !ok {
		return nil, engerr.New(engerr.NotFound, "wavebank: no menu %q", menu)
	}
	return takes, nil
}

// TakeAt returns the take at idx within menu.
func (b *Bank) TakeAt(menu string, idx int) (Take, error) {
	takes, err := b.Menu(menu)
	if err != nil {
		return Take{}, err
	}
	if idx < 0 || idx >= len(takes) {
		return Take{}, engerr.New(engerr.InvalidArg, "wavebank: index %d out of range for menu %q (len %d)", idx, menu, len(takes))
	}
	return takes[idx], nil
}

// TakeByLabel looks up a take by its label within menu.
func (b *Bank) TakeByLabel(menu, label string) (Take, int, error) {
	takes, err := b.Menu(menu)
	if err != nil {
		return Take{}, -1, err
	}
	for i, t := range takes {
		if t.Label == label {
			return t, i, nil
		}
	}
	return Take{}, -1, engerr.New(engerr.NotFound, "wavebank: no take %q in menu %q", label, menu)
}
