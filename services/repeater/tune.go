// services/repeater/tune.go
package repeater

import (
	"sync"
	"time"

	"repeatercode-go/drivers/eusb2"
	"repeatercode-go/errcode"
	"repeatercode-go/internal/rlog"
)

// tuneCapacity bounds the tuning cache. A hard ceiling, no eviction.
const tuneCapacity = 20

// tuneSettle gives the analog blocks time to take a new coefficient before
// the value is read back.
const tuneSettle = 10 * time.Microsecond

// TuneTable is the bounded tuning cache: an ordered set of register
// overrides keyed by address, written through to the chip on insert and
// replayed wholesale after resets. Safe for concurrent use.
type TuneTable struct {
	mu      sync.Mutex
	chip    *eusb2.Device
	entries []eusb2.RegValue
	log     *rlog.Logger
}

func newTuneTable(chip *eusb2.Device, log *rlog.Logger) *TuneTable {
	return &TuneTable{
		chip:    chip,
		entries: make([]eusb2.RegValue, 0, tuneCapacity),
		log:     log,
	}
}

// Len reports the number of cached entries.
func (t *TuneTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Entries returns a snapshot copy of the cache in insertion order.
func (t *TuneTable) Entries() []eusb2.RegValue {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]eusb2.RegValue, len(t.entries))
	copy(out, t.entries)
	return out
}

// Upsert writes val to reg and records the pair in the cache, updating in
// place when the address is already present. A new address past the capacity
// ceiling is rejected without touching the chip. A failed device write leaves
// the cache unchanged. The post-write read-back is diagnostic only: its
// outcome is logged, never surfaced.
func (t *TuneTable) Upsert(reg, val uint8) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := -1
	for i := range t.entries {
		if t.entries[i].Reg == reg {
			idx = i
			break
		}
	}
	if idx < 0 && len(t.entries) >= tuneCapacity {
		return &errcode.E{C: errcode.TableFull, Op: "tune_store"}
	}

	if err := t.chip.WriteRegister(reg, val); err != nil {
		return errcode.Wrap(errcode.TransportError, "tune_store", err)
	}
	if idx >= 0 {
		t.entries[idx].Val = val
	} else {
		t.entries = append(t.entries, eusb2.RegValue{Reg: reg, Val: val})
	}

	time.Sleep(tuneSettle)
	if got, err := t.chip.ReadRegister(reg); err != nil {
		t.log.Warn("tune read-back failed", "reg", reg, "err", err)
	} else {
		t.log.Debug("tune entry stored",
			"reg", reg, "val", got, "count", len(t.entries))
	}
	return nil
}

// ReplayAll rewrites every cached entry to the chip in insertion order,
// three attempts each. Entries the chip must not take in the current role
// are skipped. A persistent write failure is logged and the walk continues;
// replay never fails the caller.
func (t *TuneTable) ReplayAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries {
		if t.chip.SkipTuneWrite(e.Reg) {
			t.log.Info("tune replay skipped", "reg", e.Reg)
			continue
		}
		if err := t.chip.WriteRetry(e.Reg, e.Val); err != nil {
			t.log.Warn("tune replay write failed",
				"reg", e.Reg, "val", e.Val, "err", err)
			continue
		}
		time.Sleep(tuneSettle)
		if got, err := t.chip.ReadRegister(e.Reg); err != nil {
			t.log.Warn("tune replay read-back failed", "reg", e.Reg, "err", err)
		} else {
			t.log.Debug("tune replay", "reg", e.Reg, "val", got)
		}
	}
}

// DumpKnownMap reads the chip's full known register map while holding the
// cache lock, so a dump never interleaves with a store. All-or-nothing: a
// single read failure fails the whole dump.
func (t *TuneTable) DumpKnownMap() ([]eusb2.RegValue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chip.ReadKnownMap()
}
