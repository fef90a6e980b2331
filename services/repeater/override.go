// services/repeater/override.go
package repeater

import (
	"repeatercode-go/drivers/eusb2"
	"repeatercode-go/errcode"
	"repeatercode-go/internal/rlog"
)

// OverrideEntry is one scripted register write of an init-time override
// sequence.
type OverrideEntry struct {
	Reg uint8
	Val uint8
}

// ParseOverrideSeq converts a flat (value, address) pair list into an ordered
// entry list. An odd element count is a configuration error; the device
// cannot be created from a malformed sequence.
func ParseOverrideSeq(flat []uint8) ([]OverrideEntry, error) {
	if len(flat)%2 != 0 {
		return nil, &errcode.E{C: errcode.InvalidSequence, Msg: "odd element count"}
	}
	if len(flat) == 0 {
		return nil, nil
	}
	out := make([]OverrideEntry, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		out = append(out, OverrideEntry{Val: flat[i], Reg: flat[i+1]})
	}
	return out, nil
}

// applyOverrides replays entries in list order, write-only. Three attempts
// per entry; an entry failing all attempts is logged and skipped so the rest
// of the sequence still applies. Partial application is accepted: the part
// may still run degraded but usable.
func applyOverrides(chip *eusb2.Device, seq []OverrideEntry, log *rlog.Logger) {
	log.Debug("override sequence", "entries", len(seq))
	for _, e := range seq {
		if err := chip.WriteRetry(e.Reg, e.Val); err != nil {
			log.Warn("override write failed",
				"reg", e.Reg, "val", e.Val, "err", err)
			continue
		}
		log.Debug("override write", "reg", e.Reg, "val", e.Val)
	}
}
