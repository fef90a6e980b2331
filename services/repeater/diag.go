// services/repeater/diag.go
package repeater

import (
	"strings"

	"github.com/google/shlex"

	"repeatercode-go/errcode"
	"repeatercode-go/x/conv"
)

// Diag is the textual maintenance surface over the tuning cache: a dump of
// the chip's known register map and a one-line store format.
type Diag struct {
	dev *Device
}

func (d *Device) Diag() *Diag { return &Diag{dev: d} }

// Show renders the full known register map as an aligned hex table headed by
// the vendor name.
func (g *Diag) Show() (string, error) {
	snap, err := g.dev.tune.DumpKnownMap()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	var hx [2]byte
	b.WriteString("\n Address Value - ")
	b.WriteString(g.dev.chip.Vendor().String())
	b.WriteByte('\n')
	for _, rv := range snap {
		b.WriteString("  0x")
		b.Write(conv.U8Hex(hx[:], rv.Reg))
		b.WriteString("   0x")
		b.Write(conv.U8Hex(hx[:], rv.Val))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// Store parses one "<hex-address> <hex-value>" line and upserts it into the
// tuning cache. Tokens take an optional 0x prefix.
func (g *Diag) Store(line string) error {
	toks, err := shlex.Split(line)
	if err != nil {
		return &errcode.E{C: errcode.InvalidPayload, Op: "tune_store", Err: err}
	}
	if len(toks) != 2 {
		return &errcode.E{C: errcode.InvalidPayload, Op: "tune_store",
			Msg: "want \"<address> <value>\""}
	}
	reg, ok := conv.ParseU8Hex(toks[0])
	if !ok {
		return &errcode.E{C: errcode.InvalidPayload, Op: "tune_store",
			Msg: "bad address " + toks[0]}
	}
	val, ok := conv.ParseU8Hex(toks[1])
	if !ok {
		return &errcode.E{C: errcode.InvalidPayload, Op: "tune_store",
			Msg: "bad value " + toks[1]}
	}
	return g.dev.tune.Upsert(reg, val)
}
