// services/repeater/reset.go
package repeater

import (
	"repeatercode-go/internal/rlog"
)

// ResetLine drives the repeater's active-high reset GPIO.
type ResetLine interface {
	// ConfigureOutput claims the line as an output at the given level.
	ConfigureOutput(level bool) error
	Set(level bool)
	Get() bool
}

// resetControl owns the reset line. The line is claimed low at construction
// so the chip starts held in reset until the platform brings it out.
type resetControl struct {
	line ResetLine
	log  *rlog.Logger
}

func newResetControl(line ResetLine, log *rlog.Logger) (*resetControl, error) {
	if err := line.ConfigureOutput(false); err != nil {
		return nil, err
	}
	return &resetControl{line: line, log: log}, nil
}

// Apply drives the line: true brings the chip out of reset, false holds it
// in reset. Level writes cannot fail.
func (r *resetControl) Apply(bringOutOfReset bool) {
	r.log.Debug("reset gpio", "out_of_reset", bringOutOfReset)
	r.line.Set(bringOutOfReset)
}

func (r *resetControl) OutOfReset() bool { return r.line.Get() }
