package export

import (
	"errors"
	"fmt"
)

// ErrInvalidRoom reports an export attempted without a completed capture.
var ErrInvalidRoom = errors.New("invalid room: no completed capture to export")

// ExportError wraps a fatal failure in one export step. Report generation is
// deliberately not part of this taxonomy: a missing report is a notice, not
// an abort.
type ExportError struct {
	Step string // "model", "data" or "persist"
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export failed (%s): %v", e.Step, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
