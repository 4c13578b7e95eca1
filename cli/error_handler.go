package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/mirror/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle prints a message for err based on its code and returns err.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	p := DefaultPalette
	prefix := p.Error.Render("Error:")

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "%s configuration not found. Create mirror.yml or pass --config.\n", prefix)

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fmt.Fprintf(h.Out, "%s invalid configuration: %v\n", prefix, err)
		fmt.Fprintln(h.Out, p.Muted.Render("Run 'mirror config schema' to see the accepted keys."))

	case errors.ErrCodeTransportFailed:
		fmt.Fprintf(h.Out, "%s cannot reach the event stream: %v\n", prefix, err)
		fmt.Fprintln(h.Out, p.Muted.Render("Check server.url / server.socket and that the server is running."))

	case errors.ErrCodeRequestFailed:
		fmt.Fprintf(h.Out, "%s request failed: %v\n", prefix, err)

	case errors.ErrCodeRequestCancelled:
		fmt.Fprintf(h.Out, "%s request cancelled\n", prefix)

	case errors.ErrCodeStateIO:
		fmt.Fprintf(h.Out, "%s cannot access tab state: %v\n", prefix, err)

	default:
		fmt.Fprintf(h.Out, "%s %v\n", prefix, err)
	}

	if h.Verbose {
		if mirrorErr, ok := err.(*errors.MirrorError); ok {
			fmt.Fprintf(h.Out, "\nError details:\n%s\n", mirrorErr.ToJSON())
		}
	}
	return err
}
