package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
	"github.com/vitaminmoo/rtrk-tool/internal/tracker"
)

// Runner executes CLI commands against one gate and prints the results.
type Runner struct {
	Client   *tracker.Client
	DeviceID string
	Out      io.Writer
	In       io.Reader
	// JSON switches output to indented JSON.
	JSON bool
}

func (r *Runner) out() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out(), format, args...)
}

// PrintJSON pretty-prints v.
func (r *Runner) PrintJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(r.out(), string(data))
	return nil
}

// emit prints v as JSON or, in text mode, with the given format.
func (r *Runner) emit(v any, format string, args ...any) error {
	if r.JSON {
		return r.PrintJSON(v)
	}
	r.printf(format, args...)
	return nil
}

// ConfirmAction prompts the user to type 'yes' to continue.
// Returns true if confirmed, false otherwise.
func (r *Runner) ConfirmAction(prompt string) bool {
	r.printf("%s", prompt)

	in := r.In
	if in == nil {
		in = os.Stdin
	}
	reader := bufio.NewReader(in)
	confirm, _ := reader.ReadString('\n')
	confirm = strings.TrimSpace(confirm)

	return confirm == "yes"
}

// ParseAssignments parses "RACER=CHANNEL" arguments, e.g. "1=R1" "2=L4".
// An empty channel ("3=") clears the slot.
func ParseAssignments(args []string) ([]protocol.RacerChannel, error) {
	out := make([]protocol.RacerChannel, 0, len(args))
	for _, arg := range args {
		racerStr, ch, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid assignment %q (want RACER=CHANNEL)", arg)
		}
		racer, err := strconv.Atoi(strings.TrimSpace(racerStr))
		if err != nil || racer < 1 || racer > protocol.NumSlots {
			return nil, fmt.Errorf("assignment %q: %w", arg, protocol.ErrInvalidRacer)
		}
		ch = strings.ToUpper(strings.TrimSpace(ch))
		if ch != "" && ch != protocol.Unassigned && !protocol.ValidUserChannel(ch) {
			return nil, fmt.Errorf("assignment %q: invalid channel %q", arg, ch)
		}
		out = append(out, protocol.RacerChannel{Racer: racer, Channel: ch})
	}
	return out, nil
}
