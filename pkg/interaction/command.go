package interaction

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// ParseCommand turns one line of terminal input into events:
//
//	lower <value>   drag the lower slider to value
//	upper <value>   drag the upper slider to value
//	reset           restore the default thresholds
//	view <name>     coronal, axial, sagittal or reset
//	key <k>         press a single key
//	quit            close the session
//
// Blank lines and lines starting with # produce no events.
func ParseCommand(line string) ([]Event, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil, nil
	}

	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "lower", "upper", "l", "u":
		if len(args) != 1 {
			return nil, fmt.Errorf("%s needs exactly one value", cmd)
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q", cmd, args[0])
		}
		s := LowerSlider
		if cmd[0] == 'u' {
			s = UpperSlider
		}
		return Drag(s, v), nil

	case "reset":
		return []Event{Key(KeyReset)}, nil

	case "view":
		if len(args) != 1 {
			return nil, fmt.Errorf("view needs one of coronal, axial, sagittal, reset")
		}
		switch strings.ToLower(args[0]) {
		case string(Coronal):
			return []Event{Key(KeyCoronal)}, nil
		case string(Axial):
			return []Event{Key(KeyAxial)}, nil
		case string(Sagittal):
			return []Event{Key(KeySagittal)}, nil
		case "reset":
			return []Event{Key(KeyResetCamera)}, nil
		}
		return nil, fmt.Errorf("unknown view %q", args[0])

	case "key":
		if len(args) != 1 || len([]rune(args[0])) != 1 {
			return nil, fmt.Errorf("key needs a single character")
		}
		return []Event{Key([]rune(args[0])[0])}, nil

	case "quit", "exit", "q":
		return []Event{Key(KeyQuit)}, nil
	}

	return nil, fmt.Errorf("unknown command %q", fields[0])
}

// ReadCommands parses r line by line and sends the resulting events until r
// is exhausted or ctx is done. The channel is closed on return. Lines that do
// not parse are logged and skipped.
func ReadCommands(ctx context.Context, r io.Reader, events chan<- Event, log zerolog.Logger) error {
	defer close(events)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		evs, err := ParseCommand(scanner.Text())
		if err != nil {
			log.Warn().Err(err).Msg("ignoring command")
			continue
		}
		for _, ev := range evs {
			select {
			case events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return scanner.Err()
}
