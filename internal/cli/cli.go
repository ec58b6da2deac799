// Package cli parses prepcoach command lines.
package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Command string

const (
	CommandInterview Command = "interview"
	CommandMath      Command = "math"
	CommandTutor     Command = "tutor"
	CommandHistory   Command = "history"
	CommandStop      Command = "stop"
	CommandCancel    Command = "cancel"
	CommandStatus    Command = "status"
	CommandDevices   Command = "devices"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandInterview: {},
	CommandMath:      {},
	CommandTutor:     {},
	CommandHistory:   {},
	CommandStop:      {},
	CommandCancel:    {},
	CommandStatus:    {},
	CommandDevices:   {},
	CommandDoctor:    {},
	CommandVersion:   {},
	CommandHelp:      {},
}

// Parsed is one command line. Command-specific fields are zero unless the
// command accepts them.
type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	Debug      bool

	Role     string
	Language string
	Problem  string
	File     string
	Attempt  string

	HistoryID string
	Format    string
	Limit     int
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--debug":
			parsed.Debug = true
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if err := parsed.parseCommandArgs(args[i+1:]); err != nil {
				return Parsed{}, err
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func (p *Parsed) parseCommandArgs(rest []string) error {
	flags := map[Command]map[string]*string{
		CommandInterview: {"--role": &p.Role, "--language": &p.Language},
		CommandMath:      {"--problem": &p.Problem},
		CommandTutor:     {"--problem": &p.Problem, "--file": &p.File, "--attempt": &p.Attempt},
		CommandHistory:   {"--format": &p.Format},
	}[p.Command]

	var positional []string
	var limit string
	if p.Command == CommandHistory {
		flags["--limit"] = &limit
	}

	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		if !strings.HasPrefix(arg, "-") {
			positional = append(positional, arg)
			continue
		}
		name, value, inline := strings.Cut(arg, "=")
		dst, ok := flags[name]
		if !ok {
			return fmt.Errorf("unknown flag for %s: %s", p.Command, name)
		}
		if !inline {
			i++
			if i >= len(rest) {
				return fmt.Errorf("%s requires a value", name)
			}
			value = rest[i]
		}
		*dst = value
	}

	switch p.Command {
	case CommandMath:
		if strings.TrimSpace(p.Problem) == "" {
			return errors.New("math requires --problem")
		}
	case CommandTutor:
		if strings.TrimSpace(p.Problem) == "" && strings.TrimSpace(p.File) == "" {
			return errors.New("tutor requires --problem or --file")
		}
	case CommandHistory:
		return p.parseHistory(positional, limit)
	}

	if len(positional) > 0 {
		return fmt.Errorf("unexpected arguments after command %q", p.Command)
	}
	return nil
}

func (p *Parsed) parseHistory(positional []string, limit string) error {
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			return fmt.Errorf("--limit must be a positive integer, got %q", limit)
		}
		p.Limit = n
	}

	switch {
	case len(positional) == 0:
		if p.Format != "" {
			return errors.New("--format applies to history show")
		}
		return nil
	case positional[0] == "show" && len(positional) == 2:
		p.HistoryID = positional[1]
	case positional[0] == "show":
		return errors.New("usage: history show SESSION_ID [--format json|yaml]")
	default:
		return fmt.Errorf("unknown history subcommand: %s", positional[0])
	}

	if p.Format == "" {
		p.Format = "json"
	}
	if p.Format != "json" && p.Format != "yaml" {
		return fmt.Errorf("--format must be json or yaml, got %q", p.Format)
	}
	return nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--debug] <command> [flags]

Commands:
  interview [--role R] [--language L]
            Run a mock interview; type answers or record them with :record
  math --problem TEXT
            Solve a problem step by step with hints and step validation
  tutor (--problem TEXT | --file PATH) [--attempt TEXT]
            Submit an exercise and chat with the tutor
  history [--limit N]
            List archived sessions
  history show ID [--format json|yaml]
            Print one archived session
  stop      Stop the active recording and transcribe it
  cancel    Cancel the active recording
  status    Print the running session's recording state
  devices   List available input devices
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Session commands (interview and math):
  :record          Start recording; Enter or '%[1]s stop' finishes it
  :submit          Submit the current answer or step
  :next            Advance to the next question (interview)
  :speak           Save spoken coaching tips to a file (interview)
  :hint            Request a fresh hint (math)
  :finish          Generate the worked solution (math)
  :download FMT    Save the solution as markdown, latex, html, or json (math)
  :reset           Discard the session and start over
  :quit            Leave
  any other line   Replaces the current answer or step draft

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/prepcoach/config.jsonc)
  --debug         Log at debug level
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
