package gateway

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/soulscout/soulscout/internal/models"
)

// ParsedCommand is a validated slash command with its raw arguments.
type ParsedCommand struct {
	Cmd  string
	Args []string
}

var validCommands = map[string]bool{
	"start":         true,
	"help":          true,
	"balance":       true,
	"holdings":      true,
	"signals":       true,
	"silence":       true,
	"resume":        true,
	"health":        true,
	"add_wallet":    true,
	"remove_wallet": true,
	"guest":         true,
}

// Parse validates a message text as a slash command.
func Parse(text string) (ParsedCommand, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed[0] != '/' {
		return ParsedCommand{}, fmt.Errorf("not a command")
	}

	fields := strings.Fields(trimmed[1:])
	if len(fields) == 0 {
		return ParsedCommand{}, fmt.Errorf("empty command")
	}

	cmd := fields[0]
	if !validCommands[cmd] {
		return ParsedCommand{}, fmt.Errorf("unknown command: /%s", cmd)
	}
	return ParsedCommand{Cmd: cmd, Args: fields[1:]}, nil
}

// BuildCommand assembles the request envelope for the command stream.
// Per-command argument coercion mirrors what the consumers expect;
// unparseable numbers fall back to defaults rather than erroring.
func BuildCommand(pc ParsedCommand, userID int64, role Role, corrID string) models.Command {
	args := map[string]any{}

	switch pc.Cmd {
	case "signals":
		// Analytics reads window_hours as a number; accept "12" or "12h".
		if len(pc.Args) > 0 {
			raw := strings.TrimSuffix(pc.Args[0], "h")
			if hours, err := strconv.ParseFloat(raw, 64); err == nil && hours > 0 {
				args["window_hours"] = hours
			}
		}
	case "silence", "guest":
		args["minutes"] = intArg(pc.Args, 0, 30)
	case "add_wallet", "remove_wallet":
		if len(pc.Args) > 0 {
			args["address"] = pc.Args[0]
		}
	case "holdings":
		args["limit"] = intArg(pc.Args, 0, 10)
	}

	return models.Command{
		Type:   "command",
		Cmd:    pc.Cmd,
		CorrID: corrID,
		Ts:     models.NowISO8601(),
		Args:   args,
		From:   models.CommandFrom{TgUserID: userID, Role: role.String()},
	}
}

func intArg(args []string, i, def int) int {
	if i >= len(args) {
		return def
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return def
	}
	return n
}
