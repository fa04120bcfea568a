// Package command parses the slash commands shared by the front-ends.
package command

import (
	"strings"
)

// Name identifies a command
type Name string

const (
	File       Name = "/file"
	Upload     Name = "/upload"
	Watch      Name = "/watch"
	Unwatch    Name = "/unwatch"
	ClearDraft Name = "/clear-draft"
	Help       Name = "/help"
	Quit       Name = "/quit"
)

// Command is a parsed slash command. Arg is the remainder of the line.
type Command struct {
	Name Name
	Arg  string
}

var aliases = map[string]Name{
	"/exit": Quit,
}

// Parse recognizes a slash command. ok is false for plain questions.
// Unknown commands parse with their literal name so callers can report them.
func Parse(line string) (cmd Command, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return Command{}, false
	}

	head, rest, _ := strings.Cut(line, " ")
	name := Name(strings.ToLower(head))
	if alias, found := aliases[string(name)]; found {
		name = alias
	}
	return Command{Name: name, Arg: strings.TrimSpace(rest)}, true
}

// Known reports whether the command is supported.
func (c Command) Known() bool {
	switch c.Name {
	case File, Upload, Watch, Unwatch, ClearDraft, Help, Quit:
		return true
	}
	return false
}

// HelpText lists the available commands.
func HelpText() string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	b.WriteString("  /file <path>    - Select a document to upload\n")
	b.WriteString("  /upload         - Upload the selected document\n")
	b.WriteString("  /watch          - Re-upload the selected document when it changes\n")
	b.WriteString("  /unwatch        - Stop watching the selected document\n")
	b.WriteString("  /clear-draft    - Discard the current input\n")
	b.WriteString("  /help           - Show this help message\n")
	b.WriteString("  /quit, /exit    - Exit\n")
	b.WriteString("Anything else is sent as a question about the uploaded document.")
	return b.String()
}
