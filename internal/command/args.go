package command

import (
	"fmt"
)

const ConcurrentPut = "concurrent-put"

// Usage describes the positional arguments of a command.
type Usage struct {
	Name     string
	Args     string
	Short    string
	MinArgs  int
	Variadic bool
}

var usages = []Usage{
	{Name: KindGet.String(), Args: "<address> <key>", Short: "Read a key", MinArgs: 2},
	{Name: KindRedirectGet.String(), Args: "<address> <hashKey> <key>", Short: "Read a key from the replica owning hashKey", MinArgs: 3},
	{Name: KindPutPlain.String(), Args: "<address> <key> <data>", Short: "Write a plain {\"data\": ...} value", MinArgs: 3},
	{Name: KindPutVersioned.String(), Args: "<address> <key> <op> <item> <version>", Short: "Write an op/item/version record", MinArgs: 5},
	{Name: KindReconcile.String(), Args: "<address> <key> <versions>", Short: "Merge sibling versions of a key", MinArgs: 3},
	{Name: ConcurrentPut, Args: "<address> <key> <write> <write> [write...]", Short: "Send versioned writes to one key at the same time", MinArgs: 4, Variadic: true},
}

func Usages() []Usage {
	return append([]Usage(nil), usages...)
}

func LookupUsage(name string) (Usage, bool) {
	for _, u := range usages {
		if u.Name == name {
			return u, true
		}
	}

	return Usage{}, false
}

// CheckArgs returns a *UsageError when args are too few for the command.
func CheckArgs(name string, args []string) error {
	u, ok := LookupUsage(name)

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	if len(args) < u.MinArgs {
		return &UsageError{Command: u.Name, Usage: u.Args, Want: u.MinArgs, Got: len(args)}
	}

	return nil
}

// Parse builds a single command from positional CLI arguments. Extra
// arguments are ignored.
func Parse(name string, args []string) (Command, error) {
	if err := CheckArgs(name, args); err != nil {
		return Command{}, err
	}

	switch name {
	case KindGet.String():
		return NewGet(args[0], args[1])
	case KindRedirectGet.String():
		return NewRedirectGet(args[0], args[1], args[2])
	case KindPutPlain.String():
		return NewPutPlain(args[0], args[1], args[2])
	case KindPutVersioned.String():
		return NewPutVersioned(args[0], args[1], args[2], args[3], args[4])
	case KindReconcile.String():
		return NewReconcile(args[0], args[1], args[2])
	}

	return Command{}, fmt.Errorf("%w: %s builds more than one request", ErrUnknownCommand, name)
}

// ParseGroup is like Parse but also understands concurrent-put, which
// expands into one versioned put per write argument.
func ParseGroup(name string, args []string) ([]Command, error) {
	if name != ConcurrentPut {
		cmd, err := Parse(name, args)

		if err != nil {
			return nil, err
		}

		return []Command{cmd}, nil
	}

	if err := CheckArgs(name, args); err != nil {
		return nil, err
	}

	commands := make([]Command, 0, len(args)-2)

	for i, raw := range args[2:] {
		w, err := ParseVersionedWrite(raw)

		if err != nil {
			return nil, fmt.Errorf("write %d: %w", i+1, err)
		}

		cmd, err := NewPutVersioned(args[0], args[1], w.Op, w.Item, string(w.Version))

		if err != nil {
			return nil, fmt.Errorf("write %d: %w", i+1, err)
		}

		commands = append(commands, cmd)
	}

	return commands, nil
}
