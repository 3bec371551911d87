package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cayleygraph/quad"

	"github.com/cayleygraph/plaza"
	"github.com/cayleygraph/plaza/clog"
	"github.com/cayleygraph/plaza/record"
	"github.com/cayleygraph/plaza/registry"
	"github.com/cayleygraph/plaza/triplespace"
	"github.com/cayleygraph/plaza/xsd"
)

// ErrExit is returned by Exec for the exit command.
var ErrExit = errors.New("exit")

const help = `Commands:
	schema <uri>...                         load schema sources
	connect <space> <single|-> <collection|-> connect a space to its services
	load <space> [key=value]...             load entities of a space
	loadone <space> [key=value]...          load a single entity
	create <space> [key=value]...           create an entity
	show <uri|space>                        print an entity or all entities of a space
	set <uri> key=value...                  update fields of an entity
	rm <uri>                                destroy an entity
	watch <space>                           print the events of a space
	spaces                                  list spaces
	:debug [t|f]                            toggle debug logging
	help                                    this help
	exit                                    exit
Values may carry a datatype: points=3^^http://www.w3.org/2001/XMLSchema#int
`

// Shell executes commands over a context.
type Shell struct {
	c   *plaza.Context
	out io.Writer
}

// NewShell creates a shell writing its output to out.
func NewShell(c *plaza.Context, out io.Writer) *Shell {
	return &Shell{c: c, out: out}
}

// ParseAssignments converts key=value arguments to a record. Repeated keys
// become sequences; values in value^^datatype form are decoded.
func ParseAssignments(args []string) (record.Record, error) {
	rec := make(record.Record)
	for _, arg := range args {
		i := strings.IndexByte(arg, '=')
		if i <= 0 {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		key, val := arg[:i], arg[i+1:]
		var v interface{} = val
		if xsd.IsCompact(val) {
			d, err := xsd.DecodeValue(quad.String(val))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			v = d
		}
		rec.Add(key, v)
	}
	return rec, nil
}

func (s *Shell) printJSON(v interface{}) error {
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (s *Shell) printURIs(res triplespace.Result) {
	for _, uri := range res.URIs {
		fmt.Fprintln(s.out, uri)
	}
	fmt.Fprintf(s.out, "-----------\n%d %s\n", len(res.URIs), plural(len(res.URIs), "entity", "entities"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func endpoint(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

// Exec runs a single command line.
func (s *Shell) Exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if len(line) == 0 || line[0] == '#' {
		return nil
	}
	cmd, rest := splitLine(line)
	args := strings.Fields(rest)
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s: expected at least %d arguments, see help", cmd, n)
		}
		return nil
	}
	switch cmd {
	case "help":
		fmt.Fprint(s.out, help)
	case "exit":
		return ErrExit
	case ":debug":
		arg := strings.TrimSpace(rest)
		var debug bool
		switch arg {
		case "t":
			debug = true
		case "f":
			// Do nothing.
		default:
			var err error
			debug, err = strconv.ParseBool(arg)
			if err != nil {
				return fmt.Errorf("cannot parse %q as a valid boolean - acceptable values: 't'|'true' or 'f'|'false'", arg)
			}
		}
		if debug {
			clog.SetV(2)
		} else {
			clog.SetV(0)
		}
		fmt.Fprintf(s.out, "Debug set to %t\n", debug)
	case "schema":
		if err := need(1); err != nil {
			return err
		}
		if err := s.c.LoadSchemas(ctx, args...); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%d schemas loaded\n", len(s.c.Ontology.Schemas()))
	case "connect":
		if err := need(3); err != nil {
			return err
		}
		name, err := s.c.Store.Connect(ctx, args[0], triplespace.Endpoints{
			Single:     endpoint(args[1]),
			Collection: endpoint(args[2]),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "connected %s\n", name)
	case "load", "loadone", "create":
		if err := need(1); err != nil {
			return err
		}
		data, err := ParseAssignments(args[1:])
		if err != nil {
			return err
		}
		var res triplespace.Result
		switch cmd {
		case "load":
			res, err = s.c.Store.LoadInstances(ctx, args[0], data)
		case "loadone":
			res, err = s.c.Store.LoadInstance(ctx, args[0], data)
		default:
			res, err = s.c.Store.CreateEntity(ctx, args[0], data)
		}
		if err != nil {
			return err
		}
		s.printURIs(res)
	case "show":
		if err := need(1); err != nil {
			return err
		}
		if rec, err := s.c.Registry.FindEntityByURI(args[0]); err == nil {
			return s.printJSON(rec)
		}
		recs, err := s.c.Registry.SpaceEntities(args[0])
		if err != nil {
			return fmt.Errorf("no entity or space named %q", args[0])
		}
		return s.printJSON(recs)
	case "set":
		if err := need(2); err != nil {
			return err
		}
		rec, err := s.c.Registry.FindEntityByURI(args[0])
		if err != nil {
			return err
		}
		data, err := ParseAssignments(args[1:])
		if err != nil {
			return err
		}
		for k, v := range data {
			rec[k] = v
		}
		s.c.Registry.UpdateEntity(args[0], rec)
		s.c.Store.Flush()
		dirty, _ := s.c.Registry.IsDirty(args[0])
		fmt.Fprintf(s.out, "updated %s (dirty: %t)\n", args[0], dirty)
	case "rm":
		if err := need(1); err != nil {
			return err
		}
		if _, err := s.c.Registry.FindEntityByURI(args[0]); err != nil {
			return err
		}
		s.c.Registry.DestroyEntity(args[0])
		s.c.Store.Flush()
		fmt.Fprintf(s.out, "destroyed %s\n", args[0])
	case "watch":
		if err := need(1); err != nil {
			return err
		}
		for _, ev := range []registry.Event{registry.Created, registry.Updated, registry.Destroyed} {
			err := s.c.Registry.SubscribeSpace(args[0], ev, s, func(target string, ev registry.Event, v record.Record) {
				fmt.Fprintf(s.out, "%s: %v %s\n", target, ev, v.URI())
			})
			if err != nil {
				return err
			}
		}
		fmt.Fprintf(s.out, "watching %s\n", args[0])
	case "spaces":
		for _, name := range s.c.Registry.Spaces() {
			sp, err := s.c.Registry.FindSpace(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(s.out, "%s\t%d %s\n", name, len(sp.Entities), plural(len(sp.Entities), "entity", "entities"))
		}
	default:
		return fmt.Errorf("unknown command: %q", cmd)
	}
	return nil
}

// Splits a line into a command and its arguments
// e.g. "load tasks owner=bob" will be split into "load" and " tasks owner=bob"
func splitLine(line string) (string, string) {
	var command, arguments string

	line = strings.TrimSpace(line)

	// An empty line/a line consisting of whitespace contains neither command nor arguments
	if len(line) > 0 {
		command = strings.Fields(line)[0]

		// A line containing only a command has no arguments
		if len(line) > len(command) {
			arguments = line[len(command):]
		}
	}

	return command, arguments
}
