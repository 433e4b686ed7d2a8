// Package interactive provides the interactive command-line interface
// for the device manager harness.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/devmgr-go/devmgr/pkg/device"
	"github.com/devmgr-go/devmgr/pkg/inspect"
)

// Shell handles interactive mode for devmgr.
type Shell struct {
	manager   *device.Manager
	inspector *inspect.Inspector
	formatter *inspect.Formatter
	rl        *readline.Instance
	out       io.Writer
}

// New creates a new interactive shell reading from the terminal.
func New(m *device.Manager) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "devmgr> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s := NewWithWriter(m, rl.Stdout())
	s.rl = rl
	return s, nil
}

// NewWithWriter creates a shell without a terminal. Commands are fed
// through Exec and output goes to w.
func NewWithWriter(m *device.Manager, w io.Writer) *Shell {
	return &Shell{
		manager:   m,
		inspector: inspect.NewInspector(m),
		formatter: inspect.NewFormatter(),
		out:       w,
	}
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	if s.rl == nil {
		return
	}
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		if s.Exec(line) {
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Exec runs one command line and reports whether the shell should quit.
func (s *Shell) Exec(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "tree", "t":
		s.cmdTree(args)

	case "node", "n":
		s.cmdNode(args)

	case "attrs", "a":
		s.cmdAttrs(args)

	case "get", "g":
		s.cmdGet(args)

	case "rescan":
		s.cmdRescan(args)

	case "probe":
		s.cmdProbe(args)

	case "remove", "rm":
		s.cmdRemove(args)

	case "unregister":
		s.cmdUnregister(args)

	case "release":
		s.cmdRelease()

	case "quit", "exit", "q":
		return true

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Device Manager Commands:
  Inspection:
    tree [-ids]             - Dump the device tree
    node <path>             - Show one node and its state
    attrs <path>            - List a node's attributes
    get <path> <name> [-r]  - Look up one attribute (-r searches parents)

  Tree Control:
    rescan [path]           - Rescan a subtree for new devices (default root)
    probe [class]           - Run deferred matching (disk, net, graphics, audio, video)
    remove <path>           - Report a node's hardware as gone
    unregister <path>       - Try to unregister a node
    release                 - Unload drivers kept from registration

  General:
    help                    - Show this help
    quit                    - Exit

  Path Format:
    child indices from the root - e.g., 0/1/0
    "/" for the root, "#<id>" for a node ID`)
}

// resolve parses and resolves a path argument, printing errors.
func (s *Shell) resolve(arg string) (*device.Node, bool) {
	n, err := s.inspector.ResolveString(arg)
	if err != nil {
		fmt.Fprintf(s.out, "Invalid path: %v\n", err)
		return nil, false
	}
	return n, true
}

// cmdTree handles the tree command.
func (s *Shell) cmdTree(args []string) {
	f := *s.formatter
	for _, a := range args {
		if a == "-ids" {
			f.ShowIDs = true
		}
	}
	if err := f.FormatTree(s.out, s.inspector.InspectTree()); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}

// cmdNode handles the node command.
func (s *Shell) cmdNode(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: node <path>")
		return
	}
	n, ok := s.resolve(args[0])
	if !ok {
		return
	}
	info := s.inspector.InspectNode(n)
	f := *s.formatter
	f.ShowIDs = true
	fmt.Fprint(s.out, f.FormatNode(&info))
	fmt.Fprintf(s.out, "  children: %d\n", len(info.Children))
	if _, cookie, err := s.manager.GetDriver(n); err == nil && cookie != nil {
		fmt.Fprintf(s.out, "  driver data: %+v\n", cookie)
	}
}

// cmdAttrs handles the attrs command.
func (s *Shell) cmdAttrs(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: attrs <path>")
		return
	}
	n, ok := s.resolve(args[0])
	if !ok {
		return
	}
	rows := inspect.AttributeRows(n.Attrs())
	fmt.Fprint(s.out, s.formatter.FormatAttributeTable(rows))
}

// cmdGet handles the get command.
func (s *Shell) cmdGet(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: get <path> <name> [-r]")
		fmt.Fprintln(s.out, "  Example: get 0/0/0 vendor -r")
		return
	}
	path, err := inspect.ParsePath(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Invalid path: %v\n", err)
		return
	}
	rest := args[1:]
	recursive := false
	if rest[len(rest)-1] == "-r" {
		recursive = true
		rest = rest[:len(rest)-1]
	}
	if len(rest) == 0 {
		fmt.Fprintln(s.out, "Usage: get <path> <name> [-r]")
		return
	}
	// Attribute names may contain spaces ("device/pretty name").
	name := strings.Join(rest, " ")
	a, err := s.inspector.ReadAttribute(path, name, recursive)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, s.formatter.FormatAttr(a))
}

// cmdRescan handles the rescan command.
func (s *Shell) cmdRescan(args []string) {
	target := "/"
	if len(args) > 0 {
		target = args[0]
	}
	n, ok := s.resolve(target)
	if !ok {
		return
	}
	before := s.manager.NodeCount()
	if err := s.manager.Rescan(n); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Rescanned %s: %d new node(s)\n", n, s.manager.NodeCount()-before)
}

// cmdProbe handles the probe command.
func (s *Shell) cmdProbe(args []string) {
	class := ""
	if len(args) > 0 {
		class = args[0]
	}
	before := s.manager.NodeCount()
	if err := s.manager.Probe(class); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
	fmt.Fprintf(s.out, "Probed: %d new node(s)\n", s.manager.NodeCount()-before)
}

// cmdRemove handles the remove command.
func (s *Shell) cmdRemove(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: remove <path>")
		return
	}
	n, ok := s.resolve(args[0])
	if !ok {
		return
	}
	if err := s.manager.NotifyRemoved(n); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Marked %s removed\n", n)
}

// cmdUnregister handles the unregister command.
func (s *Shell) cmdUnregister(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: unregister <path>")
		return
	}
	n, ok := s.resolve(args[0])
	if !ok {
		return
	}
	if err := s.manager.UnregisterDevice(n); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Unregistered %s\n", n)
}

// cmdRelease handles the release command.
func (s *Shell) cmdRelease() {
	fmt.Fprintf(s.out, "Unloaded %d driver(s)\n", s.manager.ReleaseUnused())
}
