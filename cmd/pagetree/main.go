package main

import (
	"os"
	"strings"

	"pagetree-cli/internal/cli"
)

func isNodeID(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "node-") && len(s) > len("node-")
}

// rewriteNodeLookupArgs turns `pagetree [flags] <node-id>` into `pagetree [flags] nodes show <node-id>`.
// Cobra treats the first positional as a subcommand, so the rewrite has to happen before parsing.
func rewriteNodeLookupArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--dir":    true,
		"--config": true,
		"--page":   true,
		"--format": true,
	}
	boolFlags := map[string]bool{
		"--pretty":  true,
		"--verbose": true,
		"-v":        true,
	}

	insert := func(i int) []string {
		out := make([]string, 0, len(argv)+2)
		out = append(out, argv[:i]...)
		out = append(out, "nodes", "show")
		return append(out, argv[i:]...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		switch {
		case a == "":
			continue
		case a == "--":
			if i+1 < len(argv) && isNodeID(argv[i+1]) {
				return insert(i + 1)
			}
			return argv
		case strings.HasPrefix(a, "-"):
			// Unknown flags are skipped without their value so a node id is never swallowed.
			if !strings.Contains(a, "=") && !boolFlags[a] && valueFlags[a] {
				i++
			}
			continue
		case isNodeID(a):
			return insert(i)
		default:
			return argv
		}
	}
	return argv
}

func main() {
	os.Args = rewriteNodeLookupArgs(os.Args)

	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
