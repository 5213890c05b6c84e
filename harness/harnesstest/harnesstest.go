// Package harnesstest provides a shell stand-in for the openssl binary so
// launchers and drivers can be exercised without a TLS toolkit.
package harnesstest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Fake configures the behaviour of the stand-in binary.
type Fake struct {
	// Rate is the connections/user value s_time reports. Empty means
	// "9.8765".
	Rate string
	// Hang lists ports whose s_time never finishes on its own.
	Hang []int
	// Silent lists ports whose s_time exits without printing a summary.
	Silent []int
	// ServerExit lists ports whose s_server exits immediately instead of
	// serving until killed.
	ServerExit []int
}

// Script writes an executable /bin/sh script with the given body to a
// temporary directory and returns its path.
func Script(t testing.TB, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "openssl")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write fake openssl: %v", err)
	}

	return path
}

// OpenSSL writes a stand-in for openssl implementing the s_time and
// s_server subcommands as configured by f, and returns its path.
//
// s_time prints the DEFAULT_GROUPS it was given and one summary line.
// s_server prints its arguments and sleeps until killed.
func OpenSSL(t testing.TB, f Fake) string {
	t.Helper()

	rate := f.Rate
	if rate == "" {
		rate = "9.8765"
	}

	var b strings.Builder

	b.WriteString("case \"$1\" in\n")
	b.WriteString("s_time)\n")
	b.WriteString("  case \"$3\" in\n")
	writeCase(&b, f.Hang, "exec sleep 60")
	writeCase(&b, f.Silent, "echo 'connect: Connection refused'; exit 1")
	b.WriteString("  esac\n")
	b.WriteString("  echo \"groups=$DEFAULT_GROUPS\"\n")
	fmt.Fprintf(&b, "  echo \"10 connections in 1.00s; %s connections/user sec, bytes read 0\"\n", rate)
	b.WriteString("  echo \"10 connections in 2 real seconds, 0 bytes read per connection\"\n")
	b.WriteString("  ;;\n")
	b.WriteString("s_server)\n")
	b.WriteString("  echo \"$@\"\n")
	b.WriteString("  case \"${11}\" in\n")
	writeCase(&b, f.ServerExit, "exit 0")
	b.WriteString("  esac\n")
	b.WriteString("  exec sleep 60\n")
	b.WriteString("  ;;\n")
	b.WriteString("*)\n")
	b.WriteString("  echo \"unknown command $1\" >&2\n")
	b.WriteString("  exit 2\n")
	b.WriteString("  ;;\n")
	b.WriteString("esac\n")

	return Script(t, b.String())
}

func writeCase(b *strings.Builder, ports []int, action string) {
	for _, port := range ports {
		fmt.Fprintf(b, "  *:%d) %s ;;\n", port, action)
	}
}
