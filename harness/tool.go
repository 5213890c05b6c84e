package harness

import (
	"strconv"
	"time"
)

// DefaultGroupsEnv is the environment variable through which s_time learns
// the key-exchange groups to offer; s_time has no command-line flag for it.
const DefaultGroupsEnv = "DEFAULT_GROUPS"

// Command holds the resolved binary, arguments and environment overrides
// for one process. Env entries are KEY=VALUE and are appended to the
// inherited environment.
type Command struct {
	Binary string
	Args   []string
	Env    []string
}

// Tool describes the TLS toolkit binary and the extra arguments appended to
// every server or client invocation.
type Tool struct {
	Path       string
	ServerArgs []string
	ClientArgs []string
	GroupsEnv  string
}

// ServerSpec holds the per-port parameters of an s_server invocation.
type ServerSpec struct {
	CertFile  string
	KeyFile   string
	ChainFile string
	Group     string
	Port      int
}

// ClientSpec holds the per-slot parameters of an s_time invocation.
type ClientSpec struct {
	Host        string
	Port        int
	Resource    string
	VerifyDepth int
	Duration    time.Duration
	Groups      string
}

// Server returns the command that starts one TLS 1.3 server bound to
// spec.Port.
func (t Tool) Server(spec ServerSpec) Command {
	args := []string{
		"s_server",
		"-cert", spec.CertFile,
		"-key", spec.KeyFile,
		"-tls1_3",
		"-curves", spec.Group,
		"-WWW",
		"-accept", "*:" + strconv.Itoa(spec.Port),
		"-cert_chain", spec.ChainFile,
	}
	args = append(args, t.ServerArgs...)

	return Command{Binary: t.Path, Args: args}
}

// Client returns the command that opens new TLS 1.3 connections to
// host:port for spec.Duration and reports the connection rate.
func (t Tool) Client(spec ClientSpec) Command {
	args := []string{
		"s_time",
		"-connect", spec.Host + ":" + strconv.Itoa(spec.Port),
		"-new",
		"-tls1_3",
		"-www", spec.Resource,
		"-verify", strconv.Itoa(spec.VerifyDepth),
		"-time", strconv.Itoa(Seconds(spec.Duration)),
	}
	args = append(args, t.ClientArgs...)

	env := t.GroupsEnv
	if env == "" {
		env = DefaultGroupsEnv
	}

	return Command{
		Binary: t.Path,
		Args:   args,
		Env:    []string{env + "=" + spec.Groups},
	}
}

// Seconds converts d to whole seconds for the -time flag, rounding up so a
// sub-second duration still runs for one second.
func Seconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}

	return s
}
