package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/tlsbench/harness/harnesstest"
)

func TestServerCommand(t *testing.T) {
	tool := Tool{Path: "/opt/oqs/openssl/bin/openssl", ServerArgs: []string{"-quiet"}}

	cmd := tool.Server(ServerSpec{
		CertFile:  "pki/servercerts/prime256v1/server.crt",
		KeyFile:   "pki/servercerts/prime256v1/server.key",
		ChainFile: "pki/cacerts/prime256v1/CA.crt",
		Group:     "x25519_kyber768",
		Port:      9903,
	})

	want := []string{
		"s_server",
		"-cert", "pki/servercerts/prime256v1/server.crt",
		"-key", "pki/servercerts/prime256v1/server.key",
		"-tls1_3",
		"-curves", "x25519_kyber768",
		"-WWW",
		"-accept", "*:9903",
		"-cert_chain", "pki/cacerts/prime256v1/CA.crt",
		"-quiet",
	}

	assert.Equal(t, tool.Path, cmd.Binary)
	assert.Equal(t, want, cmd.Args)
	assert.Empty(t, cmd.Env, "servers take no environment override")
}

func TestClientCommand(t *testing.T) {
	tool := Tool{Path: "openssl"}

	cmd := tool.Client(ClientSpec{
		Host:        "10.0.0.2",
		Port:        5001,
		Resource:    "/index.html",
		VerifyDepth: 2,
		Duration:    10 * time.Second,
		Groups:      "kyber512",
	})

	want := []string{
		"s_time",
		"-connect", "10.0.0.2:5001",
		"-new",
		"-tls1_3",
		"-www", "/index.html",
		"-verify", "2",
		"-time", "10",
	}

	assert.Equal(t, want, cmd.Args)
	assert.Equal(t, []string{"DEFAULT_GROUPS=kyber512"}, cmd.Env)
}

func TestClientCommandCustomGroupsEnv(t *testing.T) {
	tool := Tool{Path: "openssl", GroupsEnv: "OQS_GROUPS"}

	cmd := tool.Client(ClientSpec{Host: "h", Port: 1, Groups: "x25519"})
	assert.Equal(t, []string{"OQS_GROUPS=x25519"}, cmd.Env)
}

func TestSeconds(t *testing.T) {
	tests := []struct {
		input time.Duration
		want  int
	}{
		{0, 1},
		{500 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{30 * time.Second, 30},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Seconds(tt.input), "Seconds(%v)", tt.input)
	}
}

func TestProcessExits(t *testing.T) {
	bin := harnesstest.OpenSSL(t, harnesstest.Fake{Rate: "12.3456"})
	logPath := filepath.Join(t.TempDir(), "client.log")

	cmd := Tool{Path: bin}.Client(ClientSpec{
		Host: "localhost", Port: 5000, Duration: time.Second, Groups: "x448",
	})

	p, err := Start(context.Background(), cmd, logPath)
	require.NoError(t, err)

	out := p.Await(10 * time.Second)
	require.False(t, out.TimedOut(), "process should exit before the deadline")
	require.False(t, out.Failed(), "process failed: %v", out.Err)
	assert.True(t, p.Exited())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	assert.Contains(t, string(data), "groups=x448", "environment override reaches the child")
	assert.Contains(t, string(data), "12.3456 connections/user")
}

func TestProcessTimeoutAndKill(t *testing.T) {
	bin := harnesstest.OpenSSL(t, harnesstest.Fake{Hang: []int{5000}})
	logPath := filepath.Join(t.TempDir(), "client.log")

	cmd := Tool{Path: bin}.Client(ClientSpec{Host: "localhost", Port: 5000})

	p, err := Start(context.Background(), cmd, logPath)
	require.NoError(t, err)

	out := p.Await(200 * time.Millisecond)
	require.True(t, out.TimedOut(), "state = %v", out.State)
	assert.Equal(t, 200*time.Millisecond, out.Timeout)

	require.NoError(t, p.Kill())
	assert.True(t, p.Exited(), "process still running after Kill")

	// A second kill on a reaped process is a no-op.
	assert.NoError(t, p.Kill())
}

func TestProcessFailedExit(t *testing.T) {
	bin := harnesstest.OpenSSL(t, harnesstest.Fake{Silent: []int{5000}})
	logPath := filepath.Join(t.TempDir(), "client.log")

	p, err := Start(context.Background(),
		Tool{Path: bin}.Client(ClientSpec{Host: "localhost", Port: 5000}), logPath)
	require.NoError(t, err)

	out := p.Await(10 * time.Second)
	assert.True(t, out.Failed(), "expected failed exit, got %+v", out)
}

func TestStartMissingBinary(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "client.log")

	_, err := Start(context.Background(), Command{
		Binary: filepath.Join(t.TempDir(), "does-not-exist"),
	}, logPath)
	assert.Error(t, err)
}

func TestProcessWaitContext(t *testing.T) {
	bin := harnesstest.OpenSSL(t, harnesstest.Fake{Hang: []int{5000}})
	logPath := filepath.Join(t.TempDir(), "client.log")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := Start(ctx,
		Tool{Path: bin}.Client(ClientSpec{Host: "localhost", Port: 5000}), logPath)
	require.NoError(t, err)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer waitCancel()

	assert.ErrorIs(t, p.Wait(waitCtx), context.DeadlineExceeded)

	cancel()
	<-p.Done()
}
