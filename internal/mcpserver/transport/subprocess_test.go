package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erauner12/topicbridge/internal/mcpserver/jsonrpc"
)

const helperEnv = "GO_WANT_TRANSPORT_HELPER"

func helperConfig(mode string) SubprocessConfig {
	return SubprocessConfig{
		Command:     os.Args[0],
		Args:        []string{"-test.run=TestHelperProcess", "--"},
		Env:         map[string]string{helperEnv: mode},
		GracePeriod: 200 * time.Millisecond,
	}
}

func TestHelperProcess(t *testing.T) {
	mode := os.Getenv(helperEnv)
	if mode == "" {
		return
	}

	switch mode {
	case "echo":
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			var msg jsonrpc.Message
			if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
				continue
			}
			if !msg.IsRequest() {
				continue
			}
			resp, _ := jsonrpc.NewResult(msg.ID, map[string]string{"method": msg.Method})
			data, _ := json.Marshal(resp)
			fmt.Fprintf(os.Stdout, "%s\n", data)
		}
		os.Exit(0)
	case "crash":
		fmt.Fprintln(os.Stderr, "fatal: missing configuration")
		os.Exit(3)
	case "hang":
		// ignores stdin closing; only a kill ends it
		time.Sleep(time.Minute)
		os.Exit(0)
	}
	os.Exit(2)
}

func TestSubprocessEcho(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := StartSubprocess(ctx, helperConfig("echo"))
	require.NoError(t, err)
	defer p.Close(context.Background())

	var _ Transport = p

	for i := int64(1); i <= 3; i++ {
		req, err := jsonrpc.NewRequest(i, jsonrpc.MethodPing, nil)
		require.NoError(t, err)
		require.NoError(t, p.Send(ctx, req))

		resp, err := p.Receive(ctx)
		require.NoError(t, err)
		assert.True(t, jsonrpc.SameID(jsonrpc.IntID(i), resp.ID))
		assert.JSONEq(t, `{"method":"ping"}`, string(resp.Result))
	}
}

func TestSubprocessExitIsProcessError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := StartSubprocess(ctx, helperConfig("crash"))
	require.NoError(t, err)
	defer p.Close(context.Background())

	_, err = p.Receive(ctx)
	require.Error(t, err)

	var perr *ProcessError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.ExitCode)
	assert.Contains(t, perr.Stderr, "missing configuration")
	assert.ErrorIs(t, err, io.EOF)
}

func TestSubprocessCloseKillsAndIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := StartSubprocess(ctx, helperConfig("hang"))
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, p.Close(ctx))
	assert.Less(t, time.Since(start), 3*time.Second)

	select {
	case <-p.Exited():
	default:
		t.Fatal("process should be reaped after Close")
	}

	require.NoError(t, p.Close(ctx))
	_, err = p.Receive(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStartSubprocessMissingBinary(t *testing.T) {
	_, err := StartSubprocess(context.Background(), SubprocessConfig{
		Command: "/nonexistent/topicbridge-server",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start /nonexistent/topicbridge-server")
}

func TestStartSubprocessRequiresCommand(t *testing.T) {
	_, err := StartSubprocess(context.Background(), SubprocessConfig{})
	require.Error(t, err)
}
