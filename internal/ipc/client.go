package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
	"time"
)

// ForwardTimeout bounds one control command sent to a running session.
const ForwardTimeout = 220 * time.Millisecond

// ErrNoSession means no session owns the socket: the path is absent or
// nothing is listening on it.
var ErrNoSession = errors.New("no active prepcoach session")

// RejectedError is a well-formed reply with OK unset.
type RejectedError struct {
	Command  string
	Response Response
}

func (e *RejectedError) Error() string {
	if e.Response.Error != "" {
		return e.Response.Error
	}
	return fmt.Sprintf("%s rejected in state %s", e.Command, e.Response.State)
}

// Forward sends one command to the session owning path. A missing owner is
// ErrNoSession; a rejected command is a *RejectedError carrying the reply.
// The socket file is never removed here.
func Forward(ctx context.Context, path string, command string) (Response, error) {
	resp, err := Send(ctx, path, Request{Command: command}, ForwardTimeout)
	switch {
	case err == nil && resp.OK:
		return resp, nil
	case err == nil:
		return resp, &RejectedError{Command: command, Response: resp}
	case noOwner(err):
		return Response{}, ErrNoSession
	default:
		return Response{}, fmt.Errorf("forward command %q: %w", command, err)
	}
}

// Send writes req as one JSON line and reads one reply line before timeout.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Probe reports whether a session answers status on path. Any reply counts,
// including a rejection.
func Probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := Send(ctx, path, Request{Command: CommandStatus}, timeout)
	switch {
	case err == nil:
		return true, nil
	case noOwner(err):
		return false, nil
	default:
		return false, fmt.Errorf("probe socket: %w", err)
	}
}

// noOwner reports dial failures that mean nobody is serving path.
func noOwner(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		strings.Contains(err.Error(), "no such file or directory")
}
