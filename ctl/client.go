package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	ghostline "github.com/Paranoid-AF/ghostline"
)

// client talks to the daemon over its Unix socket, one request per
// connection.
type client struct {
	sockPath string
	timeout  time.Duration
}

func (c *client) send(ctx context.Context, req any) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.sockPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to ghostlined at %s: %w", c.sockPath, err)
	}
	if c.timeout > 0 {
		conn.SetDeadline(time.Now().Add(c.timeout))
	}

	data, err := json.Marshal(req)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending request: %w", err)
	}
	return conn, nil
}

// call sends req and decodes the single response line into resp.
func (c *client) call(ctx context.Context, req, resp any) error {
	conn, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		return errors.New("daemon closed the connection without a response")
	}
	if err := json.Unmarshal(scanner.Bytes(), resp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// stream sends a completion request and calls fn for every event until the
// done event, which is returned.
func (c *client) stream(ctx context.Context, req *ghostline.Request, fn func(ghostline.Event)) (*ghostline.Event, error) {
	conn, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var ev ghostline.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("decoding event: %w", err)
		}
		fn(ev)
		if ev.Type == ghostline.EventDone {
			return &ev, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	return nil, errors.New("event stream ended without a done event")
}

// responseError turns a daemon error into a Go error.
func responseError(e *ghostline.Error) error {
	if e == nil {
		return nil
	}
	return fmt.Errorf("%s: %s", e.Code, e.Message)
}
