// Package launcherd exposes the launcher's operations over
// line-delimited JSON-RPC 2.0, on TCP or stdio.
package launcherd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/oaiba/oblauncher/comm"
	"github.com/pkg/errors"
	"github.com/sourcegraph/jsonrpc2"
)

type Server struct {
	secret string
}

func NewServer(secret string) *Server {
	return &Server{secret: secret}
}

type ServeTCPParams struct {
	Handler   jsonrpc2.Handler
	Listener  net.Listener
	KeepAlive bool

	ShutdownChan chan struct{}
}

// ServeTCP serves one connection (or, with KeepAlive, as many as
// come in until ShutdownChan or ctx are done). Every connection must
// start with a Meta.Authenticate request carrying the server's secret.
func (s *Server) ServeTCP(ctx context.Context, params ServeTCPParams) error {
	if params.KeepAlive {
		return s.serveTCPKeepAlive(ctx, params)
	} else {
		return s.serveTCPClose(ctx, params)
	}
}

func (s *Server) serveTCPClose(ctx context.Context, params ServeTCPParams) error {
	go func() {
		<-ctx.Done()
		params.Listener.Close()
	}()

	tcpConn, err := params.Listener.Accept()
	if err != nil {
		return errors.WithStack(err)
	}

	return s.handleTCPConn(ctx, params, tcpConn)
}

func (s *Server) serveTCPKeepAlive(ctx context.Context, params ServeTCPParams) error {
	var wg sync.WaitGroup
	conns := make(chan net.Conn)
	acceptErrs := make(chan error, 1)
	go func() {
		for {
			tcpConn, err := params.Listener.Accept()
			if err != nil {
				acceptErrs <- err
				return
			}
			conns <- tcpConn
		}
	}()

	for {
		select {
		case tcpConn := <-conns:
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.handleTCPConn(ctx, params, tcpConn)
				if err != nil {
					comm.Warnf("While handling TCP connection: %+v", err)
				}
			}()
		case err := <-acceptErrs:
			wg.Wait()
			return errors.WithStack(err)
		case <-params.ShutdownChan:
			comm.Debugf("Closing TCP listener...")
			err := params.Listener.Close()
			if err != nil {
				comm.Warnf("While closing TCP listener: %+v", err)
			}

			comm.Debugf("Waiting for TCP connections to close...")
			wg.Wait()
			comm.Debugf("All TCP connections closed")

			return nil
		case <-ctx.Done():
			params.Listener.Close()
			return nil
		}
	}
}

func (s *Server) handleTCPConn(parentCtx context.Context, params ServeTCPParams, tcpConn net.Conn) error {
	gh := &gatedHandler{
		secret: s.secret,
		inner:  params.Handler,
	}

	return s.serve(parentCtx, tcpConn, gh)
}

// ServeStdio serves a single, already-trusted peer, typically
// the process that spawned us.
func (s *Server) ServeStdio(ctx context.Context, h jsonrpc2.Handler, rwc io.ReadWriteCloser) error {
	return s.serve(ctx, rwc, &asyncHandler{inner: h})
}

func (s *Server) serve(parentCtx context.Context, rwc io.ReadWriteCloser, h jsonrpc2.Handler) error {
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	stream := jsonrpc2.NewBufferedStream(rwc, LFObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, h)

	select {
	case <-conn.DisconnectNotify():
	case <-parentCtx.Done():
		conn.Close()
	}

	return nil
}

//

type asyncHandler struct {
	inner jsonrpc2.Handler
}

var _ jsonrpc2.Handler = (*asyncHandler)(nil)

func (h *asyncHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	dispatch(ctx, h.inner, conn, req)
}

// Requests are handled concurrently. Notifications are handled in order,
// on the read loop, so that a Store.Set is visible to any request sent
// after it.
func dispatch(ctx context.Context, h jsonrpc2.Handler, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if req.Notif {
		h.Handle(ctx, conn, req)
		return
	}
	go h.Handle(ctx, conn, req)
}

type gatedHandler struct {
	authenticated bool
	secret        string
	inner         jsonrpc2.Handler
}

var _ jsonrpc2.Handler = (*gatedHandler)(nil)

func (h *gatedHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if req.Method == "Meta.Authenticate" {
		err := func() error {
			var params MetaAuthenticateParams

			if req.Params == nil {
				return errors.New("Missing params")
			}

			err := json.Unmarshal(*req.Params, &params)
			if err != nil {
				return errors.WithStack(err)
			}

			if params.Secret != h.secret {
				return errors.Errorf("Invalid secret")
			}
			return nil
		}()

		if err != nil {
			err := conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
				Code:    jsonrpc2.CodeInvalidRequest,
				Message: fmt.Sprintf("%v", err),
			})
			if err != nil {
				comm.Warnf("Failed to reply: %#v", err)
			}
		} else {
			result := &MetaAuthenticateResult{OK: true}
			h.authenticated = true
			err := conn.Reply(ctx, req.ID, result)
			if err != nil {
				comm.Warnf("Failed to reply: %#v", err)
			}
		}
	} else {
		if h.authenticated {
			dispatch(ctx, h.inner, conn, req)
		} else {
			if req.Notif {
				comm.Debugf("Dropping %s notification from unauthenticated peer", req.Method)
				return
			}
			err := conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
				Code:    jsonrpc2.CodeInvalidRequest,
				Message: "Must call Meta.Authenticate with valid secret first",
			})
			if err != nil {
				comm.Warnf("Failed to reply with error: %#v", err)
			}
		}
	}
}

//

type LFObjectCodec struct{}

var separator = []byte("\n")

func (LFObjectCodec) WriteObject(stream io.Writer, obj interface{}) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}

	// single write, so concurrent writers can't interleave
	data = append(data, separator...)
	if _, err := stream.Write(data); err != nil {
		return err
	}
	return nil
}

func (LFObjectCodec) ReadObject(stream *bufio.Reader, v interface{}) error {
	var buf bytes.Buffer

scanLoop:
	for {
		b, err := stream.ReadByte()
		if err != nil {
			return err
		}

		switch b {
		case '\n':
			break scanLoop
		default:
			buf.WriteByte(b)
		}
	}

	return json.Unmarshal(buf.Bytes(), v)
}

type Conn interface {
	Notify(ctx context.Context, method string, params interface{}) error
	Call(ctx context.Context, method string, params interface{}, result interface{}) error
}

//

type JsonRPC2Conn struct {
	Conn *jsonrpc2.Conn
}

var _ Conn = (*JsonRPC2Conn)(nil)

func (jc *JsonRPC2Conn) Notify(ctx context.Context, method string, params interface{}) error {
	return jc.Conn.Notify(ctx, method, params)
}

func (jc *JsonRPC2Conn) Call(ctx context.Context, method string, params interface{}, result interface{}) error {
	return jc.Conn.Call(ctx, method, params, result)
}

func (jc *JsonRPC2Conn) Close() error {
	return jc.Conn.Close()
}
