package run

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"holdtalk/internal/control"
	"holdtalk/internal/hotkey"
)

func (s *Server) controlLoop(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Errorf("control accept: %v", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warnf("control connection close: %v", err)
		}
	}()
	// A key stream outlives the daemon only until shutdown.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sc := bufio.NewScanner(conn)
	if !sc.Scan() {
		return
	}
	var req control.Request
	if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
		_ = json.NewEncoder(conn).Encode(control.SimpleResponse{OK: false, Message: fmt.Sprintf("bad request: %v", err)})
		return
	}
	s.logger.Debugf("control op %q", req.Op)
	if req.Op == control.OpKeyStream {
		s.streamKeys(conn, sc)
		return
	}
	_ = json.NewEncoder(conn).Encode(s.dispatch(ctx, req))
}

// dispatch answers every op except the key stream.
func (s *Server) dispatch(ctx context.Context, req control.Request) any {
	switch req.Op {
	case control.OpStatus:
		return s.status()
	case control.OpHealth:
		return control.SimpleResponse{OK: true, Message: "ok"}
	case control.OpLoadModel:
		if req.Model == "" {
			return fail(errors.New("model is required"))
		}
		res, err := s.orch.LoadModel(req.Model)
		if err != nil {
			return fail(err)
		}
		if !req.Wait {
			return control.SimpleResponse{OK: true, Message: fmt.Sprintf("loading %s", req.Model)}
		}
		select {
		case err := <-res:
			if err != nil {
				return fail(err)
			}
			return control.SimpleResponse{OK: true, Message: fmt.Sprintf("%s loaded", req.Model)}
		case <-ctx.Done():
			return fail(ctx.Err())
		}
	case control.OpDeleteModel:
		if req.Model == "" {
			return fail(errors.New("model is required"))
		}
		if err := s.orch.DeleteModel(ctx, req.Model); err != nil {
			return fail(err)
		}
		return control.SimpleResponse{OK: true, Message: fmt.Sprintf("%s deleted", req.Model)}
	case control.OpHotkey:
		return control.SimpleResponse{OK: true, Message: s.detector.Binding().String()}
	case control.OpSetHotkey:
		b, err := hotkey.ParseBinding(req.Binding)
		if err != nil {
			return fail(err)
		}
		if b.Empty() {
			return fail(errors.New("binding needs at least one key"))
		}
		if err := s.detector.SetBinding(b); err != nil {
			return fail(err)
		}
		s.store.Save(b)
		return control.SimpleResponse{OK: true, Message: b.String()}
	case control.OpEditHotkey:
		if err := s.orch.SetEditingHotkey(req.Editing); err != nil {
			return fail(err)
		}
		state := "off"
		if req.Editing {
			state = "on"
		}
		return control.SimpleResponse{OK: true, Message: "hotkey editing " + state}
	default:
		return control.SimpleResponse{OK: false, Message: fmt.Sprintf("unknown op %q", req.Op)}
	}
}

func fail(err error) control.SimpleResponse {
	return control.SimpleResponse{OK: false, Message: err.Error()}
}

func (s *Server) streamKeys(conn net.Conn, sc *bufio.Scanner) {
	if err := json.NewEncoder(conn).Encode(control.SimpleResponse{OK: true, Message: "streaming"}); err != nil {
		return
	}
	s.feeders.Add(1)
	s.metrics.feederConnected()
	s.logger.Info("key feeder connected")
	defer func() {
		s.feeders.Add(-1)
		s.metrics.feederDisconnected()
		s.logger.Info("key feeder disconnected")
	}()
	newKeyFeed(s.keys).run(sc, func(err error) {
		s.logger.Warnf("key stream: %v", err)
	})
}
