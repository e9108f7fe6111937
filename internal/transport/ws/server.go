// Package ws exposes the simulation over a websocket: clients HELLO in,
// get a WELCOME with maze parameters, then receive one OBS per perception
// pass for their agent (or every agent, for observer sessions) and may
// send ACT mutations back.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"mazecraft.ai/internal/protocol"
	"mazecraft.ai/internal/sim/engine"
)

type Server struct {
	engine *engine.Engine
	log    *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(e *engine.Engine, logger *log.Logger) *Server {
	return &Server{
		engine: e,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		agentID, observer, ok := s.handshake(ctx, conn)
		if !ok {
			return
		}
		if !observer {
			defer func() {
				leaveCtx, leaveCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer leaveCancel()
				_ = s.engine.RequestLeave(leaveCtx, agentID)
			}()
		}

		obsCh, unsub, err := s.engine.Subscribe(ctx)
		if err != nil {
			return
		}
		defer unsub()

		// Writer goroutine: the only writer after the handshake. Reader
		// replies arrive over out; writing from two goroutines would race
		// on the conn.
		out := make(chan any, 16)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case obs, open := <-obsCh:
					if !open {
						return
					}
					if !observer && obs.AgentID != agentID {
						continue
					}
					if err := writeJSON(conn, obs); err != nil {
						cancel()
						return
					}
				case v := <-out:
					if err := writeJSON(conn, v); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop: ACT messages only; observers may not act.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeAct {
				continue
			}
			if observer {
				reply := protocol.ErrorMsg{
					Type: protocol.TypeError, Code: protocol.ErrBadRequest,
					Message: "observer sessions cannot act",
				}
				select {
				case out <- reply:
				case <-ctx.Done():
					return
				}
				continue
			}
			var act protocol.ActMsg
			if err := json.Unmarshal(msg, &act); err != nil {
				continue
			}
			if act.ProtocolVersion != protocol.Version {
				continue
			}
			act.AgentID = agentID
			if err := s.engine.RequestAct(ctx, act); err != nil {
				return
			}
		}
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (agentID string, observer, ok bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", false, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", false, false
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", false, false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", false, false
	}

	if hello.Observer {
		welcome := protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
		}
		if err := writeJSON(conn, welcome); err != nil {
			return "", false, false
		}
		return "", true, true
	}

	if hello.AgentName == "" {
		hello.AgentName = "agent"
	}
	resp, err := s.engine.RequestJoin(ctx, hello.AgentName, nil)
	if err != nil {
		_ = writeJSON(conn, protocol.ErrorMsg{
			Type: protocol.TypeError, Code: protocol.ErrInternal, Message: err.Error(),
		})
		return "", false, false
	}
	if err := writeJSON(conn, resp.Welcome); err != nil {
		return "", false, false
	}
	if s.log != nil {
		s.log.Printf("ws: %s joined as %s", hello.AgentName, resp.AgentID)
	}
	return resp.AgentID, false, true
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
