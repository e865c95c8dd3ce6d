// Package api exposes the station to its terminals: a WebSocket stream for
// scan events and commands, plus a small REST surface for status queries
// and reservation fulfillment.
package api

import (
	"context"
	"time"

	"github.com/openmensa/rfid-station/internal/core"
	"github.com/openmensa/rfid-station/internal/logging"
	"github.com/openmensa/rfid-station/internal/service"
)

// Server bundles the dependencies the HTTP and WebSocket handlers share.
type Server struct {
	supervisor   *core.Supervisor
	history      *core.History
	reservations *service.ReservationService
	log          *logging.Logger
	hub          *WSHub
}

// NewServer wires the API surface. The returned server's hub implements the
// scan pipeline's Publisher; build the supervisor against it and attach the
// supervisor with SetSupervisor before serving.
func NewServer(history *core.History, reservations *service.ReservationService, log *logging.Logger) *Server {
	s := &Server{
		history:      history,
		reservations: reservations,
		log:          log,
	}
	s.hub = NewWSHub(s, log)
	return s
}

// SetSupervisor attaches the reader supervisor. Must be called before the
// mux starts serving.
func (s *Server) SetSupervisor(sup *core.Supervisor) { s.supervisor = sup }

// Hub returns the WebSocket hub, which doubles as the event publisher.
func (s *Server) Hub() *WSHub { return s.hub }

// opCtx bounds one API-triggered store operation.
func (s *Server) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
