package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/iwvelando/emi-calculator/pkg/emi"
	"go.uber.org/zap"
)

const (
	liveIdleTimeout  = 5 * time.Minute
	liveWriteTimeout = 10 * time.Second
)

type liveMessage struct {
	Result *calculationResponse `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
	Fields []fieldError         `json:"fields,omitempty"`
}

// handleLive recomputes the installment for every input message received on
// the websocket. Bad input gets an error message; the connection stays open.
func (h *handler) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Info("websocket upgrade failed",
			zap.String("op", "server.handleLive"),
			zap.Error(err),
		)
		return
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			h.logger.Debug("failed to close websocket",
				zap.String("op", "server.handleLive"),
				zap.Error(closeErr),
			)
		}
	}()
	conn.SetReadLimit(h.maxBodySize)

	h.logger.Debug("live session opened",
		zap.String("op", "server.handleLive"),
		zap.String("remote", r.RemoteAddr),
	)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(liveIdleTimeout)); err != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Info("live session ended unexpectedly",
					zap.String("op", "server.handleLive"),
					zap.Error(err),
				)
			}
			return
		}

		reply := h.liveReply(r, data)
		if err := conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout)); err != nil {
			return
		}
		if err := conn.WriteJSON(reply); err != nil {
			h.logger.Info("failed to write live result",
				zap.String("op", "server.handleLive"),
				zap.Error(err),
			)
			return
		}
	}
}

func (h *handler) liveReply(r *http.Request, data []byte) liveMessage {
	var in emi.LoanInput
	if err := json.Unmarshal(data, &in); err != nil {
		return liveMessage{Error: "failed to decode input: " + err.Error()}
	}

	calc, err := h.calc.Calculate(r.Context(), in)
	if err != nil {
		_, resp := h.calculationError(err)
		return liveMessage{Error: resp.Error, Fields: resp.Fields}
	}
	resp := newCalculationResponse(calc)
	return liveMessage{Result: &resp}
}
