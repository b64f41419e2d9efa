package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/xela07ax/strictgate/internal/integrity"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Происхождение проверяет внешний периметр (auth middleware).
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsFrame — кадр протокола стриминга: chunk / done / error.
type wsFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleStream: клиент шлет один ProcessingRequest, в ответ летят кадры
// контента до done либо error. Failover на потоке не выполняется.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	_, payload, err := conn.ReadMessage()
	if err != nil {
		return
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		conn.WriteJSON(wsFrame{Type: "error", Error: "request is not a JSON object: " + err.Error()})
		return
	}

	req, err := integrity.ParseProcessingRequest(raw)
	if err != nil {
		conn.WriteJSON(wsFrame{Type: "error", Error: strings.Join(validationMessages(err), "; ")})
		return
	}

	for chunk := range s.manager.StreamProcess(r.Context(), req) {
		switch {
		case chunk.Err != nil:
			conn.WriteJSON(wsFrame{Type: "error", Error: chunk.Err.Error()})
			return
		case chunk.Done:
			conn.WriteJSON(wsFrame{Type: "done"})
			return
		default:
			if err := conn.WriteJSON(wsFrame{Type: "chunk", Content: chunk.Content}); err != nil {
				s.logger.Debug("websocket client gone mid-stream", zap.Error(err))
				return
			}
		}
	}

	// Канал закрылся без done-кадра — штатное завершение.
	conn.WriteJSON(wsFrame{Type: "done"})
}
