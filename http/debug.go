package http

import (
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/spatial-lookup/lookup"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// Box is a JSON-friendly axis-aligned box.
type Box struct {
	Min [3]float32 `json:"min"`
	Max [3]float32 `json:"max"`
}

// LookupSnapshot is the diagnostic view of a lookup state: the active
// algorithm, the tracked entity count and the algorithm's internal bounding
// volumes for external rendering.
type LookupSnapshot struct {
	Algorithm       string `json:"algorithm"`
	TrackedEntities int    `json:"tracked_entities"`
	Boxes           []Box  `json:"boxes,omitempty"`
}

// NewLookupSnapshot captures a LookupSnapshot from the given state. The
// caller is responsible for synchronizing with the state's writer.
func NewLookupSnapshot(s *lookup.State) LookupSnapshot {
	snap := LookupSnapshot{
		Algorithm:       s.AlgorithmName(),
		TrackedEntities: s.Len(),
	}

	for _, b := range s.DebugBoxes() {
		snap.Boxes = append(snap.Boxes, Box{
			Min: [3]float32{b.Min.X(), b.Min.Y(), b.Min.Z()},
			Max: [3]float32{b.Max.X(), b.Max.Y(), b.Max.Z()},
		})
	}
	return snap
}

// HandleDebugLookup serves a one-shot JSON snapshot of the lookup state.
// snapshot is called per request and owns any synchronization.
func HandleDebugLookup(snapshot func() LookupSnapshot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := json.Marshal(snapshot())
		if err != nil {
			logs.Warn(errors.New("encoding lookup snapshot failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}
}

// HandleDebugLookupStream streams lookup snapshots to a WebSocket client at
// the given interval, until the client goes away. This feeds external
// renderers that draw the index's tree volumes live.
func HandleDebugLookupStream(snapshot func() LookupSnapshot, interval time.Duration) websocket.Handler {
	return func(conn *websocket.Conn) {
		defer conn.Close()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		enc := json.NewEncoder(conn)

		for range ticker.C {
			if err := enc.Encode(snapshot()); err != nil {
				logs.WithTag("remote_addr", conn.Request().RemoteAddr).
					Debug("stopping lookup snapshot stream")
				return
			}
		}
	}
}
