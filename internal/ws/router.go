package ws

import (
	"context"
	"encoding/json"
	"log"

	"chathive-service/internal/models"
	"chathive-service/internal/observability"
)

// Fabric distributes marshaled thread events to other service instances.
type Fabric interface {
	Publish(ctx context.Context, threadID string, payload []byte) error
}

// Router is the broadcast fan-out: it delivers an event to every connection
// currently joined to a thread, locally and (when a fabric is configured)
// on every other instance. Callers publish only after the event's durable
// state is committed; a fabric failure is logged and never rolls anything
// back, realtime delivery is best-effort.
type Router struct {
	hub    *Hub
	fabric Fabric
}

// NewRouter builds a Router. fabric may be nil for single-instance
// deployments; the hub alone is then the whole registry.
func NewRouter(hub *Hub, fabric Fabric) *Router {
	return &Router{hub: hub, fabric: fabric}
}

// Publish fans the frame out to the thread's current subscribers.
func (r *Router) Publish(ctx context.Context, threadID string, frame models.ServerFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("marshal broadcast failed thread=%s: %v", threadID, err)
		return
	}

	observability.IncBroadcast(frame.Type)
	r.hub.BroadcastRaw(threadID, payload)

	if r.fabric != nil {
		if err := r.fabric.Publish(ctx, threadID, payload); err != nil {
			log.Printf("fabric publish failed thread=%s: %v", threadID, err)
		}
	}
}

// Deliver pushes a fabric-consumed remote event to local subscribers.
func (r *Router) Deliver(threadID string, payload []byte) {
	r.hub.BroadcastRaw(threadID, payload)
}
