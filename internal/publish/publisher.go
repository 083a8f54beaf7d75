package publish

import (
	"context"
	"errors"
	"log"

	"github.com/sero-sim/scene-engine/internal/models"
)

// Publisher delivers context snapshots to the assistant-grounding consumer.
// Each snapshot is the complete current state; consumers never merge them.
type Publisher interface {
	Publish(ctx context.Context, snap models.ContextSnapshot) error
	Close() error
}

// Multi fans a snapshot out to several publishers. A failing publisher is
// logged and does not prevent delivery to the others.
type Multi []Publisher

// Publish delivers to every publisher and joins their errors
func (m Multi) Publish(ctx context.Context, snap models.ContextSnapshot) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, snap); err != nil {
			log.Printf("[Publisher] Warning: snapshot %d not delivered: %v", snap.Sequence, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher
func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
