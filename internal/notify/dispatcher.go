// Package notify carries post-commit booking events to whatever delivers
// them. Delivery itself (email, SMS) is an external collaborator; the
// default dispatcher only logs.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/clinicbase/scheduling-engine/internal/scheduling"
)

type LogDispatcher struct {
	log *zap.Logger
}

func NewLogDispatcher(log *zap.Logger) *LogDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) OnBookingCreated(_ context.Context, b scheduling.Booking) {
	d.log.Info("notification: booking created",
		zap.String("booking_id", b.ID.String()),
		zap.String("patient_id", b.PatientID.String()),
		zap.String("kind", string(b.Kind)),
		zap.Time("start_at", b.StartAt),
	)
}

func (d *LogDispatcher) OnBookingCancelled(_ context.Context, b scheduling.Booking) {
	d.log.Info("notification: booking cancelled",
		zap.String("booking_id", b.ID.String()),
		zap.String("patient_id", b.PatientID.String()),
	)
}
