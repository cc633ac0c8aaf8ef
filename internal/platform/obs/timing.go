package obs

import (
	"context"
	"log"
	"time"
)

type ctxKey string

const (
	RequestIDKey ctxKey = "req_id"
	VehicleIDKey ctxKey = "vehicle_id"
)

// WithVehicleID tags ctx so that timings logged below it carry the vehicle id.
func WithVehicleID(ctx context.Context, vehicleID string) context.Context {
	return context.WithValue(ctx, VehicleIDKey, vehicleID)
}

func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	reqID, _ := ctx.Value(RequestIDKey).(string)
	vehicleID, _ := ctx.Value(VehicleIDKey).(string)

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			log.Printf("req_id=%s vehicle_id=%s op=%s dur=%dms err=%v", reqID, vehicleID, name, dur.Milliseconds(), *errp)
			return
		}
		log.Printf("req_id=%s vehicle_id=%s op=%s dur=%dms", reqID, vehicleID, name, dur.Milliseconds())
	}
}
