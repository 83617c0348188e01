package ports

import (
	"context"
	"time"
)

// Driver picked by the geospatial assignment service for an order.
type DriverAssignment struct {
	OrderID    string    `json:"orderId"`
	DriverID   string    `json:"driverId"`
	DriverName string    `json:"driverName,omitempty"`
	ETA        time.Time `json:"eta,omitempty"`
}

// Port: the external driver-assignment service, keyed by the slot's generated order.
type DriverAssigner interface {
	RequestAssignment(ctx context.Context, orderID string) (*DriverAssignment, error)
}
