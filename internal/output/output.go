package output

import (
	"context"

	"github.com/crimson-sun/pricelog/internal/model"
)

// Output defines the interface for snapshot destinations. Write is called
// once per finalized instance, in transcript order.
type Output interface {
	Write(ctx context.Context, snap model.Snapshot) error
	Close() error
}
