package types

import (
	"context"
)

// Closer is implemented by everything that holds accelerator resources.
type Closer interface {
	Close(context.Context) error
}
