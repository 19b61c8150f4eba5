package subscription

import (
	"errors"
	"fmt"
)

// ErrAlreadySubscribed is returned when a trial is requested by a user who
// already holds a record. Reported to the caller, never retried.
var ErrAlreadySubscribed = errors.New("user already has a subscription")

// ProvisioningError wraps a failed remote credential creation.
type ProvisioningError struct {
	Err error
}

func (e *ProvisioningError) Error() string { return fmt.Sprintf("provisioning failed: %v", e.Err) }
func (e *ProvisioningError) Unwrap() error { return e.Err }

// RenewalError wraps a failed remote expiry update. The local record is left
// untouched when this is returned.
type RenewalError struct {
	Err error
}

func (e *RenewalError) Error() string { return fmt.Sprintf("renewal failed: %v", e.Err) }
func (e *RenewalError) Unwrap() error { return e.Err }

// StoreError wraps a failed local store operation.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store operation failed: %v", e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }
