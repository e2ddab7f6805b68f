package domain

import "errors"

// ResourceType is a consumable quota bucket.
type ResourceType string

const (
	ResourceArticles ResourceType = "articles"
	ResourceIdeas    ResourceType = "ideas"
	ResourceSites    ResourceType = "sites"
)

// CreditBalance tracks quota usage for one user and resource type.
type CreditBalance struct {
	UserID   string
	Resource ResourceType
	Quota    int
	Consumed int
}

// Available never goes below zero.
func (b CreditBalance) Available() int {
	if left := b.Quota - b.Consumed; left > 0 {
		return left
	}
	return 0
}

// CreditCheck is the ledger answer to an availability query.
type CreditCheck struct {
	HasCredits     bool
	CurrentCredits int
}

// ErrNotCharged marks a collaborator failure that happened before any credit
// was taken, so there is nothing to refund.
var ErrNotCharged = errors.New("no credit charged")

// NotCharged wraps err so that errors.Is(err, ErrNotCharged) holds while the
// original classification stays reachable.
func NotCharged(err error) error {
	if err == nil {
		return nil
	}
	return &notChargedError{err: err}
}

type notChargedError struct {
	err error
}

func (e *notChargedError) Error() string {
	return e.err.Error()
}

func (e *notChargedError) Unwrap() []error {
	return []error{e.err, ErrNotCharged}
}
