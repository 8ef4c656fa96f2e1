// Package leader implements the leader coordinator (C11): it decides
// whether this process should run the leader-only tasks (block
// producer, batch producer, proof coordinator) based on either a
// trivial standalone rule or a Kubernetes Lease.
package leader

import "context"

// Elector is the mutual-exclusion capability the coordinator polls.
// TryAcquireOrRenew reports whether this process holds the lease after
// the call; StepDown releases it best-effort on shutdown.
type Elector interface {
	TryAcquireOrRenew(ctx context.Context) (acquired bool, err error)
	StepDown(ctx context.Context) error
}

// StandaloneElector always reports itself as leader; used whenever no
// cluster-coordination environment is detected.
type StandaloneElector struct{}

func (StandaloneElector) TryAcquireOrRenew(ctx context.Context) (bool, error) { return true, nil }
func (StandaloneElector) StepDown(ctx context.Context) error                 { return nil }

var _ Elector = StandaloneElector{}
