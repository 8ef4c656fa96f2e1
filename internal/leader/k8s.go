package leader

import (
	"context"
	"fmt"
	"time"

	coordinationv1 "k8s.io/api/coordination/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// RenewFraction is the fraction of the lease TTL used as the renewal
// interval, per spec.md's "1/5 of the lease TTL" (original_source's
// k8s_leader.rs used 1/3; SPEC_FULL.md documents the deviation).
const RenewFraction = 5

// MinRenewInterval is the floor on the renewal interval regardless of
// how small the configured TTL is.
const MinRenewInterval = 1 * time.Second

// DefaultLeaseTTL matches spec.md's stated default.
const DefaultLeaseTTL = 15 * time.Second

// K8sLeaseElector implements Elector against a coordination/v1 Lease,
// the Go analogue of the source's kube + kube_leader_election crates.
type K8sLeaseElector struct {
	client    kubernetes.Interface
	namespace string
	leaseName string
	holderID  string
	ttl       time.Duration
}

func NewK8sLeaseElector(client kubernetes.Interface, namespace, leaseName, holderID string, ttl time.Duration) *K8sLeaseElector {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &K8sLeaseElector{client: client, namespace: namespace, leaseName: leaseName, holderID: holderID, ttl: ttl}
}

// RenewInterval is the interval the leader coordinator should sleep
// between TryAcquireOrRenew calls.
func (e *K8sLeaseElector) RenewInterval() time.Duration {
	interval := e.ttl / RenewFraction
	if interval < MinRenewInterval {
		return MinRenewInterval
	}
	return interval
}

func (e *K8sLeaseElector) TryAcquireOrRenew(ctx context.Context) (bool, error) {
	leases := e.client.CoordinationV1().Leases(e.namespace)

	existing, err := leases.Get(ctx, e.leaseName, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		_, createErr := leases.Create(ctx, e.newLease(), metav1.CreateOptions{})
		if createErr != nil {
			if apierrors.IsAlreadyExists(createErr) {
				return false, nil
			}
			return false, fmt.Errorf("create lease: %w", createErr)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("get lease: %w", err)
	}

	now := time.Now()
	holder := ""
	if existing.Spec.HolderIdentity != nil {
		holder = *existing.Spec.HolderIdentity
	}
	expired := isExpired(existing, now)

	if holder != e.holderID && !expired {
		return false, nil
	}

	existing.Spec.HolderIdentity = &e.holderID
	existing.Spec.LeaseDurationSeconds = int32Ptr(int32(e.ttl.Seconds()))
	renewTime := metav1.NewMicroTime(now)
	existing.Spec.RenewTime = &renewTime
	if holder != e.holderID {
		acquire := metav1.NewMicroTime(now)
		existing.Spec.AcquireTime = &acquire
	}

	if _, err := leases.Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
		return false, fmt.Errorf("renew lease: %w", err)
	}
	return true, nil
}

func (e *K8sLeaseElector) StepDown(ctx context.Context) error {
	leases := e.client.CoordinationV1().Leases(e.namespace)
	existing, err := leases.Get(ctx, e.leaseName, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get lease for step-down: %w", err)
	}
	if existing.Spec.HolderIdentity == nil || *existing.Spec.HolderIdentity != e.holderID {
		return nil
	}
	existing.Spec.HolderIdentity = nil
	_, err = leases.Update(ctx, existing, metav1.UpdateOptions{})
	if err != nil {
		return fmt.Errorf("step down lease: %w", err)
	}
	return nil
}

func (e *K8sLeaseElector) newLease() *coordinationv1.Lease {
	now := metav1.NewMicroTime(time.Now())
	return &coordinationv1.Lease{
		ObjectMeta: metav1.ObjectMeta{Name: e.leaseName, Namespace: e.namespace},
		Spec: coordinationv1.LeaseSpec{
			HolderIdentity:       &e.holderID,
			LeaseDurationSeconds: int32Ptr(int32(e.ttl.Seconds())),
			AcquireTime:          &now,
			RenewTime:            &now,
		},
	}
}

func isExpired(lease *coordinationv1.Lease, now time.Time) bool {
	if lease.Spec.RenewTime == nil || lease.Spec.LeaseDurationSeconds == nil {
		return true
	}
	deadline := lease.Spec.RenewTime.Add(time.Duration(*lease.Spec.LeaseDurationSeconds) * time.Second)
	return now.After(deadline)
}

func int32Ptr(v int32) *int32 { return &v }

var _ Elector = (*K8sLeaseElector)(nil)
