// Package lease provides expiring per-campaign locks so that overlapping
// passes never process the same campaign at once.
package lease

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Lease is a held claim on one campaign.
type Lease struct {
	CampaignID int
	Token      string
	ExpiresAt  time.Time
}

// ErrLost is returned by Extend when the lease expired or was taken over.
var ErrLost = errors.New("campaign lease lost")

// Locker acquires, extends and releases campaign leases. Acquire reports
// false without error when another holder owns an unexpired lease.
type Locker interface {
	Acquire(ctx context.Context, campaignID int, ttl time.Duration) (Lease, bool, error)
	// Extend pushes the expiry of a still-held lease to ttl from now.
	Extend(ctx context.Context, l Lease, ttl time.Duration) (Lease, error)
	Release(ctx context.Context, l Lease) error
}

func key(campaignID int) string {
	return fmt.Sprintf("autoinvite:lease:campaign:%d", campaignID)
}

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[int]Lease
	Now    func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: map[int]Lease{}, Now: time.Now}
}

func (m *MemoryLocker) Acquire(ctx context.Context, campaignID int, ttl time.Duration) (Lease, bool, error) {
	if err := ctx.Err(); err != nil {
		return Lease{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	if held, ok := m.leases[campaignID]; ok && now.Before(held.ExpiresAt) {
		return Lease{}, false, nil
	}
	l := Lease{CampaignID: campaignID, Token: uuid.NewString(), ExpiresAt: now.Add(ttl)}
	m.leases[campaignID] = l
	return l, true, nil
}

func (m *MemoryLocker) Extend(ctx context.Context, l Lease, ttl time.Duration) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return Lease{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	held, ok := m.leases[l.CampaignID]
	if !ok || held.Token != l.Token || !now.Before(held.ExpiresAt) {
		return Lease{}, ErrLost
	}
	held.ExpiresAt = now.Add(ttl)
	m.leases[l.CampaignID] = held
	return held, nil
}

// Release is a no-op when the lease has already been taken over.
func (m *MemoryLocker) Release(ctx context.Context, l Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if held, ok := m.leases[l.CampaignID]; ok && held.Token == l.Token {
		delete(m.leases, l.CampaignID)
	}
	return nil
}

var _ Locker = (*MemoryLocker)(nil)
