package sercom

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var (
	// ErrInUse indicates the unit is claimed by another owner.
	ErrInUse = errors.New("sercom in use")
	// ErrUnknownUnit indicates the unit is not managed by the pool.
	ErrUnknownUnit = errors.New("unknown sercom")
	// ErrNoMatch indicates no free unit routes the requested pins.
	ErrNoMatch = errors.New("no matching sercom")
	// ErrNotClaimed indicates a release by a non-owner.
	ErrNotClaimed = errors.New("sercom not claimed")
)

// ClaimError reports a claim on a unit held by someone else.
type ClaimError struct {
	ID    ID
	Owner string
}

// Error implements error.
func (e *ClaimError) Error() string {
	return fmt.Sprintf("%s claimed by %q", e.ID, e.Owner)
}

// Unwrap allows errors.Is(err, ErrInUse).
func (e *ClaimError) Unwrap() error {
	return ErrInUse
}

// Claim is a snapshot entry of the pool.
type Claim struct {
	ID    ID
	Owner string
}

// Pool is the claim table of physical units. A unit is held by at most
// one owner.
type Pool struct {
	lock   sync.Mutex
	units  map[ID]bool
	owners map[ID]string
}

// NewPool creates a pool managing the given units.
func NewPool(ids ...ID) *Pool {
	p := &Pool{units: make(map[ID]bool), owners: make(map[ID]string)}
	for _, id := range ids {
		p.units[id] = true
	}
	return p
}

// DefaultPool creates a pool with all units.
func DefaultPool() *Pool {
	ids := make([]ID, NumUnits)
	for n := range ids {
		ids[n] = ID(n)
	}
	return NewPool(ids...)
}

// Claim reserves unit id for owner.
func (p *Pool) Claim(id ID, owner string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.claim(id, owner)
}

func (p *Pool) claim(id ID, owner string) error {
	if !p.units[id] {
		return fmt.Errorf("%s: %w", id, ErrUnknownUnit)
	}
	if cur, ok := p.owners[id]; ok {
		return &ClaimError{ID: id, Owner: cur}
	}
	p.owners[id] = owner
	return nil
}

// ClaimPins reserves the first free unit routing the requested pins.
func (p *Pool) ClaimPins(req Request) (ID, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	var busy *ClaimError
	for _, id := range p.sortedUnits() {
		if !req.Routes(id) {
			continue
		}
		owner := req.Owner
		if owner == "" {
			owner = DefaultOwner(req.Protocol, id)
		}
		err := p.claim(id, owner)
		if err == nil {
			return id, nil
		}
		errors.As(err, &busy)
	}
	if busy != nil {
		return 0, fmt.Errorf("%s pins: %w", req.Protocol, busy)
	}
	return 0, fmt.Errorf("%s pins: %w", req.Protocol, ErrNoMatch)
}

// Release returns unit id to the pool.
func (p *Pool) Release(id ID, owner string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if cur, ok := p.owners[id]; !ok || cur != owner {
		return fmt.Errorf("%s: %w", id, ErrNotClaimed)
	}
	delete(p.owners, id)
	return nil
}

// Owner returns the owner of unit id.
func (p *Pool) Owner(id ID) (string, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	owner, ok := p.owners[id]
	return owner, ok
}

// Claims returns the current claims ordered by unit.
func (p *Pool) Claims() []Claim {
	p.lock.Lock()
	defer p.lock.Unlock()
	ids := maps.Keys(p.owners)
	slices.Sort(ids)
	claims := make([]Claim, len(ids))
	for n, id := range ids {
		claims[n] = Claim{ID: id, Owner: p.owners[id]}
	}
	return claims
}

// Units returns the managed units in order.
func (p *Pool) Units() []ID {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.sortedUnits()
}

func (p *Pool) sortedUnits() []ID {
	ids := maps.Keys(p.units)
	slices.Sort(ids)
	return ids
}
