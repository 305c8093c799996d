package app

import (
	"context"
	"time"

	"github.com/openpass/inventory/internal/domain"
)

// fakeUnitLedger implements UnitLedger in memory with honest token-guard
// semantics so service tests exercise the same skip-on-mismatch behavior
// the real adapters have.
type fakeUnitLedger struct {
	units []domain.InventoryUnit

	// afterFind runs after a successful read phase, letting a test mutate
	// state between a service's read and write the way a concurrent
	// process would.
	afterFind func(f *fakeUnitLedger)

	txErr            error
	insertErr        error
	failAfterInserts int // fail InsertUnits once this many calls succeeded; <0 disables
	insertCalls      int
	findCalls        int
}

func newFakeUnitLedger(units []domain.InventoryUnit) *fakeUnitLedger {
	return &fakeUnitLedger{
		units:            append([]domain.InventoryUnit{}, units...),
		failAfterInserts: -1,
	}
}

func (f *fakeUnitLedger) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if f.txErr != nil {
		return f.txErr
	}
	return fn(ctx)
}

func (f *fakeUnitLedger) FindReservable(_ context.Context, eventID string, limit int, now time.Time) ([]domain.InventoryUnit, error) {
	f.findCalls++
	var out []domain.InventoryUnit
	for _, u := range f.units {
		if len(out) == limit {
			break
		}
		if u.EventID != eventID {
			continue
		}
		free := u.Status == domain.UnitStatusAvailable
		lapsed := u.Status == domain.UnitStatusReserved && u.ReservedUntil.Before(now)
		if free || lapsed {
			out = append(out, u)
		}
	}
	if f.afterFind != nil {
		f.afterFind(f)
	}
	return out, nil
}

func (f *fakeUnitLedger) FindLapsed(_ context.Context, limit int, now time.Time) ([]domain.InventoryUnit, error) {
	f.findCalls++
	var out []domain.InventoryUnit
	for _, u := range f.units {
		if len(out) == limit {
			break
		}
		if u.Status == domain.UnitStatusReserved && u.ReservedUntil.Before(now) {
			out = append(out, u)
		}
	}
	if f.afterFind != nil {
		f.afterFind(f)
	}
	return out, nil
}

func (f *fakeUnitLedger) ApplyGuarded(_ context.Context, updates []domain.UnitUpdate) (int, error) {
	matched := 0
	for _, upd := range updates {
		for i := range f.units {
			if f.units[i].ID != upd.ID || f.units[i].ConcurrencyToken != upd.Token {
				continue
			}
			f.units[i].Status = upd.Status
			f.units[i].ReservedUntil = upd.ReservedUntil
			f.units[i].ConcurrencyToken = upd.NewToken
			matched++
			break
		}
	}
	return matched, nil
}

func (f *fakeUnitLedger) InsertUnits(_ context.Context, units []domain.InventoryUnit) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	if f.failAfterInserts >= 0 && f.insertCalls >= f.failAfterInserts {
		return context.DeadlineExceeded
	}
	f.insertCalls++
	f.units = append(f.units, units...)
	return nil
}

func (f *fakeUnitLedger) CountByGeneration(_ context.Context, generationRequestID string) (int, error) {
	count := 0
	for _, u := range f.units {
		if u.GenerationRequestID == generationRequestID {
			count++
		}
	}
	return count, nil
}

func (f *fakeUnitLedger) unit(id string) domain.InventoryUnit {
	for _, u := range f.units {
		if u.ID == id {
			return u
		}
	}
	return domain.InventoryUnit{}
}

func (f *fakeUnitLedger) rotateToken(id, token string) {
	for i := range f.units {
		if f.units[i].ID == id {
			f.units[i].ConcurrencyToken = token
		}
	}
}

func (f *fakeUnitLedger) countByStatus(status domain.UnitStatus) int {
	n := 0
	for _, u := range f.units {
		if u.Status == status {
			n++
		}
	}
	return n
}

type fakeGenerationLedger struct {
	requests map[string]domain.GenerationRequest
}

func newFakeGenerationLedger(reqs ...domain.GenerationRequest) *fakeGenerationLedger {
	m := make(map[string]domain.GenerationRequest)
	for _, r := range reqs {
		m[r.ID] = r
	}
	return &fakeGenerationLedger{requests: m}
}

func (f *fakeGenerationLedger) CreateRequest(_ context.Context, req domain.GenerationRequest) error {
	f.requests[req.ID] = req
	return nil
}

func (f *fakeGenerationLedger) GetRequest(_ context.Context, id string) (domain.GenerationRequest, error) {
	req, ok := f.requests[id]
	if !ok {
		return domain.GenerationRequest{}, domain.ErrGenerationNotFound
	}
	return req, nil
}

func (f *fakeGenerationLedger) MarkCompleted(_ context.Context, id string) error {
	req, ok := f.requests[id]
	if !ok {
		return domain.ErrGenerationNotFound
	}
	req.Status = domain.GenerationStatusCompleted
	f.requests[id] = req
	return nil
}

type fakeOrderLedger struct {
	orders []domain.Order
}

func (f *fakeOrderLedger) FindUnitIDsWithOrders(_ context.Context, unitIDs []string) (map[string]struct{}, error) {
	wanted := make(map[string]struct{}, len(unitIDs))
	for _, id := range unitIDs {
		wanted[id] = struct{}{}
	}
	out := make(map[string]struct{})
	for _, order := range f.orders {
		for _, item := range order.Items {
			if _, ok := wanted[item.UnitID]; ok {
				out[item.UnitID] = struct{}{}
			}
		}
	}
	return out, nil
}
