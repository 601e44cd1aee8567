package address

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

type level[T any] struct {
	state   State
	options []T
	gen     uint64
}

// begin moves the level to Loading and returns the token the pending fetch
// must present when it completes.
func (l *level[T]) begin() uint64 {
	l.gen++
	l.state = StateLoading
	l.options = nil
	return l.gen
}

func (l *level[T]) reset() {
	l.gen++
	l.state = StateUnselected
	l.options = nil
}

func (l *level[T]) ready() bool {
	return l.state == StateLoaded || l.state == StateSelected
}

// LevelView is the externally visible state of one level.
type LevelView[T any] struct {
	State   State `json:"state"`
	Options []T   `json:"options"`
}

func (l *level[T]) view() LevelView[T] {
	return LevelView[T]{State: l.state, Options: slices.Clone(l.options)}
}

// Snapshot is a point-in-time copy of the cascade.
type Snapshot struct {
	Provinces LevelView[Province] `json:"provinces"`
	Districts LevelView[District] `json:"districts"`
	Wards     LevelView[Ward]     `json:"wards"`
	Services  LevelView[Service]  `json:"services"`
	Selection Selection           `json:"selection"`
	Version   uint64              `json:"version"`
}

// Cascade tracks the dependent address selection of one checkout.
//
// Selecting a value at one level resets every level below it and starts
// loading the next one. Each level carries a generation token; a fetch that
// completes after its level was reset is dropped with ErrSuperseded, so a
// slow response can never overwrite a newer selection. Fetches run without
// holding the lock.
type Cascade struct {
	dir Directory

	mu        sync.Mutex
	provinces level[Province]
	districts level[District]
	wards     level[Ward]
	services  level[Service]
	sel       Selection
	version   uint64
}

// NewCascade creates a cascade with every level unselected.
func NewCascade(dir Directory) *Cascade {
	return &Cascade{dir: dir}
}

// LoadProvinces fetches the top-level options and clears any selection.
func (c *Cascade) LoadProvinces(ctx context.Context) error {
	c.mu.Lock()
	gen := c.provinces.begin()
	c.resetBelowLocked(LevelProvince)
	c.sel.ProvinceID = 0
	c.version++
	c.mu.Unlock()

	opts, err := c.dir.Provinces(ctx)
	return apply(c, &c.provinces, LevelProvince, gen, opts, err)
}

// SelectProvince selects a province and loads its districts. Zero clears
// the selection.
func (c *Cascade) SelectProvince(ctx context.Context, id int) error {
	c.mu.Lock()
	if !c.provinces.ready() {
		c.mu.Unlock()
		return ErrLevelNotReady
	}
	if id != 0 && !slices.ContainsFunc(c.provinces.options, func(p Province) bool { return p.ID == id }) {
		c.mu.Unlock()
		return ErrUnknownOption
	}

	c.resetBelowLocked(LevelProvince)
	c.sel.ProvinceID = id
	c.version++
	if id == 0 {
		c.provinces.state = StateLoaded
		c.mu.Unlock()
		return nil
	}
	c.provinces.state = StateSelected
	gen := c.districts.begin()
	c.mu.Unlock()

	opts, err := c.dir.Districts(ctx, id)
	return apply(c, &c.districts, LevelDistrict, gen, opts, err)
}

// SelectDistrict selects a district and loads its wards and delivery
// services concurrently. Zero clears the selection.
func (c *Cascade) SelectDistrict(ctx context.Context, id int) error {
	c.mu.Lock()
	if !c.districts.ready() {
		c.mu.Unlock()
		return ErrLevelNotReady
	}
	if id != 0 && !slices.ContainsFunc(c.districts.options, func(d District) bool { return d.ID == id }) {
		c.mu.Unlock()
		return ErrUnknownOption
	}

	c.resetBelowLocked(LevelDistrict)
	c.sel.DistrictID = id
	c.version++
	if id == 0 {
		c.districts.state = StateLoaded
		c.mu.Unlock()
		return nil
	}
	c.districts.state = StateSelected
	wardGen := c.wards.begin()
	serviceGen := c.services.begin()
	c.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error {
		opts, err := c.dir.Wards(ctx, id)
		return apply(c, &c.wards, LevelWard, wardGen, opts, err)
	})
	g.Go(func() error {
		opts, err := c.dir.Services(ctx, id)
		return apply(c, &c.services, LevelService, serviceGen, opts, err)
	})
	return g.Wait()
}

// SelectWard selects a ward of the current district. Empty clears it.
func (c *Cascade) SelectWard(code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.wards.ready() {
		return ErrLevelNotReady
	}
	if code != "" && !slices.ContainsFunc(c.wards.options, func(w Ward) bool { return w.Code == code }) {
		return ErrUnknownOption
	}

	c.sel.WardCode = code
	c.wards.state = StateSelected
	if code == "" {
		c.wards.state = StateLoaded
	}
	c.version++
	return nil
}

// SelectService selects the delivery service type. Zero clears it.
func (c *Cascade) SelectService(serviceTypeID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.services.ready() {
		return ErrLevelNotReady
	}
	if serviceTypeID != 0 && !slices.ContainsFunc(c.services.options, func(s Service) bool {
		return s.ServiceTypeID == serviceTypeID
	}) {
		return ErrUnknownOption
	}

	c.sel.ServiceTypeID = serviceTypeID
	c.services.state = StateSelected
	if serviceTypeID == 0 {
		c.services.state = StateLoaded
	}
	c.version++
	return nil
}

// Restore replays a saved selection level by level, stopping at the first
// level that cannot be restored.
func (c *Cascade) Restore(ctx context.Context, sel Selection) error {
	if err := c.LoadProvinces(ctx); err != nil {
		return err
	}
	if sel.ProvinceID == 0 {
		return nil
	}
	if err := c.SelectProvince(ctx, sel.ProvinceID); err != nil {
		return err
	}
	if sel.DistrictID == 0 {
		return nil
	}
	if err := c.SelectDistrict(ctx, sel.DistrictID); err != nil {
		return err
	}
	if sel.WardCode != "" {
		if err := c.SelectWard(sel.WardCode); err != nil {
			return err
		}
	}
	if sel.ServiceTypeID != 0 {
		if err := c.SelectService(sel.ServiceTypeID); err != nil {
			return err
		}
	}
	return nil
}

// Selection returns the currently selected values.
func (c *Cascade) Selection() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel
}

// Version returns a counter that changes on every state transition.
func (c *Cascade) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Snapshot returns a copy of every level.
func (c *Cascade) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		Provinces: c.provinces.view(),
		Districts: c.districts.view(),
		Wards:     c.wards.view(),
		Services:  c.services.view(),
		Selection: c.sel,
		Version:   c.version,
	}
}

// Service returns the loaded service with the given type, if any.
func (c *Cascade) Service(serviceTypeID int) (Service, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := slices.IndexFunc(c.services.options, func(s Service) bool { return s.ServiceTypeID == serviceTypeID })
	if i < 0 {
		return Service{}, false
	}
	return c.services.options[i], true
}

// resetBelowLocked discards every level under l together with its selection.
func (c *Cascade) resetBelowLocked(l Level) {
	if l < LevelDistrict {
		c.districts.reset()
		c.sel.DistrictID = 0
	}
	if l < LevelWard {
		c.wards.reset()
		c.services.reset()
		c.sel.WardCode = ""
		c.sel.ServiceTypeID = 0
	}
}

// apply stores a fetch result if the level still expects it.
func apply[T any](c *Cascade, l *level[T], which Level, gen uint64, opts []T, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if l.gen != gen {
		return ErrSuperseded
	}
	c.version++
	if err != nil {
		l.state = StateUnselected
		l.options = nil
		return &FetchError{Level: which, Err: err}
	}
	l.state = StateLoaded
	l.options = opts
	return nil
}
