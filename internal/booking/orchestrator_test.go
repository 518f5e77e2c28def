package booking

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rezerv/internal/api"
	"rezerv/internal/events"
	"rezerv/internal/model"
)

// fakeBoundary is an in-memory booking store implementing Boundary.
type fakeBoundary struct {
	mu        sync.Mutex
	openHours map[model.Weekday][]string
	bookings  []model.Booking
	services  []model.Service
	nextID    int

	failCreate error
	failDelete error

	// When set, CreateBooking signals entered and waits for release.
	entered chan struct{}
	release chan struct{}

	calls map[string]int
}

func newFakeBoundary() *fakeBoundary {
	return &fakeBoundary{
		openHours: map[model.Weekday][]string{},
		calls:     make(map[string]int),
	}
}

func (f *fakeBoundary) count(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeBoundary) CompanyOpenHours(_ context.Context, _ string) (map[model.Weekday][]string, error) {
	f.count("openHours")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openHours, nil
}

func (f *fakeBoundary) CompanyBookings(_ context.Context, _ string) ([]model.Booking, error) {
	f.count("allBookings")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Booking(nil), f.bookings...), nil
}

func (f *fakeBoundary) CompanyBookingsByDate(_ context.Context, _, date string) ([]model.Booking, error) {
	f.count("bookingsByDate")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Booking
	for _, b := range f.bookings {
		if b.SelectedDate == date {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBoundary) UserBookings(_ context.Context, _, userID, _ string) ([]model.Booking, error) {
	f.count("userBookings")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Booking
	for _, b := range f.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBoundary) ServicesByCompany(_ context.Context, _ string) ([]model.Service, error) {
	f.count("services")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Service(nil), f.services...), nil
}

func (f *fakeBoundary) CreateBooking(_ context.Context, companyID, userID string, req api.CreateBookingRequest) (*model.Booking, error) {
	f.count("create")
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	b := model.Booking{
		ID:            fmt.Sprintf("bk-%d", f.nextID),
		CompanyID:     companyID,
		UserID:        userID,
		ServiceID:     req.ServiceID,
		SelectedDate:  req.SelectedDate,
		SelectedTimes: []string{req.SelectedTime},
		Status:        model.StatusPending,
	}
	f.bookings = append(f.bookings, b)
	return &b, nil
}

func (f *fakeBoundary) DeleteBooking(_ context.Context, bookingID string) error {
	f.count("delete")
	if f.failDelete != nil {
		return f.failDelete
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.bookings[:0]
	for _, b := range f.bookings {
		if b.ID != bookingID {
			out = append(out, b)
		}
	}
	f.bookings = out
	return nil
}

type fakeRedirect struct {
	mu   sync.Mutex
	path string
}

func (f *fakeRedirect) SetRedirectPath(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.path = path
	return nil
}

func newTestOrchestrator(f *fakeBoundary, userID string) (*Orchestrator, *fakeRedirect, *events.Bus) {
	redirect := &fakeRedirect{}
	bus := events.NewBus()
	o := NewOrchestrator(f, redirect, bus, zerolog.Nop())
	o.SetUser(userID)
	o.SetCompany("c1", "/reserve/acme")
	o.SetDate("2024-03-10") // a Sunday
	return o, redirect, bus
}

func TestUnauthenticatedSelectionGate(t *testing.T) {
	f := newFakeBoundary()
	o, redirect, bus := newTestOrchestrator(f, "")

	var gotAuthEvent bool
	bus.Subscribe(events.TypeAuthRequired, func(events.Event) { gotAuthEvent = true })

	err := o.SelectService(context.Background(), "s1")
	require.ErrorIs(t, err, ErrAuthRequired)

	assert.Empty(t, o.SelectedService(), "selection must not be mutated")
	_, ok := o.Pending("s1")
	assert.False(t, ok, "no pending selection may appear")
	assert.Equal(t, StateAuthRequired, o.State())
	assert.Equal(t, "/reserve/acme", redirect.path, "destination must be remembered")
	assert.True(t, gotAuthEvent)
}

func TestSelectTimeRequiresService(t *testing.T) {
	f := newFakeBoundary()
	o, _, bus := newTestOrchestrator(f, "u1")

	var warned bool
	bus.Subscribe(events.TypeWarning, func(events.Event) { warned = true })

	err := o.SelectTime("2024-03-10", "10:00")
	require.ErrorIs(t, err, ErrNoServiceSelected)
	assert.True(t, warned)
	assert.Equal(t, StateIdle, o.State(), "no state change on the warning")
}

func TestSelectTimeOverwritesPending(t *testing.T) {
	f := newFakeBoundary()
	o, _, _ := newTestOrchestrator(f, "u1")
	ctx := context.Background()

	require.NoError(t, o.SelectService(ctx, "s1"))
	require.NoError(t, o.SelectTime("2024-03-10", "10:00"))
	require.NoError(t, o.SelectTime("2024-03-10", "11:00"))

	sel, ok := o.Pending("s1")
	require.True(t, ok)
	assert.Equal(t, "11:00", sel.Time, "re-picking overwrites, never appends")
	assert.Equal(t, "2024-03-10", sel.Date)
}

func TestConfirmSaveRoundTrip(t *testing.T) {
	f := newFakeBoundary()
	f.openHours[model.Sunday] = []string{"10:00", "11:00"}
	o, _, _ := newTestOrchestrator(f, "u1")
	ctx := context.Background()

	o.Refresh(ctx)
	require.NoError(t, o.SelectService(ctx, "s1"))
	require.NoError(t, o.SelectTime("2024-03-10", "11:00"))

	st := o.TimeStatus("11:00")
	assert.True(t, st.IsActive, "pending pick is active before save")

	created, err := o.ConfirmSave(ctx)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, model.StatusPending, created.Status)
	assert.Equal(t, StateIdle, o.State())

	st = o.TimeStatus("11:00")
	require.NotNil(t, st.UserBooking, "refetched booking marks the slot as the user's")
	assert.Equal(t, created.ID, st.UserBooking.ID)
	assert.False(t, st.IsActive, "pending selection is cleared after persistence")
}

func TestConfirmSaveFailureKeepsPending(t *testing.T) {
	f := newFakeBoundary()
	f.openHours[model.Sunday] = []string{"11:00"}
	f.failCreate = fmt.Errorf("boom")
	o, _, bus := newTestOrchestrator(f, "u1")
	ctx := context.Background()

	var failed bool
	bus.Subscribe(events.TypeBookingFailed, func(events.Event) { failed = true })

	o.Refresh(ctx)
	require.NoError(t, o.SelectService(ctx, "s1"))
	require.NoError(t, o.SelectTime("2024-03-10", "11:00"))

	_, err := o.ConfirmSave(ctx)
	require.Error(t, err)
	assert.True(t, failed, "failure must be surfaced")
	assert.Equal(t, StateSlotPicking, o.State())

	sel, ok := o.Pending("s1")
	require.True(t, ok, "pending selection survives a failed create")
	assert.Equal(t, "11:00", sel.Time)
	assert.True(t, o.TimeStatus("11:00").IsActive, "slot stays active for retry")
}

func TestConfirmSaveWithoutSlot(t *testing.T) {
	f := newFakeBoundary()
	o, _, _ := newTestOrchestrator(f, "u1")
	ctx := context.Background()

	_, err := o.ConfirmSave(ctx)
	require.ErrorIs(t, err, ErrNoServiceSelected)

	require.NoError(t, o.SelectService(ctx, "s1"))
	_, err = o.ConfirmSave(ctx)
	require.ErrorIs(t, err, ErrNoSlotSelected)
}

func TestOneRequestInFlight(t *testing.T) {
	f := newFakeBoundary()
	f.entered = make(chan struct{})
	f.release = make(chan struct{})
	o, _, _ := newTestOrchestrator(f, "u1")
	ctx := context.Background()

	require.NoError(t, o.SelectService(ctx, "s1"))
	require.NoError(t, o.SelectTime("2024-03-10", "11:00"))

	done := make(chan error, 1)
	go func() {
		_, err := o.ConfirmSave(ctx)
		done <- err
	}()
	<-f.entered // first request is now in flight

	_, err := o.ConfirmSave(ctx)
	assert.ErrorIs(t, err, ErrRequestInFlight)
	err = o.RequestDelete("bk-1")
	assert.ErrorIs(t, err, ErrRequestInFlight)

	close(f.release)
	require.NoError(t, <-done)
}

func TestRepeatBookingReentersSlotPicking(t *testing.T) {
	f := newFakeBoundary()
	f.openHours[model.Sunday] = []string{"10:00", "11:00"}
	o, _, _ := newTestOrchestrator(f, "u1")
	ctx := context.Background()

	o.Refresh(ctx)
	require.NoError(t, o.SelectService(ctx, "s1"))
	require.NoError(t, o.SelectTime("2024-03-10", "10:00"))
	_, err := o.ConfirmSave(ctx)
	require.NoError(t, err)
	require.Equal(t, StateIdle, o.State())

	// Re-picking with the service still selected starts a new attempt.
	require.NoError(t, o.SelectTime("2024-03-10", "11:00"))
	assert.Equal(t, StateSlotPicking, o.State())

	f.entered = make(chan struct{})
	f.release = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := o.ConfirmSave(ctx)
		done <- err
	}()
	<-f.entered
	assert.Equal(t, StateSubmitting, o.State(), "second save must be observable in flight")
	close(f.release)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, o.State())
}

func TestSelectableTimesConcurrentWithPicks(t *testing.T) {
	f := newFakeBoundary()
	f.openHours[model.Sunday] = []string{"09:00", "10:00", "11:00"}
	o, _, _ := newTestOrchestrator(f, "u1")
	ctx := context.Background()

	o.Refresh(ctx)
	require.NoError(t, o.SelectService(ctx, "s1"))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = o.SelectTime("2024-03-10", "10:00")
				_ = o.SelectTime("2024-03-10", "11:00")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = o.SelectableTimes()
				_ = o.TimeStatus("10:00")
			}
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"09:00", "10:00", "11:00"}, o.SelectableTimes())
}

func TestDeleteFlow(t *testing.T) {
	f := newFakeBoundary()
	f.bookings = []model.Booking{
		{ID: "bk-1", CompanyID: "c1", UserID: "u1", ServiceID: "s1",
			SelectedDate: "2024-03-10", SelectedTimes: []string{"10:00"}, Status: model.StatusConfirmed},
	}
	o, _, bus := newTestOrchestrator(f, "u1")
	ctx := context.Background()

	var deleted bool
	bus.Subscribe(events.TypeBookingDeleted, func(events.Event) { deleted = true })

	o.Refresh(ctx)
	require.Len(t, o.UserBookings(), 1)

	require.NoError(t, o.RequestDelete("bk-1"))
	assert.Equal(t, StateDeletePending, o.State())

	require.NoError(t, o.ConfirmDelete(ctx))
	assert.True(t, deleted)
	assert.Empty(t, o.UserBookings(), "refetch drops the deleted booking")
}

func TestDeleteFailureRetainsBooking(t *testing.T) {
	f := newFakeBoundary()
	f.bookings = []model.Booking{
		{ID: "bk-1", CompanyID: "c1", UserID: "u1", ServiceID: "s1",
			SelectedDate: "2024-03-10", SelectedTimes: []string{"10:00"}},
	}
	f.failDelete = fmt.Errorf("boom")
	o, _, _ := newTestOrchestrator(f, "u1")
	ctx := context.Background()

	o.Refresh(ctx)
	require.NoError(t, o.RequestDelete("bk-1"))
	err := o.ConfirmDelete(ctx)
	require.Error(t, err)

	assert.Len(t, o.UserBookings(), 1, "booking remains listed after a failed delete")
	assert.NotEqual(t, StateDeleting, o.State())
	assert.NotEqual(t, StateDeletePending, o.State())
}

func TestCancelDelete(t *testing.T) {
	f := newFakeBoundary()
	o, _, _ := newTestOrchestrator(f, "u1")

	require.NoError(t, o.RequestDelete("bk-1"))
	require.Equal(t, StateDeletePending, o.State())

	o.CancelDelete()
	assert.Equal(t, StateIdle, o.State())
	assert.ErrorIs(t, o.ConfirmDelete(context.Background()), ErrNoBookingPendingDelete)
}

func TestRefreshShortCircuits(t *testing.T) {
	f := newFakeBoundary()
	bus := events.NewBus()
	o := NewOrchestrator(f, &fakeRedirect{}, bus, zerolog.Nop())

	// No company resolved: no request may be issued.
	o.Refresh(context.Background())
	assert.Empty(t, f.calls)

	// Company but no user and no date: user- and date-scoped feeds stay quiet.
	o.SetCompany("c1", "")
	o.Refresh(context.Background())
	assert.Equal(t, 1, f.calls["openHours"])
	assert.Zero(t, f.calls["userBookings"])
	assert.Zero(t, f.calls["bookingsByDate"])
}

func TestRefreshActivatesProjectedService(t *testing.T) {
	f := newFakeBoundary()
	f.bookings = []model.Booking{
		{ID: "bk-1", CompanyID: "c1", UserID: "u1", ServiceID: "s7",
			SelectedDate: "2024-03-10", SelectedTimes: []string{"10:00"}},
	}
	o, _, _ := newTestOrchestrator(f, "u1")

	o.Refresh(context.Background())
	assert.Equal(t, "s7", o.SelectedService(), "first projected service becomes active")
	proj := o.Projection()
	require.Contains(t, proj, "s7")
	assert.Equal(t, "10:00", proj["s7"].Time)
}

func TestDefaultWorkingHoursFallback(t *testing.T) {
	f := newFakeBoundary() // open-hours map loaded but entirely empty
	o, _, _ := newTestOrchestrator(f, "u1")

	o.Refresh(context.Background())
	assert.True(t, o.TimeStatus("09:00").IsAvailable)
	assert.True(t, o.TimeStatus("21:00").IsAvailable)
	assert.False(t, o.TimeStatus("22:00").IsAvailable)
}

func TestConfiguredWeekdayGoverns(t *testing.T) {
	f := newFakeBoundary()
	f.openHours[model.Monday] = []string{"10:00"} // 2024-03-10 is a Sunday
	o, _, _ := newTestOrchestrator(f, "u1")

	o.Refresh(context.Background())
	assert.False(t, o.TimeStatus("10:00").IsAvailable, "absent weekday means closed that day")

	o.SetDate("2024-03-11") // Monday
	o.Refresh(context.Background())
	assert.True(t, o.TimeStatus("10:00").IsAvailable)
}
