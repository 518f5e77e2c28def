package booking

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"rezerv/internal/api"
	"rezerv/internal/availability"
	"rezerv/internal/events"
	"rezerv/internal/metrics"
	"rezerv/internal/model"
	"rezerv/internal/query"
	"rezerv/internal/timegrid"
)

// Boundary is the slice of the data-fetching layer the orchestrator needs.
type Boundary interface {
	CompanyOpenHours(ctx context.Context, companyID string) (map[model.Weekday][]string, error)
	CompanyBookings(ctx context.Context, companyID string) ([]model.Booking, error)
	CompanyBookingsByDate(ctx context.Context, companyID, date string) ([]model.Booking, error)
	UserBookings(ctx context.Context, companyID, userID, date string) ([]model.Booking, error)
	ServicesByCompany(ctx context.Context, companyID string) ([]model.Service, error)
	CreateBooking(ctx context.Context, companyID, userID string, req api.CreateBookingRequest) (*model.Booking, error)
	DeleteBooking(ctx context.Context, bookingID string) error
}

// RedirectStore remembers where to send the user back after authentication.
type RedirectStore interface {
	SetRedirectPath(ctx context.Context, path string) error
}

// Orchestrator owns the pending local selections, the remote-state refresh
// cycle and the create/delete flows. All state is guarded by a single mutex;
// remote calls run outside it. Only one create/delete may be in flight at a
// time.
type Orchestrator struct {
	boundary Boundary
	redirect RedirectStore
	bus      *events.Bus
	log      zerolog.Logger

	mu        sync.Mutex
	fsm       *FSM
	state     State
	prevState State

	companyID  string
	userID     string
	date       string
	returnPath string

	selectedService string
	pending         map[string]model.Selection
	projected       map[string]model.Selection
	pendingDelete   string
	inFlight        bool

	openHours       query.State[map[model.Weekday][]string]
	allBookings     query.State[[]model.Booking]
	companyBookings query.State[[]model.Booking]
	userBookings    query.State[[]model.Booking]
	services        query.State[[]model.Service]
}

// NewOrchestrator wires an orchestrator. redirect may be nil when the caller
// has no auth flow to return from.
func NewOrchestrator(boundary Boundary, redirect RedirectStore, bus *events.Bus, log zerolog.Logger) *Orchestrator {
	if bus == nil {
		bus = events.NewBus()
	}
	return &Orchestrator{
		boundary:  boundary,
		redirect:  redirect,
		bus:       bus,
		log:       log,
		fsm:       NewFSM(),
		state:     StateIdle,
		prevState: StateIdle,
		pending:   make(map[string]model.Selection),
		projected: make(map[string]model.Selection),
	}
}

// SetCompany scopes the orchestrator to one company. returnPath is the
// booking screen path remembered across an auth round trip.
func (o *Orchestrator) SetCompany(companyID, returnPath string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.companyID = companyID
	o.returnPath = returnPath
	o.openHours = query.NotAsked[map[model.Weekday][]string]()
	o.allBookings = query.NotAsked[[]model.Booking]()
	o.companyBookings = query.NotAsked[[]model.Booking]()
	o.userBookings = query.NotAsked[[]model.Booking]()
	o.services = query.NotAsked[[]model.Service]()
}

// SetUser records the authenticated identity, empty for anonymous sessions.
func (o *Orchestrator) SetUser(userID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.userID = userID
}

// SetDate switches the working calendar date and invalidates the per-date
// booking feed.
func (o *Orchestrator) SetDate(date string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.date == date {
		return
	}
	o.date = date
	o.companyBookings = query.NotAsked[[]model.Booking]()
}

// State returns the current flow state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SelectedService returns the active service id, empty when none.
func (o *Orchestrator) SelectedService() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selectedService
}

// Pending returns the unsaved selection for a service, if any.
func (o *Orchestrator) Pending(serviceID string) (model.Selection, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sel, ok := o.pending[serviceID]
	return sel, ok
}

// Projection returns the per-service selections derived from the user's
// persisted bookings on the last refresh.
func (o *Orchestrator) Projection() map[string]model.Selection {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]model.Selection, len(o.projected))
	for k, v := range o.projected {
		out[k] = v
	}
	return out
}

// UserBookings returns the user's bookings from the last refresh.
func (o *Orchestrator) UserBookings() []model.Booking {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.userBookings.OrZero()
}

// AllBookings returns the company-wide booking list from the last refresh.
func (o *Orchestrator) AllBookings() []model.Booking {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.allBookings.OrZero()
}

// Services returns the company's services from the last refresh.
func (o *Orchestrator) Services() []model.Service {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.services.OrZero()
}

// SelectService activates a service for slot picking. An unauthenticated
// attempt performs no selection: the intended destination is remembered and
// the auth-required condition is flagged instead.
func (o *Orchestrator) SelectService(ctx context.Context, serviceID string) error {
	o.mu.Lock()
	if o.userID == "" {
		o.transitionLocked(StateAuthRequired)
		path := o.returnPath
		o.mu.Unlock()
		if o.redirect != nil && path != "" {
			if err := o.redirect.SetRedirectPath(ctx, path); err != nil {
				o.log.Warn().Err(err).Msg("remember redirect path")
			}
		}
		o.bus.Publish(events.Event{Type: events.TypeAuthRequired, Message: "login or register to continue"})
		return ErrAuthRequired
	}
	o.selectedService = serviceID
	if o.state == StateIdle || o.state == StateAuthRequired {
		o.transitionLocked(StateSlotPicking)
	}
	o.mu.Unlock()
	return nil
}

// SelectTime sets (or overwrites) the pending selection for the active
// service. Picking with no active service is a no-op warning, not a failure.
func (o *Orchestrator) SelectTime(date, timeLabel string) error {
	if !timegrid.ValidLabel(timeLabel) {
		return ErrInvalidTimeLabel
	}
	o.mu.Lock()
	if o.selectedService == "" {
		o.mu.Unlock()
		o.bus.Publish(events.Event{Type: events.TypeWarning, Message: "please select a service first"})
		return ErrNoServiceSelected
	}
	o.pending[o.selectedService] = model.Selection{Date: date, Time: timeLabel, UserID: o.userID}
	// A re-pick after a completed save starts a fresh booking attempt.
	if o.state == StateIdle {
		o.transitionLocked(StateSlotPicking)
	}
	o.mu.Unlock()
	return nil
}

// ConfirmSave submits the pending selection for the active service. On
// success the selection is cleared and the remote feeds are refreshed; on
// failure the selection is preserved for retry.
func (o *Orchestrator) ConfirmSave(ctx context.Context) (*model.Booking, error) {
	o.mu.Lock()
	if o.selectedService == "" {
		o.mu.Unlock()
		o.bus.Publish(events.Event{Type: events.TypeWarning, Message: "please select a service first"})
		return nil, ErrNoServiceSelected
	}
	sel, ok := o.pending[o.selectedService]
	if !ok {
		o.mu.Unlock()
		o.bus.Publish(events.Event{Type: events.TypeWarning, Message: "no booking selected"})
		return nil, ErrNoSlotSelected
	}
	if o.inFlight {
		o.mu.Unlock()
		return nil, ErrRequestInFlight
	}
	o.inFlight = true
	serviceID := o.selectedService
	companyID, userID := o.companyID, o.userID
	o.transitionLocked(StateSubmitting)
	o.mu.Unlock()

	created, err := o.boundary.CreateBooking(ctx, companyID, userID, api.CreateBookingRequest{
		ServiceID:    serviceID,
		SelectedDate: sel.Date,
		SelectedTime: sel.Time,
	})

	o.mu.Lock()
	o.inFlight = false
	if err != nil {
		// The pending selection stays untouched for retry.
		o.transitionLocked(StateSlotPicking)
		o.mu.Unlock()
		metrics.IncBookingFailed("create")
		o.log.Error().Err(err).Str("service", serviceID).Msg("create booking failed")
		o.bus.Publish(events.Event{Type: events.TypeBookingFailed, Message: "booking could not be saved", Err: err})
		return nil, err
	}
	delete(o.pending, serviceID)
	o.transitionLocked(StateIdle)
	o.mu.Unlock()

	metrics.IncBookingCreated(string(created.Status))
	o.log.Info().Str("booking", created.ID).Str("service", serviceID).Msg("booking saved")
	o.refreshAfterMutation(ctx, sel.Date)
	o.bus.Publish(events.Event{Type: events.TypeBookingSaved, Message: "booking saved", Booking: created})
	return created, nil
}

// RequestDelete marks a booking for deletion pending user confirmation.
func (o *Orchestrator) RequestDelete(bookingID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight {
		return ErrRequestInFlight
	}
	o.prevState = o.state
	o.pendingDelete = bookingID
	o.transitionLocked(StateDeletePending)
	return nil
}

// CancelDelete dismisses the delete confirmation.
func (o *Orchestrator) CancelDelete() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateDeletePending {
		return
	}
	o.pendingDelete = ""
	o.transitionLocked(o.prevState)
}

// ConfirmDelete performs the remote delete. On failure the booking remains
// listed and the flow reverts; nothing is dropped silently.
func (o *Orchestrator) ConfirmDelete(ctx context.Context) error {
	o.mu.Lock()
	if o.pendingDelete == "" {
		o.mu.Unlock()
		return ErrNoBookingPendingDelete
	}
	if o.inFlight {
		o.mu.Unlock()
		return ErrRequestInFlight
	}
	o.inFlight = true
	bookingID := o.pendingDelete
	o.transitionLocked(StateDeleting)
	o.mu.Unlock()

	err := o.boundary.DeleteBooking(ctx, bookingID)

	o.mu.Lock()
	o.inFlight = false
	o.pendingDelete = ""
	restored := o.prevState
	o.transitionLocked(restored)
	date := o.date
	o.mu.Unlock()

	if err != nil {
		metrics.IncBookingFailed("delete")
		o.log.Error().Err(err).Str("booking", bookingID).Msg("delete booking failed")
		o.bus.Publish(events.Event{Type: events.TypeBookingFailed, Message: "reservation could not be deleted", Err: err})
		return err
	}
	metrics.IncBookingCancelled()
	o.log.Info().Str("booking", bookingID).Msg("booking deleted")
	o.refreshAfterMutation(ctx, date)
	o.bus.Publish(events.Event{Type: events.TypeBookingDeleted, Message: "reservation deleted"})
	return nil
}

// Refresh re-fetches every feed whose key inputs are resolved. Unresolved
// dependencies short-circuit to "no request issued". Each feed is replaced
// wholesale; a failed fetch leaves that feed Failed, never the session dead.
func (o *Orchestrator) Refresh(ctx context.Context) {
	o.mu.Lock()
	companyID, userID, date := o.companyID, o.userID, o.date
	o.mu.Unlock()
	if companyID == "" {
		return
	}

	o.refreshOpenHours(ctx, companyID)
	o.refreshServices(ctx, companyID)
	o.refreshAllBookings(ctx, companyID)
	if date != "" {
		o.refreshCompanyBookings(ctx, companyID, date)
	}
	if userID != "" {
		o.refreshUserBookings(ctx, companyID, userID, date)
	}
}

// refreshAfterMutation reloads the three booking feeds after a successful
// create or delete. The refetches are independent and unordered.
func (o *Orchestrator) refreshAfterMutation(ctx context.Context, date string) {
	o.mu.Lock()
	companyID, userID := o.companyID, o.userID
	o.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if date != "" {
			o.refreshCompanyBookings(ctx, companyID, date)
		}
	}()
	go func() {
		defer wg.Done()
		o.refreshAllBookings(ctx, companyID)
	}()
	go func() {
		defer wg.Done()
		if userID != "" {
			o.refreshUserBookings(ctx, companyID, userID, date)
		}
	}()
	wg.Wait()
}

func (o *Orchestrator) refreshOpenHours(ctx context.Context, companyID string) {
	o.setOpenHours(query.Loading[map[model.Weekday][]string]())
	hours, err := o.boundary.CompanyOpenHours(ctx, companyID)
	if err != nil {
		metrics.IncRefresh("open_hours", "error")
		o.setOpenHours(query.Failed[map[model.Weekday][]string](err))
		return
	}
	metrics.IncRefresh("open_hours", "ok")
	o.setOpenHours(query.Loaded(hours))
}

func (o *Orchestrator) refreshServices(ctx context.Context, companyID string) {
	svcs, err := o.boundary.ServicesByCompany(ctx, companyID)
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		metrics.IncRefresh("services", "error")
		o.services = query.Failed[[]model.Service](err)
		return
	}
	metrics.IncRefresh("services", "ok")
	o.services = query.Loaded(svcs)
}

func (o *Orchestrator) refreshAllBookings(ctx context.Context, companyID string) {
	all, err := o.boundary.CompanyBookings(ctx, companyID)
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		metrics.IncRefresh("all_bookings", "error")
		o.allBookings = query.Failed[[]model.Booking](err)
		return
	}
	metrics.IncRefresh("all_bookings", "ok")
	o.allBookings = query.Loaded(all)
}

func (o *Orchestrator) refreshCompanyBookings(ctx context.Context, companyID, date string) {
	byDate, err := o.boundary.CompanyBookingsByDate(ctx, companyID, date)
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		metrics.IncRefresh("company_bookings", "error")
		o.companyBookings = query.Failed[[]model.Booking](err)
		return
	}
	metrics.IncRefresh("company_bookings", "ok")
	o.companyBookings = query.Loaded(byDate)
}

func (o *Orchestrator) refreshUserBookings(ctx context.Context, companyID, userID, date string) {
	mine, err := o.boundary.UserBookings(ctx, companyID, userID, date)
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		metrics.IncRefresh("user_bookings", "error")
		o.userBookings = query.Failed[[]model.Booking](err)
		return
	}
	metrics.IncRefresh("user_bookings", "ok")
	o.userBookings = query.Loaded(mine)
	o.applyProjectionLocked(mine)
}

// applyProjectionLocked replaces the projection with server truth and, when
// no service is active yet, activates the service of the user's first
// booking so their reservation shows up pre-selected.
func (o *Orchestrator) applyProjectionLocked(mine []model.Booking) {
	proj := availability.ProjectUserBookings(mine, o.userID)
	o.projected = proj
	if o.selectedService != "" || len(proj) == 0 {
		return
	}
	for _, b := range mine {
		if _, ok := proj[b.ServiceID]; ok {
			o.selectedService = b.ServiceID
			if o.state == StateIdle {
				o.transitionLocked(StateSlotPicking)
			}
			break
		}
	}
}

func (o *Orchestrator) setOpenHours(s query.State[map[model.Weekday][]string]) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.openHours = s
}

// TimeStatus classifies one time label on the working date against the
// current remote and local state. Missing feeds degrade to empty sets.
func (o *Orchestrator) TimeStatus(timeLabel string) availability.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return availability.Classify(timeLabel, o.date, o.classifyInputLocked())
}

// SelectableTimes returns the grid labels offered for the working date, in
// order. Slots that are neither open nor the user's own are excluded
// entirely, not disabled.
func (o *Orchestrator) SelectableTimes() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	in := o.classifyInputLocked()
	var out []string
	for _, t := range timegrid.AllTimes() {
		if availability.Classify(t, o.date, in).Selectable() {
			out = append(out, t)
		}
	}
	return out
}

func (o *Orchestrator) classifyInputLocked() availability.ClassifyInput {
	return availability.ClassifyInput{
		AvailableTimes:    o.availableTimesLocked(),
		BookedByOthers:    availability.BookedByOthers(o.companyBookings.OrZero(), o.date, o.userID),
		UserBookings:      o.userBookings.OrZero(),
		SelectedServiceID: o.selectedService,
		Pending:           o.pending,
	}
}

// availableTimesLocked resolves the open-hour set for the working date's
// weekday. A company with no configured hours at all falls back to the
// default working range; a configured company with an absent weekday is
// simply closed that day.
func (o *Orchestrator) availableTimesLocked() []string {
	hours, ok := o.openHours.Get()
	if !ok || o.date == "" {
		return nil
	}
	if len(hours) == 0 {
		return timegrid.DefaultWorkingHours()
	}
	day, err := model.WeekdayOf(o.date)
	if err != nil {
		return nil
	}
	return hours[day]
}

func (o *Orchestrator) transitionLocked(to State) {
	if o.state == to {
		return
	}
	if !o.fsm.CanTransition(o.state, to) {
		o.log.Warn().Str("from", string(o.state)).Str("to", string(to)).Msg("illegal state transition")
		return
	}
	o.state = to
}
