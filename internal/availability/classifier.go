// Package availability holds the pure slot-classification logic: which time
// labels on a day are open, taken by others, taken by the current user, or
// tentatively selected.
package availability

import (
	"rezerv/internal/model"
)

// ClassifyInput carries everything the classifier needs for one slot. Nil or
// empty fields degrade to empty sets; classification never fails.
type ClassifyInput struct {
	// AvailableTimes is the open-hour set for the date's weekday.
	AvailableTimes []string
	// BookedByOthers is pre-filtered to same company, same date, other users.
	BookedByOthers []string
	// UserBookings are the current user's bookings at this company.
	UserBookings []model.Booking
	// SelectedServiceID is the active service, empty when none.
	SelectedServiceID string
	// Pending maps serviceID to the unsaved local selection.
	Pending map[string]model.Selection
}

// Status is the classification of one (time, date) slot.
type Status struct {
	IsAvailable      bool
	IsBookedByOthers bool
	// UserBooking is the current user's booking covering this slot, if any.
	// A self-booked slot stays visible even outside the open-hour set.
	UserBooking *model.Booking
	// IsActive marks the user's current unsaved pick for the active service.
	IsActive bool
}

// Selectable reports whether a slot may be offered for selection at all.
// Slots failing this are excluded from the offered set, not merely disabled.
func (s Status) Selectable() bool {
	return (s.IsAvailable && !s.IsBookedByOthers) || s.UserBooking != nil
}

// Classify computes the status of one time label on a given date.
func Classify(timeLabel, date string, in ClassifyInput) Status {
	st := Status{
		IsAvailable:      contains(in.AvailableTimes, timeLabel),
		IsBookedByOthers: contains(in.BookedByOthers, timeLabel),
	}

	for i := range in.UserBookings {
		b := &in.UserBookings[i]
		if b.SelectedDate == date && contains(b.SelectedTimes, timeLabel) {
			st.UserBooking = b
			break
		}
	}

	if in.SelectedServiceID != "" {
		if sel, ok := in.Pending[in.SelectedServiceID]; ok {
			st.IsActive = sel.Date == date && sel.Time == timeLabel
		}
	}
	return st
}

// BookedByOthers flattens the time labels of bookings on the given date that
// belong to users other than userID. The input is assumed to be scoped to one
// company already by the fetch.
func BookedByOthers(bookings []model.Booking, date, userID string) []string {
	var times []string
	for _, b := range bookings {
		if b.SelectedDate != date || b.UserID == userID {
			continue
		}
		times = append(times, b.SelectedTimes...)
	}
	return times
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
