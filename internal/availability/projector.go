package availability

import "rezerv/internal/model"

// ProjectUserBookings reduces a user's raw bookings to one selection per
// service: the first listed time of the booking's date, keyed by service.
// When a user holds several bookings for the same service the later entry
// overwrites the earlier one (insertion order). Collapsing to a single slot
// per service is intentional platform behavior; do not switch to
// most-recent-by-date without a product decision.
func ProjectUserBookings(bookings []model.Booking, userID string) map[string]model.Selection {
	out := make(map[string]model.Selection)
	for _, b := range bookings {
		if b.UserID != userID || len(b.SelectedTimes) == 0 {
			continue
		}
		out[b.ServiceID] = model.Selection{
			Date:   b.SelectedDate,
			Time:   b.SelectedTimes[0],
			UserID: userID,
		}
	}
	return out
}
