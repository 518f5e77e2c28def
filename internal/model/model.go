// Package model defines the data types shared by the booking client core.
package model

import (
	"errors"
	"fmt"
	"time"
)

// BookingStatus is the lifecycle status of a booking, owned by the server.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusRejected  BookingStatus = "rejected"
	StatusCompleted BookingStatus = "completed"
)

// Weekday is the platform weekday key. The booking week starts on Saturday.
type Weekday string

const (
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
)

// WeekdayKeys lists all weekday keys in platform order.
var WeekdayKeys = []Weekday{Saturday, Sunday, Monday, Tuesday, Wednesday, Thursday, Friday}

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

var (
	ErrInvalidDate    = errors.New("invalid date, want YYYY-MM-DD")
	ErrEmptyTimes     = errors.New("booking has no time labels")
	ErrInvalidTime    = errors.New("time label outside the hourly grid")
	ErrMissingIDs     = errors.New("booking is missing identity fields")
	ErrInvalidWeekday = errors.New("unknown weekday key")
)

// Company is a bookable business. Read-only to the booking core.
type Company struct {
	ID         string               `json:"_id"`
	Name       string               `json:"name"`
	URL        string               `json:"url"`
	TimesByDay map[Weekday][]string `json:"timesByDay,omitempty"`
}

// Service belongs to exactly one company. Price and duration are opaque here.
type Service struct {
	ID        string `json:"serviceId"`
	CompanyID string `json:"companyId"`
	Title     string `json:"title"`
	Price     string `json:"price,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// Booking is a reserved slot, owned by the server; the client holds a
// read-through copy refreshed wholesale by the orchestrator.
type Booking struct {
	ID            string        `json:"_id"`
	CompanyID     string        `json:"companyId"`
	UserID        string        `json:"userId"`
	ServiceID     string        `json:"serviceId"`
	SelectedDate  string        `json:"selectedDate"`
	SelectedTimes []string      `json:"selectedTimes"`
	Status        BookingStatus `json:"status,omitempty"`
}

// Selection is a user's tentative, not-yet-persisted slot choice for one
// service. Held only in client memory.
type Selection struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	UserID string `json:"userId,omitempty"`
}

// WeekdayOf maps a YYYY-MM-DD date to its platform weekday key.
func WeekdayOf(date string) (Weekday, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	switch t.Weekday() {
	case time.Saturday:
		return Saturday, nil
	case time.Sunday:
		return Sunday, nil
	case time.Monday:
		return Monday, nil
	case time.Tuesday:
		return Tuesday, nil
	case time.Wednesday:
		return Wednesday, nil
	case time.Thursday:
		return Thursday, nil
	default:
		return Friday, nil
	}
}

// ValidDate reports whether date is a well-formed YYYY-MM-DD calendar date.
func ValidDate(date string) bool {
	_, err := time.Parse(DateLayout, date)
	return err == nil
}

// Normalize fills in defaults the server may omit. An empty status renders as
// pending everywhere in the platform, so it is normalized here once.
func (b *Booking) Normalize() {
	if b.Status == "" {
		b.Status = StatusPending
	}
}

// Validate checks the booking shape at the data-fetching boundary so the core
// never has to guard against malformed entries.
func (b *Booking) Validate() error {
	if b.ID == "" || b.CompanyID == "" || b.UserID == "" || b.ServiceID == "" {
		return ErrMissingIDs
	}
	if !ValidDate(b.SelectedDate) {
		return fmt.Errorf("%w: %q", ErrInvalidDate, b.SelectedDate)
	}
	if len(b.SelectedTimes) == 0 {
		return ErrEmptyTimes
	}
	for _, t := range b.SelectedTimes {
		if !validLabel(t) {
			return fmt.Errorf("%w: %q", ErrInvalidTime, t)
		}
	}
	return nil
}

// validLabel mirrors timegrid.ValidLabel without importing it; model sits
// below timegrid in the package graph.
func validLabel(s string) bool {
	if len(s) != 5 || s[2] != ':' || s[3] != '0' || s[4] != '0' {
		return false
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	return s[0] >= '0' && s[0] <= '9' && s[1] >= '0' && s[1] <= '9' && h < 24
}
