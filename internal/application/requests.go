package application

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/desk-booking/internal/recurrence"
	"github.com/example/desk-booking/internal/scheduler"
)

// Operation names accepted by the dispatcher.
const (
	OpCreate                = "create"
	OpRequest               = "request"
	OpCreateFixedAssignment = "create_fixed_assignment"
	OpAssignDays            = "assign_days"
	OpApprove               = "approve"
	OpReject                = "reject"
	OpCancel                = "cancel"
	OpDeleteFixedAssignment = "delete_fixed_assignment"
	OpListMyReservations    = "list_my_reservations"
	OpListRoomReservations  = "list_room_reservations"
	OpListPendingApprovals  = "list_pending_approvals"
	OpCheckAvailability     = "check_availability"
)

// Request is one variant of the dispatch payload union.
type Request interface {
	Operation() string
}

// ReservationPayload is shared by create and request.
type ReservationPayload struct {
	CellID      string `json:"cell_id" validate:"required"`
	UserID      string `json:"user_id,omitempty"`
	DateStart   string `json:"date_start" validate:"required,datetime=2006-01-02"`
	DateEnd     string `json:"date_end,omitempty" validate:"omitempty,datetime=2006-01-02"`
	TimeSegment string `json:"time_segment,omitempty" validate:"omitempty,oneof=AM PM FULL am pm full"`
}

// CreateRequest books a desk directly.
type CreateRequest struct {
	ReservationPayload
}

// RequestReservationRequest files a reservation pending approval.
type RequestReservationRequest struct {
	ReservationPayload
}

// CreateFixedAssignmentRequest assigns a cell to a user for a range.
type CreateFixedAssignmentRequest struct {
	CellID    string `json:"cell_id" validate:"required"`
	UserID    string `json:"user_id" validate:"required"`
	DateStart string `json:"date_start" validate:"required,datetime=2006-01-02"`
	DateEnd   string `json:"date_end" validate:"required,datetime=2006-01-02"`
}

// AssignDaysRequest expands an assignment into daily reservations.
type AssignDaysRequest struct {
	CellID    string   `json:"cell_id" validate:"required"`
	UserID    string   `json:"user_id" validate:"required"`
	DateStart string   `json:"date_start" validate:"required,datetime=2006-01-02"`
	DateEnd   string   `json:"date_end" validate:"required,datetime=2006-01-02"`
	Weekdays  []string `json:"weekdays,omitempty" validate:"omitempty,dive,required"`
}

// ApproveRequest approves a pending reservation.
type ApproveRequest struct {
	ReservationID string `json:"reservation_id" validate:"required"`
}

// RejectRequest rejects a pending reservation.
type RejectRequest struct {
	ReservationID string `json:"reservation_id" validate:"required"`
}

// CancelRequest cancels a reservation.
type CancelRequest struct {
	ReservationID string `json:"reservation_id" validate:"required"`
}

// DeleteFixedAssignmentRequest deletes an assignment or releases one day of it.
type DeleteFixedAssignmentRequest struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	Date         string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// ListMyReservationsRequest lists the caller's bookings.
type ListMyReservationsRequest struct {
	Statuses  []string `json:"statuses,omitempty" validate:"omitempty,dive,oneof=pending approved rejected cancelled"`
	DateStart string   `json:"date_start,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DateEnd   string   `json:"date_end,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// ListRoomReservationsRequest lists a room's bookings.
type ListRoomReservationsRequest struct {
	RoomID    string   `json:"room_id" validate:"required"`
	Statuses  []string `json:"statuses,omitempty" validate:"omitempty,dive,oneof=pending approved rejected cancelled"`
	DateStart string   `json:"date_start,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DateEnd   string   `json:"date_end,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// ListPendingApprovalsRequest lists reservations awaiting approval.
type ListPendingApprovalsRequest struct {
	RoomID string `json:"room_id,omitempty"`
}

// CheckAvailabilityRequest asks for free segments.
type CheckAvailabilityRequest struct {
	RoomID    string `json:"room_id" validate:"required"`
	CellID    string `json:"cell_id,omitempty"`
	DateStart string `json:"date_start" validate:"required,datetime=2006-01-02"`
	DateEnd   string `json:"date_end,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

func (*CreateRequest) Operation() string                { return OpCreate }
func (*RequestReservationRequest) Operation() string    { return OpRequest }
func (*CreateFixedAssignmentRequest) Operation() string { return OpCreateFixedAssignment }
func (*AssignDaysRequest) Operation() string            { return OpAssignDays }
func (*ApproveRequest) Operation() string               { return OpApprove }
func (*RejectRequest) Operation() string                { return OpReject }
func (*CancelRequest) Operation() string                { return OpCancel }
func (*DeleteFixedAssignmentRequest) Operation() string { return OpDeleteFixedAssignment }
func (*ListMyReservationsRequest) Operation() string    { return OpListMyReservations }
func (*ListRoomReservationsRequest) Operation() string  { return OpListRoomReservations }
func (*ListPendingApprovalsRequest) Operation() string  { return OpListPendingApprovals }
func (*CheckAvailabilityRequest) Operation() string     { return OpCheckAvailability }

var requestFactories = map[string]func() Request{
	OpCreate:                func() Request { return &CreateRequest{} },
	OpRequest:               func() Request { return &RequestReservationRequest{} },
	OpCreateFixedAssignment: func() Request { return &CreateFixedAssignmentRequest{} },
	OpAssignDays:            func() Request { return &AssignDaysRequest{} },
	OpApprove:               func() Request { return &ApproveRequest{} },
	OpReject:                func() Request { return &RejectRequest{} },
	OpCancel:                func() Request { return &CancelRequest{} },
	OpDeleteFixedAssignment: func() Request { return &DeleteFixedAssignmentRequest{} },
	OpListMyReservations:    func() Request { return &ListMyReservationsRequest{} },
	OpListRoomReservations:  func() Request { return &ListRoomReservationsRequest{} },
	OpListPendingApprovals:  func() Request { return &ListPendingApprovalsRequest{} },
	OpCheckAvailability:     func() Request { return &CheckAvailabilityRequest{} },
}

// Operations lists every operation name in sorted order.
func Operations() []string {
	names := make([]string, 0, len(requestFactories))
	for name := range requestFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var payloadValidator = newPayloadValidator()

func newPayloadValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeRequest parses the payload of the named operation into its request
// type and validates required fields and formats. Unknown fields are refused.
func DecodeRequest(operation string, payload json.RawMessage) (Request, error) {
	factory, ok := requestFactories[strings.TrimSpace(operation)]
	if !ok {
		return nil, newBookingError(ErrUnknownOperation, map[string]string{"operation": operation},
			"unknown operation %q", operation)
	}
	req := factory()

	body := bytes.TrimSpace(payload)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		body = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		return nil, decodeError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fieldError("payload", "payload must contain a single JSON object")
	}

	if err := ValidatePayload(req); err != nil {
		return nil, err
	}
	return req, nil
}

// ValidatePayload checks struct tags on a request.
func ValidatePayload(req Request) error {
	err := payloadValidator.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate payload: %w", err)
	}
	vErr := &ValidationError{}
	for _, fe := range fieldErrs {
		vErr.add(fe.Field(), describeFieldError(fe))
	}
	return vErr
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "datetime":
		return fe.Field() + " must be a date formatted as YYYY-MM-DD"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	}
	return fe.Field() + " is invalid"
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fieldError(typeErr.Field, fmt.Sprintf("%s has the wrong type", typeErr.Field))
	}
	if msg := err.Error(); strings.HasPrefix(msg, "json: unknown field ") {
		field := strings.Trim(strings.TrimPrefix(msg, "json: unknown field "), `"`)
		return fieldError(field, "unknown field")
	}
	return fieldError("payload", "payload is not valid JSON")
}

// parseRange builds a range from payload dates. A missing end means a single day.
func parseRange(start, end string) (scheduler.Range, error) {
	from, err := scheduler.ParseDate(start)
	if err != nil {
		return scheduler.Range{}, fieldError("date_start", "date_start must be a date formatted as YYYY-MM-DD")
	}
	if strings.TrimSpace(end) == "" {
		return scheduler.SingleDay(from), nil
	}
	to, err := scheduler.ParseDate(end)
	if err != nil {
		return scheduler.Range{}, fieldError("date_end", "date_end must be a date formatted as YYYY-MM-DD")
	}
	r := scheduler.Range{Start: from, End: to}
	if err := r.Validate(); err != nil {
		return scheduler.Range{}, fieldError("date_end", "date_end must not be before date_start")
	}
	return r, nil
}

// parseOptionalRange returns nil when neither bound is given. A single bound
// selects that day.
func parseOptionalRange(start, end string) (*scheduler.Range, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" {
		start = end
	}
	r, err := parseRange(start, end)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func parseSegment(value string) (scheduler.Segment, error) {
	if strings.TrimSpace(value) == "" {
		return scheduler.SegmentFull, nil
	}
	segment, err := scheduler.ParseSegment(value)
	if err != nil {
		return "", fieldError("time_segment", "time_segment must be AM, PM or FULL")
	}
	return segment, nil
}

func parseStatuses(values []string) ([]scheduler.Status, error) {
	out := make([]scheduler.Status, 0, len(values))
	for _, v := range values {
		st, err := scheduler.ParseStatus(strings.ToLower(strings.TrimSpace(v)))
		if err != nil {
			return nil, fieldError("statuses", fmt.Sprintf("unknown status %q", v))
		}
		out = append(out, st)
	}
	return out, nil
}

func parseWeekdays(values []string) ([]time.Weekday, error) {
	days, err := recurrence.ParseWeekdays(values)
	if err != nil {
		return nil, fieldError("weekdays", err.Error())
	}
	return days, nil
}
