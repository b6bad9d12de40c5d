package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/clinicbase/scheduling-engine/internal/scheduling"
)

const dateLayout = "2006-01-02"

var validate = validator.New()

// Slot resolution

func resolveSlotsHandler(svc *scheduling.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathUUID(w, r, "id", "invalid_doctor_id")
		if !ok {
			return
		}

		loc := svc.Resolver().Location()
		date, ok := queryDate(w, r, loc)
		if !ok {
			return
		}

		duration, ok := queryMinutes(w, r, "duration")
		if !ok {
			return
		}
		granularity, ok := queryMinutes(w, r, "granularity")
		if !ok {
			return
		}

		slots, period, err := svc.ResolveSlots(r.Context(), scheduling.ResolveRequest{
			DoctorID:           doctorID,
			Date:               date,
			GranularityMinutes: granularity,
			DurationMinutes:    duration,
			Now:                time.Now(),
		})
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		resp := SlotsResponse{
			DoctorID: doctorID,
			Date:     date.Format(dateLayout),
			Slots:    make([]SlotResponse, 0, len(slots)),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, SlotResponse{StartAt: s.StartAt, DurationMinutes: s.DurationMinutes})
		}
		if period != nil {
			resp.Blocked = true
			resp.BlockedReason = period.Reason
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func dateBlockedHandler(svc *scheduling.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathUUID(w, r, "id", "invalid_doctor_id")
		if !ok {
			return
		}
		date, ok := queryDate(w, r, svc.Resolver().Location())
		if !ok {
			return
		}

		blocked, err := svc.IsDateBlocked(r.Context(), doctorID, date, time.Now())
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, BlockedResponse{
			DoctorID: doctorID,
			Date:     date.Format(dateLayout),
			Blocked:  blocked,
		})
	}
}

// Bookings

func createBookingHandler(svc *scheduling.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		doctorID, _ := uuid.Parse(req.DoctorID)
		patientID, _ := uuid.Parse(req.PatientID)

		var serviceID *uuid.UUID
		if req.ServiceID != nil {
			id, _ := uuid.Parse(*req.ServiceID)
			serviceID = &id
		}

		booking, err := svc.Create(r.Context(), scheduling.CreateBookingRequest{
			DoctorID:        doctorID,
			PatientID:       patientID,
			Kind:            scheduling.BookingKind(req.Kind),
			StartAt:         req.StartAt,
			DurationMinutes: req.DurationMinutes,
			ServiceID:       serviceID,
		})
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBookingResponse(booking))
	}
}

func getBookingHandler(svc *scheduling.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id", "invalid_booking_id")
		if !ok {
			return
		}

		booking, err := svc.GetBooking(r.Context(), id)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(booking))
	}
}

func rescheduleBookingHandler(svc *scheduling.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id", "invalid_booking_id")
		if !ok {
			return
		}

		var req RescheduleRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		booking, err := svc.Reschedule(r.Context(), id, req.NewStartAt)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(booking))
	}
}

func completeBookingHandler(svc *scheduling.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id", "invalid_booking_id")
		if !ok {
			return
		}

		booking, err := svc.Complete(r.Context(), id)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(booking))
	}
}

func postponeBookingHandler(svc *scheduling.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id", "invalid_booking_id")
		if !ok {
			return
		}

		booking, err := svc.Postpone(r.Context(), id)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(booking))
	}
}

func cancelBookingHandler(svc *scheduling.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id", "invalid_booking_id")
		if !ok {
			return
		}

		booking, err := svc.Cancel(r.Context(), id)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(booking))
	}
}

// Weekly availability rules

func listRulesHandler(sched *scheduling.ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathUUID(w, r, "id", "invalid_doctor_id")
		if !ok {
			return
		}

		rules, err := sched.ListRules(r.Context(), doctorID)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		resp := make([]RuleResponse, 0, len(rules))
		for _, rule := range rules {
			resp = append(resp, toRuleResponse(rule))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func upsertRuleHandler(sched *scheduling.ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathUUID(w, r, "id", "invalid_doctor_id")
		if !ok {
			return
		}

		var req RuleRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		startMinute, err := scheduling.ParseClock(req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", err.Error())
			return
		}
		endMinute, err := scheduling.ParseClock(req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_time", err.Error())
			return
		}

		active := true
		if req.Active != nil {
			active = *req.Active
		}

		rule := scheduling.WeeklyRule{
			DoctorID:    doctorID,
			Weekday:     time.Weekday(*req.Weekday),
			StartMinute: startMinute,
			EndMinute:   endMinute,
			Active:      active,
		}
		if err := sched.UpsertRule(r.Context(), &rule); err != nil {
			writeSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toRuleResponse(rule))
	}
}

func deactivateRuleHandler(sched *scheduling.ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id", "invalid_rule_id")
		if !ok {
			return
		}

		if err := sched.DeactivateRule(r.Context(), id); err != nil {
			writeSchedulingError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Unavailability periods

func listPeriodsHandler(sched *scheduling.ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathUUID(w, r, "id", "invalid_doctor_id")
		if !ok {
			return
		}

		periods, err := sched.ListPeriods(r.Context(), doctorID)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		resp := make([]PeriodResponse, 0, len(periods))
		for _, p := range periods {
			resp = append(resp, toPeriodResponse(p))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createPeriodHandler(sched *scheduling.ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathUUID(w, r, "id", "invalid_doctor_id")
		if !ok {
			return
		}

		var req PeriodRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		period, ok := periodFromRequest(w, req, doctorID)
		if !ok {
			return
		}

		if err := sched.CreatePeriod(r.Context(), period); err != nil {
			writeSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPeriodResponse(*period))
	}
}

func updatePeriodHandler(sched *scheduling.ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id", "invalid_period_id")
		if !ok {
			return
		}

		var req PeriodRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		// Doctor ownership never changes on update; carried from the row.
		existing, err := sched.GetPeriod(r.Context(), id)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		period, ok := periodFromRequest(w, req, existing.DoctorID)
		if !ok {
			return
		}
		period.ID = id
		period.Active = existing.Active

		if err := sched.UpdatePeriod(r.Context(), period); err != nil {
			writeSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPeriodResponse(*period))
	}
}

func deletePeriodHandler(sched *scheduling.ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id", "invalid_period_id")
		if !ok {
			return
		}

		if err := sched.DeletePeriod(r.Context(), id); err != nil {
			writeSchedulingError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Helpers

func pathUUID(w http.ResponseWriter, r *http.Request, param, errCode string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, errCode, param+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryDate(w http.ResponseWriter, r *http.Request, loc *time.Location) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required (YYYY-MM-DD)")
		return time.Time{}, false
	}
	date, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func queryMinutes(w http.ResponseWriter, r *http.Request, param string) (int, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_"+param, param+" must be a positive number of minutes")
		return 0, false
	}
	return n, true
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return false
	}
	return true
}

func periodFromRequest(w http.ResponseWriter, req PeriodRequest, doctorID uuid.UUID) (*scheduling.UnavailabilityPeriod, bool) {
	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start_date", "start_date must be YYYY-MM-DD")
		return nil, false
	}

	period := scheduling.UnavailabilityPeriod{
		DoctorID:  doctorID,
		StartDate: startDate,
		Reason:    req.Reason,
		Active:    true,
	}
	if req.EndDate != nil {
		endDate, err := time.Parse(dateLayout, *req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_date", "end_date must be YYYY-MM-DD")
			return nil, false
		}
		period.EndDate = &endDate
	}
	return &period, true
}

func toBookingResponse(b *scheduling.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		DoctorID:        b.DoctorID,
		PatientID:       b.PatientID,
		Kind:            string(b.Kind),
		StartAt:         b.StartAt,
		DurationMinutes: b.DurationMinutes,
		Status:          string(b.Status),
		ServiceID:       b.ServiceID,
	}
}

func toRuleResponse(rule scheduling.WeeklyRule) RuleResponse {
	return RuleResponse{
		ID:        rule.ID,
		DoctorID:  rule.DoctorID,
		Weekday:   int(rule.Weekday),
		StartTime: scheduling.FormatClock(rule.StartMinute),
		EndTime:   scheduling.FormatClock(rule.EndMinute),
		Active:    rule.Active,
	}
}

func toPeriodResponse(p scheduling.UnavailabilityPeriod) PeriodResponse {
	resp := PeriodResponse{
		ID:        p.ID,
		DoctorID:  p.DoctorID,
		StartDate: p.StartDate.Format(dateLayout),
		Reason:    p.Reason,
		Active:    p.Active,
	}
	if p.EndDate != nil {
		s := p.EndDate.Format(dateLayout)
		resp.EndDate = &s
	}
	return resp
}

func writeSchedulingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	case errors.Is(err, scheduling.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, scheduling.ErrOutsideAvailability):
		writeError(w, http.StatusConflict, "outside_availability", err.Error())
	case errors.Is(err, scheduling.ErrDoctorUnavailable):
		writeError(w, http.StatusConflict, "doctor_unavailable", err.Error())
	case errors.Is(err, scheduling.ErrBookingTerminal):
		writeError(w, http.StatusConflict, "booking_terminal", err.Error())
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, scheduling.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, "rule_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPeriodNotFound):
		writeError(w, http.StatusNotFound, "period_not_found", err.Error())
	case errors.Is(err, scheduling.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
