package scheduling

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor, auth.RoleNurse, auth.RolePatient))
	readGroup.GET("/doctors/:id/slots", h.ListSlots)
	readGroup.GET("/doctors/:id/schedule", h.GetSchedule)

	manageGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))
	manageGroup.POST("/doctors/:id/slots/generate", h.GenerateSlots)
	manageGroup.PUT("/doctors/:id/schedule", h.ReplaceSchedule)
	manageGroup.POST("/doctors/:id/blocks", h.BlockTimeSlot)
	manageGroup.DELETE("/slots/:id", h.DeleteSlot)
	manageGroup.POST("/slots/:id/block", h.BlockSlot)
	manageGroup.POST("/slots/:id/unblock", h.UnblockSlot)
}

// httpError maps domain errors onto HTTP statuses: validation failures are
// 400 with field detail, capacity and booking conflicts are 409, unknown
// IDs are 404, anything else is a 500.
func httpError(err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{
			"field":   ve.Field,
			"message": ve.Message,
		})
	case errors.Is(err, ErrSlotUnavailable):
		return echo.NewHTTPError(http.StatusConflict, "slot unavailable")
	case errors.Is(err, ErrSlotHasBookings):
		return echo.NewHTTPError(http.StatusConflict, "slot has active bookings")
	case errors.Is(err, ErrSlotNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "slot not found")
	case errors.Is(err, ErrDoctorNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type generateSlotsRequest struct {
	StartDate       Date        `json:"start_date"`
	EndDate         Date        `json:"end_date"`
	StartTime       TimeOfDay   `json:"start_time"`
	EndTime         TimeOfDay   `json:"end_time"`
	DurationMinutes int         `json:"duration_minutes"`
	BreakStart      *TimeOfDay  `json:"break_start,omitempty"`
	BreakEnd        *TimeOfDay  `json:"break_end,omitempty"`
	Days            []DayOfWeek `json:"days,omitempty"`
}

func (h *Handler) GenerateSlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	var req generateSlotsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.svc.GenerateSlots(c.Request().Context(), doctorID, GenerateParams{
		From:            req.StartDate,
		To:              req.EndDate,
		Start:           req.StartTime,
		End:             req.EndTime,
		DurationMinutes: req.DurationMinutes,
		BreakStart:      req.BreakStart,
		BreakEnd:        req.BreakEnd,
		Days:            req.Days,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) ListSlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}

	var from, to *Date
	if v := c.QueryParam("date"); v != "" {
		d, err := ParseDate(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		from, to = &d, &d
	} else {
		if v := c.QueryParam("date_from"); v != "" {
			d, err := ParseDate(v)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			from = &d
		}
		if v := c.QueryParam("date_to"); v != "" {
			d, err := ParseDate(v)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			to = &d
		}
	}

	slots, err := h.svc.ListSlots(c.Request().Context(), doctorID, from, to)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, slots)
}

func (h *Handler) DeleteSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid slot id")
	}
	if err := h.svc.DeleteSlot(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type replaceScheduleRequest struct {
	Rules     []*ScheduleRule `json:"rules"`
	WeekStart Date            `json:"week_start"`
	WeekEnd   Date            `json:"week_end"`
}

func (h *Handler) ReplaceSchedule(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	var req replaceScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.svc.ReplaceSchedule(c.Request().Context(), doctorID, req.Rules, req.WeekStart, req.WeekEnd)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) GetSchedule(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	rules, err := h.svc.GetSchedule(c.Request().Context(), doctorID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rules)
}

type blockTimeSlotRequest struct {
	Day   DayOfWeek `json:"day"`
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
	Notes string    `json:"notes,omitempty"`
}

func (h *Handler) BlockTimeSlot(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	var req blockTimeSlotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	slots, err := h.svc.BlockTimeSlot(c.Request().Context(), doctorID, req.Day, req.Start, req.End, req.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, slots)
}

func (h *Handler) BlockSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid slot id")
	}
	slot, err := h.svc.BlockSlot(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, slot)
}

func (h *Handler) UnblockSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid slot id")
	}
	slot, err := h.svc.UnblockSlot(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, slot)
}
