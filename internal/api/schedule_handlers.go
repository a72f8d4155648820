package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/staff-scheduler/internal/models"
)

// ListSchedules accepts ?userId=&from=&to=. Without a range it returns the current month.
func (h *Handler) ListSchedules(c *gin.Context) {
	from, valid := h.queryDate(c, "from")
	if !valid {
		return
	}
	to, valid := h.queryDate(c, "to")
	if !valid {
		return
	}

	shifts, err := h.svc.ListSchedules(c.Request.Context(), currentUserID(c), c.Query("userId"), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shifts)
}

func (h *Handler) CreateSchedule(c *gin.Context) {
	var req models.ScheduleRequest
	if !h.bind(c, &req) {
		return
	}

	shift, err := h.svc.CreateSchedule(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, shift)
}

func (h *Handler) UpdateSchedule(c *gin.Context) {
	var req models.ScheduleRequest
	if !h.bind(c, &req) {
		return
	}

	shift, err := h.svc.UpdateSchedule(c.Request.Context(), currentUserID(c), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shift)
}

func (h *Handler) DeleteSchedule(c *gin.Context) {
	if err := h.svc.DeleteSchedule(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "Schedule deleted")
}

func (h *Handler) BulkAssign(c *gin.Context) {
	var req models.BulkAssignRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.svc.BulkAssign(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// CheckSchedule runs the conflict checker without creating anything
func (h *Handler) CheckSchedule(c *gin.Context) {
	var req models.ScheduleRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.svc.CheckSchedule(c.Request.Context(), currentUserID(c), req); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "No conflicts")
}

func (h *Handler) MonthCalendar(c *gin.Context) {
	year, valid := h.paramInt(c, "year")
	if !valid {
		return
	}
	month, valid := h.paramInt(c, "month")
	if !valid {
		return
	}

	cal, err := h.svc.MonthCalendar(c.Request.Context(), currentUserID(c), c.Query("userId"), year, month)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cal)
}

func (h *Handler) ListUnavailability(c *gin.Context) {
	from, valid := h.queryDate(c, "from")
	if !valid {
		return
	}
	to, valid := h.queryDate(c, "to")
	if !valid {
		return
	}

	entries, err := h.svc.ListUnavailability(c.Request.Context(), currentUserID(c), c.Query("userId"), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) AddUnavailability(c *gin.Context) {
	var req models.UnavailabilityRequest
	if !h.bind(c, &req) {
		return
	}

	entry, err := h.svc.AddUnavailability(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *Handler) DeleteUnavailability(c *gin.Context) {
	if err := h.svc.DeleteUnavailability(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "Unavailability removed")
}

func (h *Handler) ListRestrictedDays(c *gin.Context) {
	year, valid := h.queryInt(c, "year", 0)
	if !valid {
		return
	}

	days, err := h.svc.ListRestrictedDays(c.Request.Context(), currentUserID(c), year)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, days)
}

func (h *Handler) AddRestrictedDay(c *gin.Context) {
	var req models.RestrictedDayRequest
	if !h.bind(c, &req) {
		return
	}

	day, err := h.svc.AddRestrictedDay(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, day)
}

func (h *Handler) DeleteRestrictedDay(c *gin.Context) {
	if err := h.svc.DeleteRestrictedDay(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "Restricted day removed")
}

func (h *Handler) ListRequirements(c *gin.Context) {
	year, valid := h.queryInt(c, "year", 0)
	if !valid {
		return
	}

	reqs, err := h.svc.ListRequirements(c.Request.Context(), currentUserID(c), year)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (h *Handler) SetRequirement(c *gin.Context) {
	var req models.SetRequirementRequest
	if !h.bind(c, &req) {
		return
	}

	saved, err := h.svc.SetRequirement(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) Summarize(c *gin.Context) {
	year, valid := h.queryInt(c, "year", 0)
	if !valid {
		return
	}
	month, valid := h.queryInt(c, "month", 0)
	if !valid {
		return
	}

	summary, err := h.svc.Summarize(c.Request.Context(), currentUserID(c), c.Query("userId"), year, month)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) AttendanceReport(c *gin.Context) {
	year, valid := h.queryInt(c, "year", 0)
	if !valid {
		return
	}
	month, valid := h.queryInt(c, "month", 0)
	if !valid {
		return
	}

	report, err := h.svc.AttendanceReport(c.Request.Context(), currentUserID(c), year, month)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
