package ginserver

import (
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookingapp "staybook/internal/app/handlers/booking"
	propertyapp "staybook/internal/app/handlers/properties"
	"staybook/internal/app/queries"
	"staybook/internal/domain/shared/daterange"
	domainuser "staybook/internal/domain/user"
)

const maxPhotoBytes = 10 << 20

type HostHTTP interface {
	ListProperties(c *gin.Context)
	CreateProperty(c *gin.Context)
	Activate(c *gin.Context)
	Deactivate(c *gin.Context)
	BlockDates(c *gin.Context)
	UnblockDates(c *gin.Context)
	UploadPhoto(c *gin.Context)
	PropertyBookings(c *gin.Context)
	SetBookingStatus(c *gin.Context)
}

type HostHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createPropertyRequest struct {
	Title    string `json:"title"`
	Inactive bool   `json:"inactive"`
}

type blockedDatesRequest struct {
	Dates []string `json:"dates"`
}

type bookingStatusRequest struct {
	Status string `json:"status"`
}

func (h HostHandler) ListProperties(c *gin.Context) {
	host, ok := requireRole(c, domainuser.RoleHost)
	if !ok {
		return
	}
	result, err := queries.Ask[propertyapp.ListHostPropertiesQuery, dto.PropertyCollection](c.Request.Context(), h.Queries, propertyapp.ListHostPropertiesQuery{OwnerID: host.ID})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h HostHandler) CreateProperty(c *gin.Context) {
	host, ok := requireRole(c, domainuser.RoleHost)
	if !ok {
		return
	}
	var req createPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	result, err := commands.Dispatch[propertyapp.CreatePropertyCommand, dto.Property](c.Request.Context(), h.Commands, propertyapp.CreatePropertyCommand{
		OwnerID:  host.ID,
		Title:    req.Title,
		Inactive: req.Inactive,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h HostHandler) Activate(c *gin.Context)   { h.setActive(c, true) }
func (h HostHandler) Deactivate(c *gin.Context) { h.setActive(c, false) }

func (h HostHandler) setActive(c *gin.Context, active bool) {
	host, ok := requireRole(c, domainuser.RoleHost)
	if !ok {
		return
	}
	result, err := commands.Dispatch[propertyapp.SetPropertyActiveCommand, dto.Property](c.Request.Context(), h.Commands, propertyapp.SetPropertyActiveCommand{
		PropertyID: c.Param("id"),
		OwnerID:    host.ID,
		Active:     active,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h HostHandler) BlockDates(c *gin.Context) {
	host, days, ok := h.bindDays(c)
	if !ok {
		return
	}
	result, err := commands.Dispatch[propertyapp.BlockDatesCommand, dto.BlockedDatesResult](c.Request.Context(), h.Commands, propertyapp.BlockDatesCommand{
		PropertyID: c.Param("id"),
		OwnerID:    host.ID,
		Days:       days,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h HostHandler) UnblockDates(c *gin.Context) {
	host, days, ok := h.bindDays(c)
	if !ok {
		return
	}
	result, err := commands.Dispatch[propertyapp.UnblockDatesCommand, dto.BlockedDatesResult](c.Request.Context(), h.Commands, propertyapp.UnblockDatesCommand{
		PropertyID: c.Param("id"),
		OwnerID:    host.ID,
		Days:       days,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h HostHandler) bindDays(c *gin.Context) (principal, []time.Time, bool) {
	host, ok := requireRole(c, domainuser.RoleHost)
	if !ok {
		return principal{}, nil, false
	}
	var req blockedDatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return principal{}, nil, false
	}
	days := make([]time.Time, 0, len(req.Dates))
	for _, raw := range req.Dates {
		day, err := daterange.ParseDay(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date " + raw})
			return principal{}, nil, false
		}
		days = append(days, day)
	}
	return host, days, true
}

// UploadPhoto expects a multipart form with a "photo" file field.
func (h HostHandler) UploadPhoto(c *gin.Context) {
	host, ok := requireRole(c, domainuser.RoleHost)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPhotoBytes)
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is unreadable"})
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	result, err := commands.Dispatch[propertyapp.UploadPropertyPhotoCommand, dto.PhotoUploadResult](c.Request.Context(), h.Commands, propertyapp.UploadPropertyPhotoCommand{
		PropertyID:  c.Param("id"),
		OwnerID:     host.ID,
		FileName:    fileHeader.Filename,
		ContentType: contentType,
		Reader:      file,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h HostHandler) PropertyBookings(c *gin.Context) {
	host, ok := requireRole(c, domainuser.RoleHost)
	if !ok {
		return
	}
	result, err := queries.Ask[bookingapp.ListPropertyBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, bookingapp.ListPropertyBookingsQuery{
		PropertyID:  c.Param("id"),
		RequesterID: host.ID,
		Status:      c.Query("status"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h HostHandler) SetBookingStatus(c *gin.Context) {
	host, ok := requireRole(c, domainuser.RoleHost)
	if !ok {
		return
	}
	var req bookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	result, err := commands.Dispatch[bookingapp.SetBookingStatusCommand, dto.Booking](c.Request.Context(), h.Commands, bookingapp.SetBookingStatusCommand{
		BookingID: c.Param("id"),
		OwnerID:   host.ID,
		Status:    req.Status,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ HostHTTP = HostHandler{}
