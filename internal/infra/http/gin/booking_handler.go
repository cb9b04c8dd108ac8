package ginserver

import (
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/queries"
	"staybook/internal/domain/shared/daterange"
)

type BookingHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Cancel(c *gin.Context)
}

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type priceRequest struct {
	Currency string `json:"currency"`
	Nightly  int64  `json:"nightly"`
	Base     int64  `json:"base"`
	Total    int64  `json:"total"`
}

type contactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type createBookingRequest struct {
	PropertyID      string         `json:"property_id"`
	CheckIn         string         `json:"check_in"`
	CheckOut        string         `json:"check_out"`
	Adults          int            `json:"adults"`
	Children        int            `json:"children"`
	Price           priceRequest   `json:"price"`
	PaymentMethod   string         `json:"payment_method"`
	Contact         contactRequest `json:"guest_contact"`
	SpecialRequests string         `json:"special_requests"`
	ArrivalTime     string         `json:"arrival_time"`
}

type updateBookingRequest struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Adults   int    `json:"adults"`
	Children int    `json:"children"`
}

func (h BookingHandler) Create(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	checkIn, checkOut, err := parseStay(req.CheckIn, req.CheckOut)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		PropertyID:      req.PropertyID,
		GuestID:         user.ID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Adults:          req.Adults,
		Children:        req.Children,
		Currency:        req.Price.Currency,
		NightlyPrice:    req.Price.Nightly,
		BasePrice:       req.Price.Base,
		TotalPrice:      req.Price.Total,
		PaymentMethod:   req.PaymentMethod,
		ContactName:     req.Contact.Name,
		ContactEmail:    req.Contact.Email,
		ContactPhone:    req.Contact.Phone,
		SpecialRequests: req.SpecialRequests,
		ArrivalTime:     req.ArrivalTime,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *bookingapp.CreateBookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	result, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](c.Request.Context(), h.Queries, bookingapp.GetBookingQuery{
		BookingID:   c.Param("id"),
		RequesterID: user.ID,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Update(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req updateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	checkIn, checkOut, err := parseStay(req.CheckIn, req.CheckOut)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	result, err := commands.Dispatch[bookingapp.UpdateBookingCommand, dto.Booking](c.Request.Context(), h.Commands, bookingapp.UpdateBookingCommand{
		BookingID:   c.Param("id"),
		RequesterID: user.ID,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		Adults:      req.Adults,
		Children:    req.Children,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Cancel(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	result, err := commands.Dispatch[bookingapp.CancelBookingCommand, dto.Booking](c.Request.Context(), h.Commands, bookingapp.CancelBookingCommand{
		BookingID:   c.Param("id"),
		RequesterID: user.ID,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseStay(checkIn, checkOut string) (time.Time, time.Time, error) {
	in, err := daterange.ParseDay(checkIn)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	out, err := daterange.ParseDay(checkOut)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return in, out, nil
}

var _ BookingHTTP = BookingHandler{}
