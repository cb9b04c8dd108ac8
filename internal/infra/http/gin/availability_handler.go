package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/dto"
	availabilityapp "staybook/internal/app/handlers/availability"
	propertyapp "staybook/internal/app/handlers/properties"
	"staybook/internal/app/queries"
)

type PropertyHTTP interface {
	Get(c *gin.Context)
}

type AvailabilityHTTP interface {
	Check(c *gin.Context)
}

type PropertyHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h PropertyHandler) Get(c *gin.Context) {
	result, err := queries.Ask[propertyapp.GetPropertyQuery, dto.Property](c.Request.Context(), h.Queries, propertyapp.GetPropertyQuery{
		PropertyID: c.Param("id"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AvailabilityHandler answers ?check_in=YYYY-MM-DD&check_out=YYYY-MM-DD. A
// malformed range is an unavailable verdict, not a 400.
type AvailabilityHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h AvailabilityHandler) Check(c *gin.Context) {
	q := availabilityapp.CheckAvailabilityQuery{
		PropertyID:       c.Param("id"),
		CheckIn:          c.Query("check_in"),
		CheckOut:         c.Query("check_out"),
		ExcludeBookingID: c.Query("exclude_booking_id"),
	}
	result, err := queries.Ask[availabilityapp.CheckAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ PropertyHTTP = PropertyHandler{}
var _ AvailabilityHTTP = AvailabilityHandler{}
