package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	reviewapp "staybook/internal/app/handlers/reviews"
	"staybook/internal/app/queries"
)

type ReviewHTTP interface {
	List(c *gin.Context)
	Submit(c *gin.Context)
	Eligibility(c *gin.Context)
}

type ReviewHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type submitReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h ReviewHandler) List(c *gin.Context) {
	limit, err := optionalInt(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
		return
	}
	offset, err := optionalInt(c.Query("offset"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a number"})
		return
	}
	result, err := queries.Ask[reviewapp.ListReviewsQuery, dto.ReviewCollection](c.Request.Context(), h.Queries, reviewapp.ListReviewsQuery{
		PropertyID: c.Param("id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ReviewHandler) Submit(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req submitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	result, err := commands.Dispatch[reviewapp.SubmitReviewCommand, dto.SubmittedReview](c.Request.Context(), h.Commands, reviewapp.SubmitReviewCommand{
		PropertyID: c.Param("id"),
		GuestID:    user.ID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h ReviewHandler) Eligibility(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	result, err := queries.Ask[reviewapp.CanReviewQuery, dto.ReviewEligibility](c.Request.Context(), h.Queries, reviewapp.CanReviewQuery{
		PropertyID: c.Param("id"),
		GuestID:    user.ID,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func optionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

var _ ReviewHTTP = ReviewHandler{}
