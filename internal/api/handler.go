package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"flight-booking-service/internal/service"
	"flight-booking-service/internal/store"
	"flight-booking-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	searchService    *service.SearchService
	bookingService   *service.BookingService
	inventoryService *service.InventoryService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	searchService *service.SearchService,
	bookingService *service.BookingService,
	inventoryService *service.InventoryService,
) *Handler {
	return &Handler{
		searchService:    searchService,
		bookingService:   bookingService,
		inventoryService: inventoryService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/airports", h.listAirports)
		v1.GET("/itineraries", h.searchItineraries)
		v1.GET("/flights/:id/seats", h.occupiedSeats)

		authed := v1.Group("")
		authed.Use(requirePrincipal())
		{
			authed.POST("/reservations", h.createReservation)
			authed.GET("/reservations", h.listReservations)
			authed.GET("/reservations/:id", h.getReservation)
			authed.POST("/reservations/:id/pay", h.payReservation)
			authed.DELETE("/reservations/:id", h.cancelReservation)
			authed.PUT("/tickets/:id", h.editTicket)
			authed.PUT("/tickets/:id/seat", h.changeSeat)
			authed.PUT("/admin/inventories/:id", h.setSeatsOffered)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listAirports returns all airports for search forms
func (h *Handler) listAirports(c *gin.Context) {
	airports, err := h.searchService.ListAirports(c.Request.Context())
	if err != nil {
		writeError(c, err, "Failed to list airports")
		return
	}
	c.JSON(http.StatusOK, gin.H{"airports": airports})
}

// searchItineraries handles itinerary search with optional filters
func (h *Handler) searchItineraries(c *gin.Context) {
	var query service.SearchQuery

	if v := c.Query("origin_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid origin_id"})
			return
		}
		query.OriginID = &id
	}
	if v := c.Query("destination_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid destination_id"})
			return
		}
		query.DestinationID = &id
	}
	if v := c.Query("date"); v != "" {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
			return
		}
		query.EarliestDate = &day
	}
	query.Page = parsePage(c)

	result, err := h.searchService.Search(c.Request.Context(), query)
	if err != nil {
		writeError(c, err, "Search failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

// occupiedSeats lists taken seat numbers on a flight, optionally ignoring
// one ticket so its holder can see which moves are open
func (h *Handler) occupiedSeats(c *gin.Context) {
	flightID, ok := paramID(c)
	if !ok {
		return
	}

	var excludeTicketID int64
	if v := c.Query("exclude_ticket_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid exclude_ticket_id"})
			return
		}
		excludeTicketID = id
	}

	seats, err := h.inventoryService.OccupiedSeats(c.Request.Context(), flightID, excludeTicketID)
	if err != nil {
		writeError(c, err, "Failed to list occupied seats")
		return
	}

	availability, err := h.inventoryService.ClassAvailability(c.Request.Context(), flightID)
	if err != nil {
		writeError(c, err, "Failed to load availability")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"flight_id":      flightID,
		"occupied_seats": seats,
		"classes":        availability,
	})
}

// createReservation books an itinerary for the caller
func (h *Handler) createReservation(c *gin.Context) {
	var req service.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	detail, err := h.bookingService.CreateReservation(c.Request.Context(), principal(c), &req)
	if err != nil {
		writeError(c, err, "Failed to create reservation")
		return
	}
	c.JSON(http.StatusCreated, detail)
}

// listReservations returns one page of the caller's reservations
func (h *Handler) listReservations(c *gin.Context) {
	var req service.ListReservationsRequest
	req.Page = parsePage(c)
	req.IncludePast = c.Query("include_past") == "true"

	if v := c.Query("date_from"); v != "" {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date_from, expected YYYY-MM-DD"})
			return
		}
		req.DateFrom = &day
	}
	if v := c.Query("date_to"); v != "" {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date_to, expected YYYY-MM-DD"})
			return
		}
		// inclusive upper bound on a calendar day
		end := day.Add(24*time.Hour - time.Nanosecond)
		req.DateTo = &end
	}

	result, err := h.bookingService.ListMyReservations(c.Request.Context(), principal(c), req)
	if err != nil {
		writeError(c, err, "Failed to list reservations")
		return
	}
	c.JSON(http.StatusOK, result)
}

// getReservation returns a reservation with tickets and refund advisory
func (h *Handler) getReservation(c *gin.Context) {
	reservationID, ok := paramID(c)
	if !ok {
		return
	}

	detail, err := h.bookingService.GetReservation(c.Request.Context(), reservationID, principal(c))
	if err != nil {
		writeError(c, err, "Failed to load reservation")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// payReservation marks a reservation as paid
func (h *Handler) payReservation(c *gin.Context) {
	reservationID, ok := paramID(c)
	if !ok {
		return
	}

	reservation, err := h.bookingService.Pay(c.Request.Context(), reservationID, principal(c))
	if err != nil {
		writeError(c, err, "Failed to pay reservation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservation": reservation})
}

// cancelReservation deletes a reservation, releasing its seats
func (h *Handler) cancelReservation(c *gin.Context) {
	reservationID, ok := paramID(c)
	if !ok {
		return
	}

	if err := h.bookingService.Cancel(c.Request.Context(), reservationID, principal(c)); err != nil {
		writeError(c, err, "Failed to cancel reservation")
		return
	}
	c.Status(http.StatusNoContent)
}

type editTicketRequest struct {
	InventoryID int64  `json:"inventory_id" binding:"required"`
	SeatNumber  string `json:"seat_number" binding:"required"`
}

// editTicket changes a ticket's class and seat while pending
func (h *Handler) editTicket(c *gin.Context) {
	ticketID, ok := paramID(c)
	if !ok {
		return
	}

	var req editTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	detail, err := h.bookingService.EditTicket(c.Request.Context(), ticketID, principal(c), req.InventoryID, req.SeatNumber)
	if err != nil {
		writeError(c, err, "Failed to edit ticket")
		return
	}
	c.JSON(http.StatusOK, detail)
}

type changeSeatRequest struct {
	SeatNumber string `json:"seat_number" binding:"required"`
}

// changeSeat reassigns a ticket's seat at any payment status
func (h *Handler) changeSeat(c *gin.Context) {
	ticketID, ok := paramID(c)
	if !ok {
		return
	}

	var req changeSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	ticket, err := h.bookingService.ChangeSeat(c.Request.Context(), ticketID, principal(c), req.SeatNumber)
	if err != nil {
		writeError(c, err, "Failed to change seat")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

type setSeatsOfferedRequest struct {
	SeatsOffered *int `json:"seats_offered" binding:"required"`
}

// setSeatsOffered adjusts how many seats an inventory row puts on sale
func (h *Handler) setSeatsOffered(c *gin.Context) {
	inventoryID, ok := paramID(c)
	if !ok {
		return
	}

	var req setSeatsOfferedRequest
	if err := c.ShouldBindJSON(&req); err != nil || *req.SeatsOffered < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seats_offered must be a non-negative integer"})
		return
	}

	if err := h.inventoryService.SetSeatsOffered(c.Request.Context(), inventoryID, *req.SeatsOffered); err != nil {
		writeError(c, err, "Failed to update inventory")
		return
	}
	c.Status(http.StatusNoContent)
}

// requirePrincipal resolves the caller from the X-User-ID header placed by
// the gateway after authentication
func requirePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid X-User-ID header"})
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
}

func principal(c *gin.Context) int64 {
	return c.GetInt64("user_id")
}

func parsePage(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

// writeError maps store sentinel errors onto HTTP statuses
func writeError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrSoldOut),
		errors.Is(err, store.ErrSeatTaken),
		errors.Is(err, store.ErrInvalidState),
		errors.Is(err, store.ErrDuplicateRequest):
		status = http.StatusConflict
	case errors.Is(err, store.ErrCapacityExceeded):
		status = http.StatusUnprocessableEntity
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
