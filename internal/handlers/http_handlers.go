package handlers

import (
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/ayobamihybrid/Daffy/internal/raffle"
	"github.com/ayobamihybrid/Daffy/internal/registry"
	"github.com/ayobamihybrid/Daffy/internal/storage"
)

// callerHeader carries the caller identity. A fronting gateway is expected to
// authenticate it; the engine only checks it against stored identities.
const callerHeader = "X-Caller-Address"

// HTTPHandler exposes the registry surface and the instance entry points.
type HTTPHandler struct {
	registry *registry.Registry
	storage  storage.Storage
}

func NewHTTPHandler(reg *registry.Registry, store storage.Storage) *HTTPHandler {
	return &HTTPHandler{
		registry: reg,
		storage:  store,
	}
}

// RegisterRoutes registers all the application routes.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")

	api.POST("/raffles", h.CreateRaffle)
	api.POST("/raffles/sweep", h.SweepExpired)
	api.POST("/raffles/:id/prizes", h.AddPrizes)
	api.POST("/raffles/:id/tickets", h.BuyTicket)
	api.POST("/raffles/:id/draw", h.Draw)
	api.POST("/raffles/:id/cancel", h.Cancel)
	api.POST("/raffles/:id/expire", h.Expire)
	api.PUT("/raffles/:id/ticket-price", h.SetTicketPrice)
	api.PUT("/raffles/:id/prize-split", h.SetCreatorShare)
	api.PUT("/raffles/:id/description", h.SetDescription)
	api.PUT("/raffles/:id/tags", h.SetTags)
	api.GET("/raffles", h.ListRaffles)
	api.GET("/raffles/:id", h.GetRaffle)
	api.GET("/raffles/:id/events", h.ListEvents)
}

type createRaffleRequest struct {
	Name            string   `json:"name"`
	TicketPrice     string   `json:"ticket_price" binding:"required"`
	CreatorSharePct uint8    `json:"creator_share_pct"`
	Description     string   `json:"description"`
	Tags            []string `json:"tags"`
}

func (h *HTTPHandler) CreateRaffle(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}

	var req createRaffleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	price, ok := parseAmount(c, req.TicketPrice)
	if !ok {
		return
	}

	id, err := h.registry.Create(caller, registry.CreateParams{
		Name:            req.Name,
		TicketPrice:     price,
		CreatorSharePct: req.CreatorSharePct,
		Description:     req.Description,
		Tags:            req.Tags,
	})
	if err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type addPrizesRequest struct {
	Collections []string `json:"collections" binding:"required"`
	TokenIDs    []string `json:"token_ids" binding:"required"`
}

func (h *HTTPHandler) AddPrizes(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}

	var req addPrizesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	collections := make([]common.Address, 0, len(req.Collections))
	for _, raw := range req.Collections {
		if !common.IsHexAddress(raw) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid collection address"})
			return
		}
		collections = append(collections, common.HexToAddress(raw))
	}

	tokenIDs := make([]*big.Int, 0, len(req.TokenIDs))
	for _, raw := range req.TokenIDs {
		tokenID, ok := parseAmount(c, raw)
		if !ok {
			return
		}
		tokenIDs = append(tokenIDs, tokenID)
	}

	if err := h.registry.AddPrizes(c.Request.Context(), caller, c.Param("id"), collections, tokenIDs); err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": raffle.StatusActive.String()})
}

type buyTicketRequest struct {
	Quantity   uint64 `json:"quantity" binding:"required"`
	PaidAmount string `json:"paid_amount" binding:"required"`
}

func (h *HTTPHandler) BuyTicket(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}

	var req buyTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	paid, ok := parseAmount(c, req.PaidAmount)
	if !ok {
		return
	}

	instance, err := h.registry.Get(c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}

	if err := instance.BuyTicket(caller, req.Quantity, paid); err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tickets":       instance.TicketsOf(caller),
		"total_tickets": instance.TotalTickets(),
	})
}

func (h *HTTPHandler) Draw(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}

	requestID, err := h.registry.Draw(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"request_id": requestID})
}

func (h *HTTPHandler) Cancel(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}

	instance, err := h.registry.Get(c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}

	if err := instance.Cancel(c.Request.Context(), caller); err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": raffle.StatusDeleted.String()})
}

func (h *HTTPHandler) Expire(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}

	if err := h.registry.Expire(caller, c.Param("id")); err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) SweepExpired(c *gin.Context) {
	h.registry.SweepExpired()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type setTicketPriceRequest struct {
	TicketPrice string `json:"ticket_price" binding:"required"`
}

func (h *HTTPHandler) SetTicketPrice(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}

	var req setTicketPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	price, ok := parseAmount(c, req.TicketPrice)
	if !ok {
		return
	}

	instance, err := h.registry.Get(c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}

	if err := instance.SetTicketPrice(caller, price); err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ticket_price": price.String()})
}

type setCreatorShareRequest struct {
	CreatorSharePct uint8 `json:"creator_share_pct"`
}

func (h *HTTPHandler) SetCreatorShare(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}

	var req setCreatorShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	instance, err := h.registry.Get(c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}

	if err := instance.SetCreatorShare(caller, req.CreatorSharePct); err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"creator_share_pct": req.CreatorSharePct})
}

type setDescriptionRequest struct {
	Description string `json:"description"`
}

func (h *HTTPHandler) SetDescription(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}

	var req setDescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	instance, err := h.registry.Get(c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}

	if err := instance.SetDescription(caller, req.Description); err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type setTagsRequest struct {
	Tags []string `json:"tags"`
}

func (h *HTTPHandler) SetTags(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}

	var req setTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	instance, err := h.registry.Get(c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}

	if err := instance.SetTags(caller, req.Tags); err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) ListRaffles(c *gin.Context) {
	creatorParam := c.Query("creator")

	var listing []registry.Metadata
	if creatorParam != "" {
		if !common.IsHexAddress(creatorParam) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid creator address"})
			return
		}
		listing = h.registry.GetByCreator(common.HexToAddress(creatorParam))
	} else {
		listing = h.registry.GetAll()
	}

	result := make([]gin.H, 0, len(listing))
	for _, meta := range listing {
		result = append(result, metadataResponse(meta))
	}

	c.JSON(http.StatusOK, gin.H{"raffles": result})
}

func (h *HTTPHandler) GetRaffle(c *gin.Context) {
	instance, err := h.registry.Get(c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}

	snapshot := instance.Snapshot()

	prizes := make([]gin.H, 0, len(snapshot.Prizes))
	for _, prize := range snapshot.Prizes {
		prizes = append(prizes, gin.H{
			"collection": prize.Collection.Hex(),
			"token_id":   prize.TokenID.String(),
		})
	}

	response := gin.H{
		"id":                snapshot.ID,
		"name":              snapshot.Name,
		"creator":           snapshot.Creator.Hex(),
		"status":            snapshot.Status.String(),
		"ticket_price":      snapshot.TicketPrice.String(),
		"creator_share_pct": snapshot.CreatorSharePct,
		"description":       snapshot.Description,
		"tags":              snapshot.Tags,
		"total_tickets":     snapshot.TotalTickets,
		"participants":      len(snapshot.Players),
		"balance":           snapshot.Balance.String(),
		"prizes":            prizes,
		"created_at":        snapshot.CreatedAt,
	}
	if snapshot.HasWinner {
		response["winner"] = snapshot.Winner.Hex()
	}

	c.JSON(http.StatusOK, response)
}

func (h *HTTPHandler) ListEvents(c *gin.Context) {
	eventList, err := h.storage.ListEvents(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": eventList})
}

func metadataResponse(meta registry.Metadata) gin.H {
	return gin.H{
		"id":                meta.ID,
		"name":              meta.Name,
		"ticket_price":      meta.TicketPrice.String(),
		"creator_share_pct": meta.CreatorSharePct,
		"description":       meta.Description,
		"tags":              meta.Tags,
		"creator":           meta.Creator.Hex(),
		"created_at":        meta.CreatedAt,
		"status":            meta.Status.String(),
	}
}

func callerOf(c *gin.Context) (common.Address, bool) {
	raw := c.GetHeader(callerHeader)
	if !common.IsHexAddress(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid " + callerHeader + " header"})
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func parseAmount(c *gin.Context, raw string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount: " + raw})
		return nil, false
	}
	return amount, true
}

func abortWith(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, raffle.ErrInvalidParameters), errors.Is(err, raffle.ErrIncorrectPayment):
		return http.StatusBadRequest
	case errors.Is(err, raffle.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, registry.ErrRaffleNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrAlreadyActive),
		errors.Is(err, raffle.ErrWrongState),
		errors.Is(err, raffle.ErrNoPrizes),
		errors.Is(err, raffle.ErrWrongRequestID):
		return http.StatusConflict
	case errors.Is(err, registry.ErrAssetNotOwnedByCreator),
		errors.Is(err, raffle.ErrAssetNotHeld):
		return http.StatusUnprocessableEntity
	case errors.Is(err, raffle.ErrTransferFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
