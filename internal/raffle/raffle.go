package raffle

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ayobamihybrid/Daffy/internal/assets"
	"github.com/ayobamihybrid/Daffy/internal/events"
	"github.com/ayobamihybrid/Daffy/internal/logger"
	"github.com/ayobamihybrid/Daffy/internal/oracle"
	"github.com/ayobamihybrid/Daffy/internal/payments"
)

type Status uint8

const (
	StatusInactive Status = iota
	StatusActive
	StatusCalculating
	StatusEnded
	StatusDeleted
)

func (s Status) String() string {
	switch s {
	case StatusInactive:
		return "Inactive"
	case StatusActive:
		return "Active"
	case StatusCalculating:
		return "Calculating"
	case StatusEnded:
		return "Ended"
	case StatusDeleted:
		return "Deleted"
	}
	return "Unknown"
}

// Prize references one custodied non-fungible asset.
type Prize struct {
	Collection common.Address
	TokenID    *big.Int
}

// Store receives a full snapshot after every accepted mutation. Persistence is
// write-behind: a storage error is logged, in-memory state stays the truth.
type Store interface {
	SaveRaffle(snapshot *Snapshot) error
}

// Snapshot is the durable image of one raffle.
type Snapshot struct {
	ID              string
	Name            string
	Creator         common.Address
	Escrow          common.Address
	Platform        common.Address
	Status          Status
	TicketPrice     *big.Int
	CreatorSharePct uint8
	PlatformFeePct  uint8
	Description     string
	Tags            []string
	Players         []common.Address
	Tickets         map[common.Address]uint64
	TotalTickets    uint64
	Prizes          []Prize
	Balance         *big.Int
	RequestID       uint64
	RequestMade     bool
	Winner          common.Address
	HasWinner       bool
	CreatedAt       time.Time
}

// Params fixes a raffle's identity and policy at creation time.
type Params struct {
	ID                 string
	Name               string
	Creator            common.Address
	Operator           common.Address
	Platform           common.Address
	TicketPrice        *big.Int
	CreatorSharePct    uint8
	PlatformFeePct     uint8
	MaxTicketPrice     *big.Int
	MaxCreatorSharePct uint8
	Description        string
	Tags               []string
	OracleConfig       oracle.Config
	CreatedAt          time.Time
}

// Dependencies are the external collaborators a raffle settles through.
type Dependencies struct {
	Assets assets.Registry
	Oracle oracle.Oracle
	Bank   payments.Bank
	Sink   events.Sink
	Store  Store
}

// Raffle is the state machine for one ticket-sale/prize-custody unit.
//
// Lifecycle: Inactive -> Active (prizes attached, activated by the registry),
// Active -> Calculating (randomness requested), Calculating -> Ended (matching
// callback settles), Inactive -> Deleted (creator cancel or registry expiry).
// A single mutex serializes every mutating entry point; the randomness
// callback re-enters the machine on the oracle's schedule.
type Raffle struct {
	mu sync.Mutex

	id        string
	name      string
	creator   common.Address
	operator  common.Address
	platform  common.Address
	escrow    common.Address
	createdAt time.Time

	status          Status
	ticketPrice     *big.Int
	creatorSharePct uint8
	platformFeePct  uint8
	maxTicketPrice  *big.Int
	maxSharePct     uint8
	description     string
	tags            []string

	// players holds one entry per buyer, appended on their first purchase
	// only. The winner index runs over this sequence, so odds are uniform
	// per distinct buyer regardless of ticket count.
	players      []common.Address
	tickets      map[common.Address]uint64
	totalTickets uint64

	prizes  []Prize
	balance *big.Int

	requestID   uint64
	requestMade bool
	randomWords []*big.Int
	winner      common.Address
	hasWinner   bool

	oracleCfg oracle.Config
	deps      Dependencies
}

// EscrowAddress derives the custody address a raffle holds assets under.
func EscrowAddress(id string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("daffy/escrow/" + id))[12:])
}

func New(params Params, deps Dependencies) *Raffle {
	return &Raffle{
		id:              params.ID,
		name:            params.Name,
		creator:         params.Creator,
		operator:        params.Operator,
		platform:        params.Platform,
		escrow:          EscrowAddress(params.ID),
		createdAt:       params.CreatedAt,
		status:          StatusInactive,
		ticketPrice:     new(big.Int).Set(params.TicketPrice),
		creatorSharePct: params.CreatorSharePct,
		platformFeePct:  params.PlatformFeePct,
		maxTicketPrice:  new(big.Int).Set(params.MaxTicketPrice),
		maxSharePct:     params.MaxCreatorSharePct,
		description:     params.Description,
		tags:            append([]string(nil), params.Tags...),
		tickets:         make(map[common.Address]uint64),
		balance:         new(big.Int),
		oracleCfg:       params.OracleConfig,
		deps:            deps,
	}
}

// Restore rebuilds a raffle from its durable snapshot. An instance restored in
// Calculating stays there until a matching callback arrives.
func Restore(snapshot *Snapshot, params Params, deps Dependencies) *Raffle {
	r := New(params, deps)
	r.id = snapshot.ID
	r.name = snapshot.Name
	r.creator = snapshot.Creator
	r.escrow = snapshot.Escrow
	r.platform = snapshot.Platform
	r.createdAt = snapshot.CreatedAt
	r.status = snapshot.Status
	r.ticketPrice = new(big.Int).Set(snapshot.TicketPrice)
	r.creatorSharePct = snapshot.CreatorSharePct
	r.platformFeePct = snapshot.PlatformFeePct
	r.description = snapshot.Description
	r.tags = append([]string(nil), snapshot.Tags...)
	r.players = append([]common.Address(nil), snapshot.Players...)
	r.tickets = make(map[common.Address]uint64, len(snapshot.Tickets))
	for buyer, count := range snapshot.Tickets {
		r.tickets[buyer] = count
	}
	r.totalTickets = snapshot.TotalTickets
	r.prizes = clonePrizes(snapshot.Prizes)
	r.balance = new(big.Int).Set(snapshot.Balance)
	r.requestID = snapshot.RequestID
	r.requestMade = snapshot.RequestMade
	r.winner = snapshot.Winner
	r.hasWinner = snapshot.HasWinner
	return r
}

// BuyTicket escrows the payment and credits the buyer. The paid amount must be
// exactly price times quantity; nothing is refunded before settlement.
func (r *Raffle) BuyTicket(buyer common.Address, quantity uint64, paid *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusActive {
		return ErrWrongState
	}
	if quantity < 1 || paid == nil {
		return ErrInvalidParameters
	}

	expected := new(big.Int).Mul(r.ticketPrice, new(big.Int).SetUint64(quantity))
	if paid.Cmp(expected) != 0 {
		return ErrIncorrectPayment
	}

	if r.tickets[buyer] == 0 {
		r.players = append(r.players, buyer)
	}
	r.tickets[buyer] += quantity
	r.totalTickets += quantity
	r.balance.Add(r.balance, paid)

	r.persistLocked()
	r.emit(events.Event{
		Op:       events.TicketPurchased,
		RaffleID: r.id,
		Actor:    buyer.Hex(),
		Amount:   paid.String(),
		Quantity: quantity,
	})
	return nil
}

// AddPrize attaches a custodied asset. Registry-only, Inactive-only; the
// raffle must already hold the asset.
func (r *Raffle) AddPrize(ctx context.Context, caller, collection common.Address, tokenID *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.operator {
		return ErrNotAuthorized
	}
	if r.status != StatusInactive {
		return ErrWrongState
	}

	owner, err := r.deps.Assets.OwnerOf(ctx, collection, tokenID)
	if err != nil {
		return errors.Wrapf(ErrAssetNotHeld, "looking up owner: %v", err)
	}
	if owner != r.escrow {
		return ErrAssetNotHeld
	}

	r.prizes = append(r.prizes, Prize{Collection: collection, TokenID: new(big.Int).Set(tokenID)})

	r.persistLocked()
	r.emit(events.Event{
		Op:         events.PrizeAdded,
		RaffleID:   r.id,
		Actor:      caller.Hex(),
		Collection: collection.Hex(),
		AssetID:    tokenID.String(),
	})
	return nil
}

// Activate opens ticket sales. Registry-only; the sole producer of Active.
func (r *Raffle) Activate(caller common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.operator {
		return ErrNotAuthorized
	}
	if r.status != StatusInactive {
		return ErrWrongState
	}
	if len(r.prizes) == 0 {
		return ErrNoPrizes
	}

	r.status = StatusActive

	r.persistLocked()
	r.emit(events.Event{
		Op:       events.RaffleActivated,
		RaffleID: r.id,
		Actor:    caller.Hex(),
	})
	return nil
}

// RequestDraw submits the randomness request and moves to Calculating. It
// returns as soon as the request is accepted; the callback arrives later.
func (r *Raffle) RequestDraw(ctx context.Context) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusActive {
		return 0, ErrWrongState
	}

	r.status = StatusCalculating

	requestID, err := r.deps.Oracle.SubmitRequest(ctx, r.oracleCfg, r)
	if err != nil {
		r.status = StatusActive
		return 0, errors.Wrap(err, "raffle: submitting randomness request")
	}

	r.requestID = requestID
	r.requestMade = true

	r.persistLocked()
	r.emit(events.Event{
		Op:        events.DrawRequested,
		RaffleID:  r.id,
		RequestID: requestID,
	})
	return requestID, nil
}

// OnRandomnessDelivered is the oracle callback. A request id that does not
// match the single outstanding request is rejected outright, so stale or
// duplicate deliveries cannot touch state.
func (r *Raffle) OnRandomnessDelivered(requestID uint64, words []*big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusCalculating || !r.requestMade || requestID != r.requestID {
		logger.Warn("raffle: rejecting randomness callback",
			zap.String("raffle", r.id),
			zap.Uint64("got", requestID),
			zap.Uint64("want", r.requestID))
		return ErrWrongRequestID
	}
	if len(words) == 0 {
		return ErrInvalidPick
	}

	r.randomWords = words
	return r.settleLocked(words)
}

// settleLocked picks the winner and pays everyone in one step. On any transfer
// failure the raffle stays in Calculating; there is no partial retry.
func (r *Raffle) settleLocked(words []*big.Int) error {
	if len(r.players) == 0 {
		return ErrInvalidPick
	}

	index := new(big.Int).Mod(words[0], big.NewInt(int64(len(r.players)))).Int64()
	winner := r.players[index]

	balance := new(big.Int).Set(r.balance)
	fee := percentOf(balance, r.platformFeePct)
	creatorShare := percentOf(balance, r.creatorSharePct)
	winnerAmount := new(big.Int).Sub(balance, fee)
	winnerAmount.Sub(winnerAmount, creatorShare)

	ctx := context.Background()

	if err := r.deps.Bank.Pay(ctx, r.platform, fee); err != nil {
		return errors.Wrapf(ErrTransferFailed, "platform fee: %v", err)
	}
	if err := r.deps.Bank.Pay(ctx, r.creator, creatorShare); err != nil {
		return errors.Wrapf(ErrTransferFailed, "creator share: %v", err)
	}
	if err := r.deps.Bank.Pay(ctx, winner, winnerAmount); err != nil {
		return errors.Wrapf(ErrTransferFailed, "winner payout: %v", err)
	}

	for _, prize := range r.prizes {
		if err := r.deps.Assets.Transfer(ctx, prize.Collection, prize.TokenID, r.escrow, winner); err != nil {
			return errors.Wrapf(ErrTransferFailed, "awarding prize %s/%s: %v",
				prize.Collection.Hex(), prize.TokenID.String(), err)
		}
		r.emit(events.Event{
			Op:         events.PrizeAwarded,
			RaffleID:   r.id,
			Collection: prize.Collection.Hex(),
			AssetID:    prize.TokenID.String(),
			Winner:     winner.Hex(),
		})
	}

	r.winner = winner
	r.hasWinner = true
	r.balance = new(big.Int)
	r.status = StatusEnded

	r.persistLocked()
	r.emit(events.Event{
		Op:       events.WinnerSelected,
		RaffleID: r.id,
		Winner:   winner.Hex(),
		Amount:   winnerAmount.String(),
	})
	return nil
}

// Cancel returns every held prize to the creator and deletes the raffle.
// Creator-only, Inactive-only, so no ticket money can be stranded.
func (r *Raffle) Cancel(ctx context.Context, caller common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.creator {
		return ErrNotAuthorized
	}
	if r.status != StatusInactive {
		return ErrWrongState
	}

	for _, prize := range r.prizes {
		if err := r.deps.Assets.Transfer(ctx, prize.Collection, prize.TokenID, r.escrow, r.creator); err != nil {
			return errors.Wrapf(ErrTransferFailed, "returning prize %s/%s: %v",
				prize.Collection.Hex(), prize.TokenID.String(), err)
		}
	}

	r.prizes = nil
	r.status = StatusDeleted

	r.persistLocked()
	r.emit(events.Event{
		Op:       events.RaffleCancelled,
		RaffleID: r.id,
		Actor:    caller.Hex(),
	})
	return nil
}

// Expire deletes a never-activated raffle. The registry decides eligibility
// (activation window elapsed); this only performs the transition.
func (r *Raffle) Expire(caller common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.operator && caller != r.creator {
		return ErrNotAuthorized
	}
	if r.status != StatusInactive || len(r.prizes) > 0 {
		return ErrWrongState
	}

	r.status = StatusDeleted

	r.persistLocked()
	r.emit(events.Event{
		Op:       events.RaffleExpired,
		RaffleID: r.id,
		Actor:    caller.Hex(),
	})
	return nil
}

// SetTicketPrice updates the unit price. Creator-only, Inactive-only, same
// bound as creation-time validation.
func (r *Raffle) SetTicketPrice(caller common.Address, price *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.creator {
		return ErrNotAuthorized
	}
	if r.status != StatusInactive {
		return ErrWrongState
	}
	if price == nil || price.Sign() < 0 || price.Cmp(r.maxTicketPrice) > 0 {
		return ErrInvalidParameters
	}

	r.ticketPrice = new(big.Int).Set(price)

	r.persistLocked()
	r.emit(events.Event{
		Op:       events.TicketPriceSet,
		RaffleID: r.id,
		Actor:    caller.Hex(),
		Amount:   price.String(),
	})
	return nil
}

// SetCreatorShare updates the creator's settlement percentage.
func (r *Raffle) SetCreatorShare(caller common.Address, pct uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.creator {
		return ErrNotAuthorized
	}
	if r.status != StatusInactive {
		return ErrWrongState
	}
	if pct > r.maxSharePct {
		return ErrInvalidParameters
	}

	r.creatorSharePct = pct

	r.persistLocked()
	r.emit(events.Event{
		Op:       events.PrizeSplitSet,
		RaffleID: r.id,
		Actor:    caller.Hex(),
		Quantity: uint64(pct),
	})
	return nil
}

// SetDescription is creator-only and allowed in any state.
func (r *Raffle) SetDescription(caller common.Address, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.creator {
		return ErrNotAuthorized
	}

	r.description = description

	r.persistLocked()
	r.emit(events.Event{
		Op:       events.DescriptionSet,
		RaffleID: r.id,
		Actor:    caller.Hex(),
	})
	return nil
}

// SetTags is creator-only and allowed in any state.
func (r *Raffle) SetTags(caller common.Address, tags []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.creator {
		return ErrNotAuthorized
	}

	r.tags = append([]string(nil), tags...)

	r.persistLocked()
	r.emit(events.Event{
		Op:       events.TagsSet,
		RaffleID: r.id,
		Actor:    caller.Hex(),
	})
	return nil
}

// Save persists the current snapshot. The registry calls it once at creation.
func (r *Raffle) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deps.Store == nil {
		return nil
	}
	return r.deps.Store.SaveRaffle(r.snapshotLocked())
}

func (r *Raffle) ID() string              { return r.id }
func (r *Raffle) Name() string            { return r.name }
func (r *Raffle) Creator() common.Address { return r.creator }
func (r *Raffle) Escrow() common.Address  { return r.escrow }
func (r *Raffle) CreatedAt() time.Time    { return r.createdAt }

func (r *Raffle) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Raffle) TicketPrice() *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return new(big.Int).Set(r.ticketPrice)
}

func (r *Raffle) CreatorSharePct() uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creatorSharePct
}

func (r *Raffle) Description() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.description
}

func (r *Raffle) Tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tags...)
}

func (r *Raffle) Players() []common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]common.Address(nil), r.players...)
}

func (r *Raffle) TicketsOf(buyer common.Address) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tickets[buyer]
}

func (r *Raffle) TotalTickets() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalTickets
}

func (r *Raffle) Prizes() []Prize {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clonePrizes(r.prizes)
}

func (r *Raffle) Balance() *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return new(big.Int).Set(r.balance)
}

// Winner reports the settled winner, if any.
func (r *Raffle) Winner() (common.Address, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.winner, r.hasWinner
}

// Snapshot captures the full durable state under the instance lock.
func (r *Raffle) Snapshot() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Raffle) snapshotLocked() *Snapshot {
	tickets := make(map[common.Address]uint64, len(r.tickets))
	for buyer, count := range r.tickets {
		tickets[buyer] = count
	}
	return &Snapshot{
		ID:              r.id,
		Name:            r.name,
		Creator:         r.creator,
		Escrow:          r.escrow,
		Platform:        r.platform,
		Status:          r.status,
		TicketPrice:     new(big.Int).Set(r.ticketPrice),
		CreatorSharePct: r.creatorSharePct,
		PlatformFeePct:  r.platformFeePct,
		Description:     r.description,
		Tags:            append([]string(nil), r.tags...),
		Players:         append([]common.Address(nil), r.players...),
		Tickets:         tickets,
		TotalTickets:    r.totalTickets,
		Prizes:          clonePrizes(r.prizes),
		Balance:         new(big.Int).Set(r.balance),
		RequestID:       r.requestID,
		RequestMade:     r.requestMade,
		Winner:          r.winner,
		HasWinner:       r.hasWinner,
		CreatedAt:       r.createdAt,
	}
}

func (r *Raffle) persistLocked() {
	if r.deps.Store == nil {
		return
	}
	if err := r.deps.Store.SaveRaffle(r.snapshotLocked()); err != nil {
		logger.Error("raffle: persisting snapshot failed", zap.String("raffle", r.id), zap.Error(err))
	}
}

func (r *Raffle) emit(event events.Event) {
	if r.deps.Sink == nil {
		return
	}
	r.deps.Sink.Emit(events.Stamp(event))
}

func percentOf(amount *big.Int, pct uint8) *big.Int {
	result := new(big.Int).Mul(amount, big.NewInt(int64(pct)))
	return result.Div(result, big.NewInt(100))
}

func clonePrizes(prizes []Prize) []Prize {
	result := make([]Prize, 0, len(prizes))
	for _, prize := range prizes {
		result = append(result, Prize{Collection: prize.Collection, TokenID: new(big.Int).Set(prize.TokenID)})
	}
	return result
}
