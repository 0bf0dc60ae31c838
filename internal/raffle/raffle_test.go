package raffle

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayobamihybrid/Daffy/internal/assets"
	"github.com/ayobamihybrid/Daffy/internal/events"
	"github.com/ayobamihybrid/Daffy/internal/oracle"
	"github.com/ayobamihybrid/Daffy/internal/payments"
)

var (
	creator    = common.HexToAddress("0x1000000000000000000000000000000000000001")
	operator   = common.HexToAddress("0x1000000000000000000000000000000000000002")
	platform   = common.HexToAddress("0x1000000000000000000000000000000000000003")
	alice      = common.HexToAddress("0x2000000000000000000000000000000000000001")
	bob        = common.HexToAddress("0x2000000000000000000000000000000000000002")
	carol      = common.HexToAddress("0x2000000000000000000000000000000000000003")
	collection = common.HexToAddress("0x3000000000000000000000000000000000000001")
)

// 0.1 ether in wei.
var ticketPrice = big.NewInt(100000000000000000)

type stubOracle struct {
	nextID    uint64
	submitErr error
	consumer  oracle.Consumer
	cfg       oracle.Config
}

func (o *stubOracle) SubmitRequest(ctx context.Context, cfg oracle.Config, consumer oracle.Consumer) (uint64, error) {
	if o.submitErr != nil {
		return 0, o.submitErr
	}
	o.nextID++
	o.consumer = consumer
	o.cfg = cfg
	return o.nextID, nil
}

type failingBank struct{}

func (failingBank) Pay(ctx context.Context, to common.Address, amount *big.Int) error {
	return errors.New("rpc unavailable")
}

type captureSink struct {
	events []events.Event
}

func (s *captureSink) Emit(event events.Event) {
	s.events = append(s.events, event)
}

func (s *captureSink) ops() []string {
	result := make([]string, 0, len(s.events))
	for _, event := range s.events {
		result = append(result, event.Op)
	}
	return result
}

type fixture struct {
	raffle *Raffle
	assets *assets.MemoryRegistry
	bank   payments.Bank
	oracle *stubOracle
	sink   *captureSink
}

func newFixture(sharePct uint8, bank payments.Bank) *fixture {
	registry := assets.NewMemoryRegistry()
	if bank == nil {
		bank = payments.NewMemoryBank()
	}
	randomness := &stubOracle{}
	sink := &captureSink{}

	r := New(Params{
		ID:                 "raffle-1",
		Name:               "weekly draw",
		Creator:            creator,
		Operator:           operator,
		Platform:           platform,
		TicketPrice:        ticketPrice,
		CreatorSharePct:    sharePct,
		PlatformFeePct:     3,
		MaxTicketPrice:     new(big.Int).Mul(ticketPrice, big.NewInt(1000)),
		MaxCreatorSharePct: 80,
		OracleConfig:       oracle.Config{Words: 1, Confirmations: 3},
		CreatedAt:          time.Now(),
	}, Dependencies{
		Assets: registry,
		Oracle: randomness,
		Bank:   bank,
		Sink:   sink,
	})

	return &fixture{raffle: r, assets: registry, bank: bank, oracle: randomness, sink: sink}
}

func (f *fixture) attachPrizes(t *testing.T, tokenIDs ...int64) {
	t.Helper()
	for _, id := range tokenIDs {
		token := big.NewInt(id)
		f.assets.Mint(collection, token, f.raffle.Escrow())
		require.NoError(t, f.raffle.AddPrize(context.Background(), operator, collection, token))
	}
}

func (f *fixture) activate(t *testing.T, tokenIDs ...int64) {
	t.Helper()
	f.attachPrizes(t, tokenIDs...)
	require.NoError(t, f.raffle.Activate(operator))
}

func pay(quantity int64) *big.Int {
	return new(big.Int).Mul(ticketPrice, big.NewInt(quantity))
}

func TestBuyTicketAccounting(t *testing.T) {
	f := newFixture(10, nil)
	f.activate(t, 1)

	require.NoError(t, f.raffle.BuyTicket(alice, 1, pay(1)))
	require.NoError(t, f.raffle.BuyTicket(bob, 1, pay(1)))
	require.NoError(t, f.raffle.BuyTicket(carol, 2, pay(2)))

	assert.Equal(t, uint64(4), f.raffle.TotalTickets())
	assert.Equal(t, []common.Address{alice, bob, carol}, f.raffle.Players())
	assert.Equal(t, pay(4), f.raffle.Balance())

	// A repeat purchase raises the count but must not re-append the buyer.
	require.NoError(t, f.raffle.BuyTicket(alice, 3, pay(3)))
	assert.Equal(t, uint64(4), f.raffle.TicketsOf(alice))
	assert.Equal(t, []common.Address{alice, bob, carol}, f.raffle.Players())
	assert.Equal(t, uint64(7), f.raffle.TotalTickets())
}

func TestBuyTicketIncorrectPayment(t *testing.T) {
	f := newFixture(10, nil)
	f.activate(t, 1)

	err := f.raffle.BuyTicket(alice, 2, pay(1))
	require.ErrorIs(t, err, ErrIncorrectPayment)

	assert.Equal(t, uint64(0), f.raffle.TotalTickets())
	assert.Empty(t, f.raffle.Players())
	assert.Equal(t, int64(0), f.raffle.Balance().Int64())
}

func TestBuyTicketRequiresActive(t *testing.T) {
	f := newFixture(10, nil)

	err := f.raffle.BuyTicket(alice, 1, pay(1))
	require.ErrorIs(t, err, ErrWrongState)
}

func TestActivateRequiresPrizes(t *testing.T) {
	f := newFixture(10, nil)

	err := f.raffle.Activate(operator)
	require.ErrorIs(t, err, ErrNoPrizes)
	assert.Equal(t, StatusInactive, f.raffle.Status())
}

func TestActivateRegistryOnly(t *testing.T) {
	f := newFixture(10, nil)
	f.attachPrizes(t, 1)

	err := f.raffle.Activate(creator)
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestAddPrizeRequiresCustody(t *testing.T) {
	f := newFixture(10, nil)

	token := big.NewInt(7)
	f.assets.Mint(collection, token, creator)

	err := f.raffle.AddPrize(context.Background(), operator, collection, token)
	require.ErrorIs(t, err, ErrAssetNotHeld)
	assert.Empty(t, f.raffle.Prizes())
}

func TestAddPrizeRejectedOnceActive(t *testing.T) {
	f := newFixture(10, nil)
	f.activate(t, 1)

	token := big.NewInt(2)
	f.assets.Mint(collection, token, f.raffle.Escrow())

	err := f.raffle.AddPrize(context.Background(), operator, collection, token)
	require.ErrorIs(t, err, ErrWrongState)
}

func TestRequestDrawRollsBackOnOracleFailure(t *testing.T) {
	f := newFixture(10, nil)
	f.activate(t, 1)
	f.oracle.submitErr = errors.New("oracle offline")

	_, err := f.raffle.RequestDraw(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusActive, f.raffle.Status())
}

func TestWrongRequestIDRejected(t *testing.T) {
	f := newFixture(10, nil)
	f.activate(t, 1)
	require.NoError(t, f.raffle.BuyTicket(alice, 1, pay(1)))

	requestID, err := f.raffle.RequestDraw(context.Background())
	require.NoError(t, err)

	err = f.raffle.OnRandomnessDelivered(requestID+1, []*big.Int{big.NewInt(0)})
	require.ErrorIs(t, err, ErrWrongRequestID)

	assert.Equal(t, StatusCalculating, f.raffle.Status())
	_, settled := f.raffle.Winner()
	assert.False(t, settled)
}

func TestCallbackBeforeRequestRejected(t *testing.T) {
	f := newFixture(10, nil)
	f.activate(t, 1)

	err := f.raffle.OnRandomnessDelivered(1, []*big.Int{big.NewInt(0)})
	require.ErrorIs(t, err, ErrWrongRequestID)
	assert.Equal(t, StatusActive, f.raffle.Status())
}

func TestSettlementScenario(t *testing.T) {
	f := newFixture(10, nil)
	f.activate(t, 1, 2)

	require.NoError(t, f.raffle.BuyTicket(alice, 1, pay(1)))
	require.NoError(t, f.raffle.BuyTicket(bob, 1, pay(1)))
	require.NoError(t, f.raffle.BuyTicket(carol, 2, pay(2)))

	requestID, err := f.raffle.RequestDraw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCalculating, f.raffle.Status())

	require.NoError(t, f.raffle.OnRandomnessDelivered(requestID, []*big.Int{big.NewInt(2)}))

	winner, settled := f.raffle.Winner()
	require.True(t, settled)
	assert.Equal(t, carol, winner)
	assert.Equal(t, StatusEnded, f.raffle.Status())
	assert.Equal(t, int64(0), f.raffle.Balance().Int64())

	bank := f.bank.(*payments.MemoryBank)
	assert.Equal(t, "12000000000000000", bank.BalanceOf(platform).String())
	assert.Equal(t, "40000000000000000", bank.BalanceOf(creator).String())
	assert.Equal(t, "348000000000000000", bank.BalanceOf(carol).String())

	for _, token := range []int64{1, 2} {
		owner, err := f.assets.OwnerOf(context.Background(), collection, big.NewInt(token))
		require.NoError(t, err)
		assert.Equal(t, carol, owner)
	}

	assert.Contains(t, f.sink.ops(), events.WinnerSelected)
	assert.Contains(t, f.sink.ops(), events.PrizeAwarded)
}

func TestSettlementDuplicateCallbackRejected(t *testing.T) {
	f := newFixture(10, nil)
	f.activate(t, 1)
	require.NoError(t, f.raffle.BuyTicket(alice, 1, pay(1)))

	requestID, err := f.raffle.RequestDraw(context.Background())
	require.NoError(t, err)
	require.NoError(t, f.raffle.OnRandomnessDelivered(requestID, []*big.Int{big.NewInt(0)}))

	err = f.raffle.OnRandomnessDelivered(requestID, []*big.Int{big.NewInt(0)})
	require.ErrorIs(t, err, ErrWrongRequestID)
	assert.Equal(t, StatusEnded, f.raffle.Status())
}

func TestSettlementNoParticipants(t *testing.T) {
	f := newFixture(10, nil)
	f.activate(t, 1)

	requestID, err := f.raffle.RequestDraw(context.Background())
	require.NoError(t, err)

	err = f.raffle.OnRandomnessDelivered(requestID, []*big.Int{big.NewInt(5)})
	require.ErrorIs(t, err, ErrInvalidPick)
	assert.Equal(t, StatusCalculating, f.raffle.Status())
}

func TestSettlementTransferFailureKeepsCalculating(t *testing.T) {
	f := newFixture(10, failingBank{})
	f.activate(t, 1)
	require.NoError(t, f.raffle.BuyTicket(alice, 1, pay(1)))

	requestID, err := f.raffle.RequestDraw(context.Background())
	require.NoError(t, err)

	err = f.raffle.OnRandomnessDelivered(requestID, []*big.Int{big.NewInt(0)})
	require.ErrorIs(t, err, ErrTransferFailed)

	assert.Equal(t, StatusCalculating, f.raffle.Status())
	assert.Equal(t, pay(1), f.raffle.Balance())
	_, settled := f.raffle.Winner()
	assert.False(t, settled)
}

func TestSettlementSplitInvariant(t *testing.T) {
	balances := []int64{0, 1, 99, 100, 101, 1000000007, 400000000000000000}

	for _, balance := range balances {
		for pct := uint8(0); pct <= 80; pct += 8 {
			total := big.NewInt(balance)
			fee := percentOf(total, 3)
			share := percentOf(total, pct)
			winner := new(big.Int).Sub(total, fee)
			winner.Sub(winner, share)

			sum := new(big.Int).Add(fee, share)
			sum.Add(sum, winner)

			assert.Equalf(t, total.String(), sum.String(), "balance=%d pct=%d", balance, pct)
			assert.GreaterOrEqualf(t, winner.Sign(), 0, "balance=%d pct=%d", balance, pct)
		}
	}
}

func TestCancelReturnsPrizes(t *testing.T) {
	f := newFixture(10, nil)
	f.attachPrizes(t, 1, 2)

	require.NoError(t, f.raffle.Cancel(context.Background(), creator))

	assert.Equal(t, StatusDeleted, f.raffle.Status())
	assert.Empty(t, f.raffle.Prizes())

	for _, token := range []int64{1, 2} {
		owner, err := f.assets.OwnerOf(context.Background(), collection, big.NewInt(token))
		require.NoError(t, err)
		assert.Equal(t, creator, owner)
	}

	// The deleted raffle accepts no further prizes.
	token := big.NewInt(3)
	f.assets.Mint(collection, token, f.raffle.Escrow())
	err := f.raffle.AddPrize(context.Background(), operator, collection, token)
	require.ErrorIs(t, err, ErrWrongState)
}

func TestCancelCreatorOnly(t *testing.T) {
	f := newFixture(10, nil)

	err := f.raffle.Cancel(context.Background(), alice)
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestCancelOnlyWhileInactive(t *testing.T) {
	f := newFixture(10, nil)
	f.activate(t, 1)

	err := f.raffle.Cancel(context.Background(), creator)
	require.ErrorIs(t, err, ErrWrongState)
}

func TestSettersEnforceBoundsAndState(t *testing.T) {
	f := newFixture(10, nil)

	require.NoError(t, f.raffle.SetTicketPrice(creator, pay(2)))
	assert.Equal(t, pay(2), f.raffle.TicketPrice())

	tooHigh := new(big.Int).Mul(ticketPrice, big.NewInt(100000))
	require.ErrorIs(t, f.raffle.SetTicketPrice(creator, tooHigh), ErrInvalidParameters)

	require.NoError(t, f.raffle.SetCreatorShare(creator, 80))
	require.ErrorIs(t, f.raffle.SetCreatorShare(creator, 81), ErrInvalidParameters)

	require.ErrorIs(t, f.raffle.SetTicketPrice(alice, pay(1)), ErrNotAuthorized)

	f.activate(t, 1)
	require.ErrorIs(t, f.raffle.SetTicketPrice(creator, pay(1)), ErrWrongState)
	require.ErrorIs(t, f.raffle.SetCreatorShare(creator, 5), ErrWrongState)

	// Description and tags stay editable in any state.
	require.NoError(t, f.raffle.SetDescription(creator, "updated"))
	require.NoError(t, f.raffle.SetTags(creator, []string{"art", "weekly"}))
	assert.Equal(t, "updated", f.raffle.Description())
	assert.Equal(t, []string{"art", "weekly"}, f.raffle.Tags())
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	f := newFixture(10, nil)
	f.activate(t, 1, 2)
	require.NoError(t, f.raffle.BuyTicket(alice, 1, pay(1)))
	require.NoError(t, f.raffle.BuyTicket(bob, 3, pay(3)))

	snapshot := f.raffle.Snapshot()
	restored := Restore(snapshot, Params{
		TicketPrice:        snapshot.TicketPrice,
		MaxTicketPrice:     new(big.Int).Mul(ticketPrice, big.NewInt(1000)),
		MaxCreatorSharePct: 80,
		Operator:           operator,
	}, Dependencies{Assets: f.assets, Oracle: f.oracle, Bank: f.bank})

	assert.Equal(t, f.raffle.Status(), restored.Status())
	assert.Equal(t, f.raffle.Players(), restored.Players())
	assert.Equal(t, f.raffle.TotalTickets(), restored.TotalTickets())
	assert.Equal(t, f.raffle.Balance(), restored.Balance())
	assert.Equal(t, f.raffle.Prizes(), restored.Prizes())
	assert.Equal(t, uint64(3), restored.TicketsOf(bob))
}

func TestEscrowAddressDeterministic(t *testing.T) {
	a := EscrowAddress("raffle-1")
	b := EscrowAddress("raffle-1")
	c := EscrowAddress("raffle-2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestWinnerIndexWrapsSequence(t *testing.T) {
	for word := int64(0); word < 9; word++ {
		f := newFixture(0, nil)
		f.activate(t, 1)

		buyers := []common.Address{alice, bob, carol}
		for _, buyer := range buyers {
			require.NoError(t, f.raffle.BuyTicket(buyer, 1, pay(1)))
		}

		requestID, err := f.raffle.RequestDraw(context.Background())
		require.NoError(t, err)
		require.NoError(t, f.raffle.OnRandomnessDelivered(requestID, []*big.Int{big.NewInt(word)}))

		winner, settled := f.raffle.Winner()
		require.True(t, settled)
		assert.Equal(t, buyers[word%3], winner, fmt.Sprintf("word=%d", word))
	}
}
