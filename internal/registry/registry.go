package registry

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ayobamihybrid/Daffy/internal/events"
	"github.com/ayobamihybrid/Daffy/internal/logger"
	"github.com/ayobamihybrid/Daffy/internal/oracle"
	"github.com/ayobamihybrid/Daffy/internal/raffle"
)

var (
	ErrRaffleNotFound         = errors.New("registry: raffle not found")
	ErrAlreadyActive          = errors.New("registry: raffle already active")
	ErrAssetNotOwnedByCreator = errors.New("registry: asset not owned by creator")
)

// Config fixes the registry's policy.
type Config struct {
	Operator           common.Address
	Platform           common.Address
	MaxTicketPrice     *big.Int
	MaxCreatorSharePct uint8
	PlatformFeePct     uint8
	ActivationWindow   time.Duration
	Oracle             oracle.Config
}

// CreateParams are the caller-supplied creation inputs.
type CreateParams struct {
	Name            string
	TicketPrice     *big.Int
	CreatorSharePct uint8
	Description     string
	Tags            []string
}

// Metadata is the registry's listing view of one raffle. Lifecycle state is
// read live from the instance, which is the single source of truth.
type Metadata struct {
	ID              string
	Name            string
	TicketPrice     *big.Int
	CreatorSharePct uint8
	Description     string
	Tags            []string
	Creator         common.Address
	CreatedAt       time.Time
	Status          raffle.Status
}

// Registry creates and tracks raffle instances, and enforces the time-boxed
// activation requirement.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*raffle.Raffle
	order     []string
	byCreator map[common.Address][]string

	// adminMu serializes compound registry operations on an instance, such
	// as AddPrizes' verify-transfer-attach-activate sequence.
	adminMu sync.Mutex

	cfg  Config
	deps raffle.Dependencies
	now  func() time.Time
}

func New(cfg Config, deps raffle.Dependencies) *Registry {
	return &Registry{
		instances: make(map[string]*raffle.Raffle),
		byCreator: make(map[common.Address][]string),
		cfg:       cfg,
		deps:      deps,
		now:       time.Now,
	}
}

// Load rehydrates instances from durable snapshots at boot.
func (g *Registry) Load(snapshots []*raffle.Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, snapshot := range snapshots {
		instance := raffle.Restore(snapshot, g.paramsFor(snapshot), g.deps)
		g.instances[snapshot.ID] = instance
		g.order = append(g.order, snapshot.ID)
		g.byCreator[snapshot.Creator] = append(g.byCreator[snapshot.Creator], snapshot.ID)
	}

	logger.Info("registry: rehydrated raffles", zap.Int("count", len(snapshots)))
}

func (g *Registry) paramsFor(snapshot *raffle.Snapshot) raffle.Params {
	return raffle.Params{
		ID:                 snapshot.ID,
		Name:               snapshot.Name,
		Creator:            snapshot.Creator,
		Operator:           g.cfg.Operator,
		Platform:           g.cfg.Platform,
		TicketPrice:        snapshot.TicketPrice,
		CreatorSharePct:    snapshot.CreatorSharePct,
		PlatformFeePct:     snapshot.PlatformFeePct,
		MaxTicketPrice:     g.cfg.MaxTicketPrice,
		MaxCreatorSharePct: g.cfg.MaxCreatorSharePct,
		Description:        snapshot.Description,
		Tags:               snapshot.Tags,
		OracleConfig:       g.cfg.Oracle,
		CreatedAt:          snapshot.CreatedAt,
	}
}

// Create validates the parameters, instantiates a raffle bound to the caller
// as creator and records it in the global and per-creator listings.
func (g *Registry) Create(caller common.Address, params CreateParams) (string, error) {
	if params.TicketPrice == nil || params.TicketPrice.Sign() < 0 || params.TicketPrice.Cmp(g.cfg.MaxTicketPrice) > 0 {
		return "", raffle.ErrInvalidParameters
	}
	if params.CreatorSharePct > g.cfg.MaxCreatorSharePct {
		return "", raffle.ErrInvalidParameters
	}

	id := uuid.NewString()
	instance := raffle.New(raffle.Params{
		ID:                 id,
		Name:               params.Name,
		Creator:            caller,
		Operator:           g.cfg.Operator,
		Platform:           g.cfg.Platform,
		TicketPrice:        params.TicketPrice,
		CreatorSharePct:    params.CreatorSharePct,
		PlatformFeePct:     g.cfg.PlatformFeePct,
		MaxTicketPrice:     g.cfg.MaxTicketPrice,
		MaxCreatorSharePct: g.cfg.MaxCreatorSharePct,
		Description:        params.Description,
		Tags:               params.Tags,
		OracleConfig:       g.cfg.Oracle,
		CreatedAt:          g.now(),
	}, g.deps)

	g.mu.Lock()
	g.instances[id] = instance
	g.order = append(g.order, id)
	g.byCreator[caller] = append(g.byCreator[caller], id)
	g.mu.Unlock()

	if err := instance.Save(); err != nil {
		logger.Error("registry: persisting new raffle failed", zap.String("raffle", id), zap.Error(err))
	}

	if g.deps.Sink != nil {
		g.deps.Sink.Emit(events.Stamp(events.Event{
			Op:       events.RaffleCreated,
			RaffleID: id,
			Actor:    caller.Hex(),
			Amount:   params.TicketPrice.String(),
		}))
	}

	return id, nil
}

// AddPrizes verifies the creator owns every listed asset, takes custody of
// each, attaches them as prizes and activates the raffle.
func (g *Registry) AddPrizes(ctx context.Context, caller common.Address, id string, collections []common.Address, tokenIDs []*big.Int) error {
	g.adminMu.Lock()
	defer g.adminMu.Unlock()

	instance, err := g.Get(id)
	if err != nil {
		return err
	}

	if len(collections) == 0 || len(collections) != len(tokenIDs) {
		return raffle.ErrInvalidParameters
	}
	if caller != instance.Creator() {
		return raffle.ErrNotAuthorized
	}
	if instance.Status() == raffle.StatusActive {
		return ErrAlreadyActive
	}

	for i := range collections {
		owner, err := g.deps.Assets.OwnerOf(ctx, collections[i], tokenIDs[i])
		if err != nil {
			return errors.Wrapf(ErrAssetNotOwnedByCreator, "asset %d: %v", i, err)
		}
		if owner != caller {
			return errors.Wrapf(ErrAssetNotOwnedByCreator, "asset %d", i)
		}

		if err := g.deps.Assets.Transfer(ctx, collections[i], tokenIDs[i], caller, instance.Escrow()); err != nil {
			return errors.Wrapf(raffle.ErrTransferFailed, "taking custody of asset %d: %v", i, err)
		}

		if err := instance.AddPrize(ctx, g.cfg.Operator, collections[i], tokenIDs[i]); err != nil {
			return err
		}
	}

	return instance.Activate(g.cfg.Operator)
}

// Draw triggers the randomness request path. Creator-only.
func (g *Registry) Draw(ctx context.Context, caller common.Address, id string) (uint64, error) {
	instance, err := g.Get(id)
	if err != nil {
		return 0, err
	}
	if caller != instance.Creator() {
		return 0, raffle.ErrNotAuthorized
	}
	return instance.RequestDraw(ctx)
}

// Expire deletes a raffle that was never activated within the window. It is a
// no-op, not an error, when the conditions are not met.
func (g *Registry) Expire(caller common.Address, id string) error {
	instance, err := g.Get(id)
	if err != nil {
		return err
	}
	if caller != g.cfg.Operator && caller != instance.Creator() {
		return raffle.ErrNotAuthorized
	}

	if instance.Status() != raffle.StatusInactive {
		return nil
	}
	if g.now().Sub(instance.CreatedAt()) < g.cfg.ActivationWindow {
		return nil
	}
	if len(instance.Prizes()) > 0 {
		// Held prizes mean a partially-completed AddPrizes; never strand
		// custodied assets through expiry.
		return nil
	}

	return instance.Expire(caller)
}

// SweepExpired runs Expire over the whole listing. One raffle's failure does
// not block the rest.
func (g *Registry) SweepExpired() {
	g.mu.RLock()
	ids := append([]string(nil), g.order...)
	g.mu.RUnlock()

	for _, id := range ids {
		if err := g.Expire(g.cfg.Operator, id); err != nil {
			logger.Warn("registry: expiring raffle failed", zap.String("raffle", id), zap.Error(err))
		}
	}
}

// Get resolves a raffle instance by id.
func (g *Registry) Get(id string) (*raffle.Raffle, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	instance, ok := g.instances[id]
	if !ok {
		return nil, ErrRaffleNotFound
	}
	return instance, nil
}

// GetAll lists every raffle in creation order.
func (g *Registry) GetAll() []Metadata {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]Metadata, 0, len(g.order))
	for _, id := range g.order {
		result = append(result, g.metadataOf(g.instances[id]))
	}
	return result
}

// GetByCreator lists the raffles created by one identity.
func (g *Registry) GetByCreator(creator common.Address) []Metadata {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := g.byCreator[creator]
	result := make([]Metadata, 0, len(ids))
	for _, id := range ids {
		result = append(result, g.metadataOf(g.instances[id]))
	}
	return result
}

func (g *Registry) metadataOf(instance *raffle.Raffle) Metadata {
	return Metadata{
		ID:              instance.ID(),
		Name:            instance.Name(),
		TicketPrice:     instance.TicketPrice(),
		CreatorSharePct: instance.CreatorSharePct(),
		Description:     instance.Description(),
		Tags:            instance.Tags(),
		Creator:         instance.Creator(),
		CreatedAt:       instance.CreatedAt(),
		Status:          instance.Status(),
	}
}
