package storage

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ayobamihybrid/Daffy/internal/events"
	"github.com/ayobamihybrid/Daffy/internal/logger"
	"github.com/ayobamihybrid/Daffy/internal/raffle"
)

type SqliteStorage struct {
	db *gorm.DB
}

func NewSqliteStorage(path string) *SqliteStorage {

	logger.Debug("initializing database...")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		panic(err)
	}

	err = db.AutoMigrate(
		&RaffleRecord{},
		&TicketRecord{},
		&PrizeRecord{},
		&EventRecord{},
	)

	if err != nil {
		panic(err)
	}

	return &SqliteStorage{
		db: db,
	}
}

func (s *SqliteStorage) SaveRaffle(snapshot *raffle.Snapshot) error {

	return s.db.Transaction(func(tx *gorm.DB) error {
		record := recordFromSnapshot(snapshot)

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(record).Error
		if err != nil {
			return err
		}

		if err := tx.Where("raffle_id = ?", snapshot.ID).Delete(&TicketRecord{}).Error; err != nil {
			return err
		}

		tickets := make([]*TicketRecord, 0, len(snapshot.Players))
		for position, buyer := range snapshot.Players {
			tickets = append(tickets, &TicketRecord{
				RaffleID: snapshot.ID,
				Buyer:    buyer.Hex(),
				Position: position,
				Count:    snapshot.Tickets[buyer],
			})
		}
		if len(tickets) > 0 {
			if err := tx.CreateInBatches(tickets, 100).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("raffle_id = ?", snapshot.ID).Delete(&PrizeRecord{}).Error; err != nil {
			return err
		}

		prizes := make([]*PrizeRecord, 0, len(snapshot.Prizes))
		for position, prize := range snapshot.Prizes {
			prizes = append(prizes, &PrizeRecord{
				RaffleID:   snapshot.ID,
				Collection: prize.Collection.Hex(),
				TokenID:    prize.TokenID.String(),
				Position:   position,
			})
		}
		if len(prizes) > 0 {
			if err := tx.CreateInBatches(prizes, 100).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *SqliteStorage) LoadRaffles() ([]*raffle.Snapshot, error) {
	logger.Debug("loading raffle snapshots...")

	var records []*RaffleRecord
	if err := s.db.Order("created_at").Find(&records).Error; err != nil {
		return nil, err
	}

	snapshots := make([]*raffle.Snapshot, 0, len(records))
	for _, record := range records {
		snapshot, err := s.snapshotFromRecord(record)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}

	logger.Debug("loading raffle snapshots... done")
	return snapshots, nil
}

func (s *SqliteStorage) snapshotFromRecord(record *RaffleRecord) (*raffle.Snapshot, error) {

	ticketPrice, err := parseAmount(record.TicketPrice)
	if err != nil {
		return nil, errors.Wrapf(err, "raffle %s ticket price", record.ID)
	}
	balance, err := parseAmount(record.Balance)
	if err != nil {
		return nil, errors.Wrapf(err, "raffle %s balance", record.ID)
	}

	var ticketRecords []*TicketRecord
	err = s.db.Where("raffle_id = ?", record.ID).Order("position").Find(&ticketRecords).Error
	if err != nil {
		return nil, err
	}

	players := make([]common.Address, 0, len(ticketRecords))
	tickets := make(map[common.Address]uint64, len(ticketRecords))
	for _, ticket := range ticketRecords {
		buyer := common.HexToAddress(ticket.Buyer)
		players = append(players, buyer)
		tickets[buyer] = ticket.Count
	}

	var prizeRecords []*PrizeRecord
	err = s.db.Where("raffle_id = ?", record.ID).Order("position").Find(&prizeRecords).Error
	if err != nil {
		return nil, err
	}

	prizes := make([]raffle.Prize, 0, len(prizeRecords))
	for _, prize := range prizeRecords {
		tokenID, err := parseAmount(prize.TokenID)
		if err != nil {
			return nil, errors.Wrapf(err, "raffle %s prize token", record.ID)
		}
		prizes = append(prizes, raffle.Prize{
			Collection: common.HexToAddress(prize.Collection),
			TokenID:    tokenID,
		})
	}

	var tags []string
	if record.Tags != "" {
		tags = strings.Split(record.Tags, ",")
	}

	return &raffle.Snapshot{
		ID:              record.ID,
		Name:            record.Name,
		Creator:         common.HexToAddress(record.Creator),
		Escrow:          common.HexToAddress(record.Escrow),
		Platform:        common.HexToAddress(record.Platform),
		Status:          raffle.Status(record.Status),
		TicketPrice:     ticketPrice,
		CreatorSharePct: record.CreatorSharePct,
		PlatformFeePct:  record.PlatformFeePct,
		Description:     record.Description,
		Tags:            tags,
		Players:         players,
		Tickets:         tickets,
		TotalTickets:    record.TotalTickets,
		Prizes:          prizes,
		Balance:         balance,
		RequestID:       record.RequestID,
		RequestMade:     record.RequestMade,
		Winner:          common.HexToAddress(record.Winner),
		HasWinner:       record.HasWinner,
		CreatedAt:       record.CreatedAt,
	}, nil
}

func (s *SqliteStorage) AppendEvent(event *events.Event) error {

	record := &EventRecord{
		Op:         event.Op,
		RaffleID:   event.RaffleID,
		Actor:      event.Actor,
		Amount:     event.Amount,
		Quantity:   event.Quantity,
		Collection: event.Collection,
		AssetID:    event.AssetID,
		Winner:     event.Winner,
		RequestID:  event.RequestID,
		CreatedAt:  event.CreatedAt,
	}

	return s.db.Create(record).Error
}

func (s *SqliteStorage) ListEvents(raffleID string) ([]*events.Event, error) {

	var records []*EventRecord
	err := s.db.Where("raffle_id = ?", raffleID).Order("id").Find(&records).Error
	if err != nil {
		return nil, err
	}

	result := make([]*events.Event, 0, len(records))
	for _, record := range records {
		result = append(result, &events.Event{
			Op:         record.Op,
			RaffleID:   record.RaffleID,
			Actor:      record.Actor,
			Amount:     record.Amount,
			Quantity:   record.Quantity,
			Collection: record.Collection,
			AssetID:    record.AssetID,
			Winner:     record.Winner,
			RequestID:  record.RequestID,
			CreatedAt:  record.CreatedAt,
		})
	}

	return result, nil
}

func recordFromSnapshot(snapshot *raffle.Snapshot) *RaffleRecord {
	return &RaffleRecord{
		ID:              snapshot.ID,
		Name:            snapshot.Name,
		Creator:         snapshot.Creator.Hex(),
		Escrow:          snapshot.Escrow.Hex(),
		Platform:        snapshot.Platform.Hex(),
		TicketPrice:     snapshot.TicketPrice.String(),
		CreatorSharePct: snapshot.CreatorSharePct,
		PlatformFeePct:  snapshot.PlatformFeePct,
		Description:     snapshot.Description,
		Tags:            strings.Join(snapshot.Tags, ","),
		Status:          uint8(snapshot.Status),
		TotalTickets:    snapshot.TotalTickets,
		Balance:         snapshot.Balance.String(),
		RequestID:       snapshot.RequestID,
		RequestMade:     snapshot.RequestMade,
		Winner:          snapshot.Winner.Hex(),
		HasWinner:       snapshot.HasWinner,
		CreatedAt:       snapshot.CreatedAt,
	}
}

func parseAmount(value string) (*big.Int, error) {
	if value == "" {
		return new(big.Int), nil
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, errors.Errorf("storage: %q is not a valid amount", value)
	}
	return amount, nil
}
