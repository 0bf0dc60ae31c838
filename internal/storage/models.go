package storage

import "time"

type RaffleRecord struct {
	ID              string `gorm:"primaryKey"`
	Name            string
	Creator         string `gorm:"index"`
	Escrow          string
	Platform        string
	TicketPrice     string
	CreatorSharePct uint8
	PlatformFeePct  uint8
	Description     string
	Tags            string
	Status          uint8 `gorm:"index"`
	TotalTickets    uint64
	Balance         string
	RequestID       uint64
	RequestMade     bool
	Winner          string
	HasWinner       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type TicketRecord struct {
	RaffleID string `gorm:"primaryKey"`
	Buyer    string `gorm:"primaryKey"`
	Position int    `gorm:"not null"`
	Count    uint64 `gorm:"not null"`
}

type PrizeRecord struct {
	ID         int64  `gorm:"primaryKey"`
	RaffleID   string `gorm:"index"`
	Collection string `gorm:"not null"`
	TokenID    string `gorm:"not null"`
	Position   int    `gorm:"not null"`
}

type EventRecord struct {
	ID         int64  `gorm:"primaryKey"`
	Op         string `gorm:"index"`
	RaffleID   string `gorm:"index"`
	Actor      string
	Amount     string
	Quantity   uint64
	Collection string
	AssetID    string
	Winner     string
	RequestID  uint64
	CreatedAt  time.Time
}
