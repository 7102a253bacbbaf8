package types

import (
	"fmt"
	"time"
)

type AssetType string

const (
	AssetTypeStock  AssetType = "STOCK"
	AssetTypeCrypto AssetType = "CRYPTO"
	AssetTypeEtf    AssetType = "ETF"
	AssetTypeFuture AssetType = "FUTURE"
)

// Asset is an instrument known to the candle store.
type Asset struct {
	Id         int       `json:"id"`
	Ticker     string    `json:"ticker"`
	Name       string    `json:"name"`
	Type       AssetType `json:"type"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

func (a Asset) String() string {
	return fmt.Sprintf("%s (%s, id=%d)", a.Ticker, a.Type, a.Id)
}
