package copytrade

import (
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/jiaming2012/backoffice/src/models"
)

type Store interface {
	models.IAccountStore
	models.ICopyTradeStore
}

// Service replicates master trades to followers and settles the daily profit share.
type Service struct {
	db            Store
	engine        models.ITradeEngine
	now           func() time.Time
	defaultMaxLot float64
	copyCounter   metric.Int64Counter
	settleCounter metric.Int64Counter
}

func NewService(db Store, engine models.ITradeEngine) *Service {
	meter := otel.Meter("copytrade")

	copyCounter, err := meter.Int64Counter("copytrade.follower_copies", metric.WithDescription("follower copy attempts by outcome"))
	if err != nil {
		log.Warnf("copytrade: failed to create copy counter: %v", err)
	}

	settleCounter, err := meter.Int64Counter("copytrade.settlements", metric.WithDescription("daily settlement groups by outcome"))
	if err != nil {
		log.Warnf("copytrade: failed to create settlement counter: %v", err)
	}

	return &Service{
		db:            db,
		engine:        engine,
		now:           time.Now,
		defaultMaxLot: models.DefaultMaxLotSize,
		copyCounter:   copyCounter,
		settleCounter: settleCounter,
	}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetDefaultMaxLotSize caps follower lots when a follow request names no cap.
func (s *Service) SetDefaultMaxLotSize(lots float64) {
	if lots > 0 {
		s.defaultMaxLot = lots
	}
}
