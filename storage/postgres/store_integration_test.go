//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"taxidispatch/pkg/logger"
	"taxidispatch/pkg/models"
	"taxidispatch/storage"
	"taxidispatch/storage/postgres"
)

// StoreIntegrationTestSuite runs the repositories against a real PostgreSQL
// with the production migrations applied.
type StoreIntegrationTestSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	store     *postgres.Store
}

func TestStoreIntegration(t *testing.T) {
	suite.Run(t, new(StoreIntegrationTestSuite))
}

func (s *StoreIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("taxi"),
		tcpostgres.WithUsername("taxi"),
		tcpostgres.WithPassword("taxi"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	store, err := postgres.Connect(ctx, url, "../../migrations", logger.NewNop())
	s.Require().NoError(err)
	s.store = store
}

func (s *StoreIntegrationTestSuite) SetupTest() {
	_, err := s.store.GetPool().Exec(context.Background(), "TRUNCATE orders, drivers, clients, action_logs")
	s.Require().NoError(err)
}

func (s *StoreIntegrationTestSuite) TearDownSuite() {
	if s.store != nil {
		s.store.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *StoreIntegrationTestSuite) newClient(tgID int64) *models.Client {
	c := models.NewClient(models.Profile{TelegramID: tgID, FirstName: "Anna"})
	c.Phone = "+79000000000"
	saved, err := s.store.Client().UpdatePhone(context.Background(), c)
	s.Require().NoError(err)
	return saved
}

func (s *StoreIntegrationTestSuite) newOrder(client *models.Client) *models.Order {
	order, err := models.NewOrder(client, "Lenina 1", "Mira 2", "")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Order().Create(context.Background(), order))
	return order
}

func (s *StoreIntegrationTestSuite) newDriver(tgID int64) *models.Driver {
	d, created, err := s.store.Driver().GetOrCreate(context.Background(), models.NewDriver(models.Profile{TelegramID: tgID}))
	s.Require().NoError(err)
	s.Require().True(created)
	return d
}

func (s *StoreIntegrationTestSuite) TestCreate_SecondActiveOrderRejected() {
	ctx := context.Background()
	client := s.newClient(1)
	first := s.newOrder(client)

	second, err := models.NewOrder(client, "A", "B", "")
	s.Require().NoError(err)
	s.Require().ErrorIs(s.store.Order().Create(ctx, second), storage.ErrActiveOrderExists)

	_, err = s.store.Order().Transition(ctx, first.ID, storage.OrderTransition{
		From: models.ClaimableOrderStatuses,
		To:   models.OrderStatusCancelled,
		At:   time.Now().UTC(),
	})
	s.Require().NoError(err)
	s.Require().NoError(s.store.Order().Create(ctx, second))
}

func (s *StoreIntegrationTestSuite) TestClaim_ConcurrentDriversSingleWinner() {
	ctx := context.Background()
	order := s.newOrder(s.newClient(2))

	const drivers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		lost    int
	)
	for i := 0; i < drivers; i++ {
		d := s.newDriver(int64(100 + i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := s.store.Order().Claim(ctx, order.ID, models.NewAssignment(d))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.ErrorIs(err, storage.ErrConditionFailed)
				lost++
				return
			}
			winners = append(winners, *claimed.DriverID)
		}()
	}
	wg.Wait()

	s.Require().Len(winners, 1)
	s.Equal(drivers-1, lost)

	stored, err := s.store.Order().GetByID(ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusAssigned, stored.Status)
	s.Equal(winners[0], *stored.DriverID)
}

func (s *StoreIntegrationTestSuite) TestAttachMessage_OnlyPromotesNew() {
	ctx := context.Background()
	order := s.newOrder(s.newClient(3))
	handle := models.MessageHandle{ChatID: -100, MessageID: 42}

	updated, err := s.store.Order().AttachMessage(ctx, order.ID, handle)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusBroadcast, updated.Status)
	s.Equal(handle, *updated.Message)

	_, err = s.store.Order().Transition(ctx, order.ID, storage.OrderTransition{
		From: models.ClaimableOrderStatuses,
		To:   models.OrderStatusCancelled,
		At:   time.Now().UTC(),
	})
	s.Require().NoError(err)

	updated, err = s.store.Order().AttachMessage(ctx, order.ID, handle)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusCancelled, updated.Status)
}

func (s *StoreIntegrationTestSuite) TestTransition_RequiresAssignedDriver() {
	ctx := context.Background()
	order := s.newOrder(s.newClient(4))
	d := s.newDriver(200)
	other := s.newDriver(201)

	_, err := s.store.Order().Claim(ctx, order.ID, models.NewAssignment(d))
	s.Require().NoError(err)

	complete := storage.OrderTransition{
		From:     []models.OrderStatus{models.OrderStatusAssigned},
		To:       models.OrderStatusCompleted,
		DriverID: other.ID,
		At:       time.Now().UTC(),
	}
	_, err = s.store.Order().Transition(ctx, order.ID, complete)
	s.Require().ErrorIs(err, storage.ErrConditionFailed)

	complete.DriverID = d.ID
	done, err := s.store.Order().Transition(ctx, order.ID, complete)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusCompleted, done.Status)
	s.NotNil(done.CompletedAt)
}

func (s *StoreIntegrationTestSuite) TestRegistration_StepsAreConditional() {
	ctx := context.Background()
	d := s.newDriver(300)

	d, err := s.store.Driver().RecordStep(ctx, d.ID, models.StepCarBrand, "Kia")
	s.Require().NoError(err)
	s.Equal(models.StepCarModel, *d.RegistrationStep)

	_, err = s.store.Driver().RecordStep(ctx, d.ID, models.StepCarBrand, "Lada")
	s.Require().ErrorIs(err, storage.ErrConditionFailed)

	for _, step := range []models.RegistrationStep{models.StepCarModel, models.StepCarColor, models.StepCarPlate} {
		d, err = s.store.Driver().RecordStep(ctx, d.ID, step, "x1")
		s.Require().NoError(err)
	}
	s.True(d.IsRegistered)
	s.Nil(d.RegistrationStep)
	s.Equal("Kia", d.CarBrand)
	s.Equal("X1", d.CarPlate)
}

func (s *StoreIntegrationTestSuite) TestDriver_BusyAndRelease() {
	ctx := context.Background()
	order := s.newOrder(s.newClient(5))
	d := s.newDriver(400)

	s.Require().NoError(s.store.Driver().SetBusy(ctx, d.ID, order.ID))
	busy := true
	count, err := s.store.Driver().Count(ctx, models.DriverFilter{Busy: &busy})
	s.Require().NoError(err)
	s.Equal(1, count)

	s.Require().NoError(s.store.Driver().Release(ctx, d.ID))
	d, err = s.store.Driver().GetByID(ctx, d.ID)
	s.Require().NoError(err)
	s.False(d.IsBusy)
	s.Nil(d.CurrentOrderID)
}

func (s *StoreIntegrationTestSuite) TestActionLog_NewestFirst() {
	ctx := context.Background()
	first := models.NewActionLog(models.ActionOrderCreated)
	second := models.NewActionLog(models.ActionOrderCancelled)
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	s.Require().NoError(s.store.ActionLog().Insert(ctx, first))
	s.Require().NoError(s.store.ActionLog().Insert(ctx, second))

	entries, err := s.store.ActionLog().List(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(models.ActionOrderCancelled, entries[0].Action)
}
