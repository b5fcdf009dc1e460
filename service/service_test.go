package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taxidispatch/config"
	"taxidispatch/pkg/logger"
	"taxidispatch/pkg/metrics"
	"taxidispatch/pkg/models"
	"taxidispatch/service"
	"taxidispatch/storage"
	"taxidispatch/storage/memory"
)

const driversChatID int64 = -100500

type sentMessage struct {
	ChatID  int64
	Text    string
	Buttons []service.Button
}

type editedMessage struct {
	Handle models.MessageHandle
	Text   string
}

// fakeNotifier records every delivery and hands out sequential message ids.
type fakeNotifier struct {
	mu     sync.Mutex
	nextID int
	sent   []sentMessage
	edits  []editedMessage
	acks   []string

	// beforeSend, when set, runs before a message is recorded.
	beforeSend func(chatID int64)
}

func (n *fakeNotifier) Send(_ context.Context, chatID int64, text string, buttons ...service.Button) (models.MessageHandle, error) {
	if n.beforeSend != nil {
		n.beforeSend(chatID)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	n.sent = append(n.sent, sentMessage{ChatID: chatID, Text: text, Buttons: buttons})
	return models.MessageHandle{ChatID: chatID, MessageID: n.nextID}, nil
}

func (n *fakeNotifier) Edit(_ context.Context, msg models.MessageHandle, text string, _ ...service.Button) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.edits = append(n.edits, editedMessage{Handle: msg, Text: text})
	return nil
}

func (n *fakeNotifier) Acknowledge(_ context.Context, id, text string, _ bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.acks = append(n.acks, id+":"+text)
	return nil
}

func (n *fakeNotifier) sentTo(chatID int64) []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMessage
	for _, m := range n.sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (n *fakeNotifier) editsOf(h models.MessageHandle) []editedMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []editedMessage
	for _, e := range n.edits {
		if e.Handle == h {
			out = append(out, e)
		}
	}
	return out
}

// mockNotifier is a testify mock of service.Notifier.
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, chatID int64, text string, buttons ...service.Button) (models.MessageHandle, error) {
	args := m.Called(ctx, chatID, text, buttons)
	return args.Get(0).(models.MessageHandle), args.Error(1)
}

func (m *mockNotifier) Edit(ctx context.Context, msg models.MessageHandle, text string, buttons ...service.Button) error {
	args := m.Called(ctx, msg, text, buttons)
	return args.Error(0)
}

func (m *mockNotifier) Acknowledge(ctx context.Context, id, text string, alert bool) error {
	args := m.Called(ctx, id, text, alert)
	return args.Error(0)
}

type fixture struct {
	store    storage.IStorage
	mem      *memory.Store
	notifier service.Notifier
	fake     *fakeNotifier
	runner   *service.AsyncRunner
	settings *config.Settings
	metrics  *metrics.Metrics
	log      logger.ILogger
	svc      service.IServiceManager
}

type fixtureOption func(f *fixture)

func withNotifier(n service.Notifier) fixtureOption {
	return func(f *fixture) { f.notifier = n }
}

func withStorage(wrap func(*memory.Store) storage.IStorage) fixtureOption {
	return func(f *fixture) { f.store = wrap(f.mem) }
}

func withLogger(log logger.ILogger) fixtureOption {
	return func(f *fixture) { f.log = log }
}

func withDriversChat(id int64) fixtureOption {
	return func(f *fixture) { f.settings = config.NewSettings(config.Config{DriversChatID: id}) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	mem := memory.New()
	fake := &fakeNotifier{}
	f := &fixture{
		store:    mem,
		mem:      mem,
		notifier: fake,
		fake:     fake,
		runner:   service.NewAsyncRunner(logger.NewNop(), 0),
		settings: config.NewSettings(config.Config{DriversChatID: driversChatID}),
		metrics:  metrics.NewNop(),
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.svc = service.New(service.Options{
		Storage:  f.store,
		Notifier: f.notifier,
		Settings: f.settings,
		Tasks:    f.runner,
		Metrics:  f.metrics,
		Log:      f.log,
	})
	t.Cleanup(f.runner.Wait)
	return f
}

func (f *fixture) client(t *testing.T, tgID int64) *models.Client {
	t.Helper()
	_, err := f.svc.Client().Auth(context.Background(), models.Profile{TelegramID: tgID, FirstName: "Client"})
	require.NoError(t, err)
	c, err := f.svc.Client().UpdatePhone(context.Background(), tgID, "79001234567")
	require.NoError(t, err)
	return c
}

func (f *fixture) order(t *testing.T, clientTgID int64) *models.Order {
	t.Helper()
	f.client(t, clientTgID)
	o, err := f.svc.Order().Create(context.Background(), clientTgID, service.CreateOrderRequest{AddressFrom: "A", AddressTo: "B"})
	require.NoError(t, err)
	f.runner.Wait()
	return o
}

func (f *fixture) registeredDriver(t *testing.T, tgID int64) *models.Driver {
	t.Helper()
	p := models.Profile{TelegramID: tgID, FirstName: "Driver"}
	_, err := f.svc.Driver().OnJoin(context.Background(), p)
	require.NoError(t, err)
	for _, answer := range []string{"Toyota", "Camry", "White", "a123bc77"} {
		handled, err := f.svc.Driver().HandleText(context.Background(), p, answer)
		require.NoError(t, err)
		require.True(t, handled)
	}
	d, err := f.store.Driver().GetByTelegramID(context.Background(), tgID)
	require.NoError(t, err)
	require.True(t, d.IsRegistered)
	return d
}

func (f *fixture) getOrder(t *testing.T, id string) *models.Order {
	t.Helper()
	o, err := f.store.Order().GetByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (f *fixture) getDriver(t *testing.T, id string) *models.Driver {
	t.Helper()
	d, err := f.store.Driver().GetByID(context.Background(), id)
	require.NoError(t, err)
	return d
}

func (f *fixture) actions(t *testing.T) []models.ActionType {
	t.Helper()
	entries, err := f.svc.ActionLog().List(context.Background(), 1000)
	require.NoError(t, err)
	out := make([]models.ActionType, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i].Action)
	}
	return out
}

// assertBusyInvariant checks is_busy <=> current_order_id != nil for every driver.
func (f *fixture) assertBusyInvariant(t *testing.T) {
	t.Helper()
	drivers, err := f.store.Driver().List(context.Background(), models.DriverFilter{})
	require.NoError(t, err)
	for _, d := range drivers {
		assert.Equal(t, d.IsBusy, d.CurrentOrderID != nil, "driver %s", d.ID)
	}
}
