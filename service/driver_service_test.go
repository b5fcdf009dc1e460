package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxidispatch/pkg/errs"
	"taxidispatch/pkg/models"
	"taxidispatch/service"
)

func TestOnJoin_CreatesDriverOnce(t *testing.T) {
	f := newFixture(t)
	p := models.Profile{TelegramID: 1, Username: "ivan"}

	first, err := f.svc.Driver().OnJoin(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, first.IsRegistered)
	assert.Equal(t, models.StepCarBrand, *first.RegistrationStep)

	again, err := f.svc.Driver().OnJoin(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	msgs := f.fake.sentTo(1)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Text, "Добро пожаловать")
	assert.Contains(t, msgs[1].Text, "не завершили регистрацию")
}

func TestOnJoin_RegisteredDriverIsLeftAlone(t *testing.T) {
	f := newFixture(t)
	f.registeredDriver(t, 2)
	before := len(f.fake.sentTo(2))

	d, err := f.svc.Driver().OnJoin(context.Background(), models.Profile{TelegramID: 2})
	require.NoError(t, err)
	assert.True(t, d.IsRegistered)
	assert.Len(t, f.fake.sentTo(2), before)
}

func TestHandleText_StepByStep(t *testing.T) {
	f := newFixture(t)
	p := models.Profile{TelegramID: 3}
	_, err := f.svc.Driver().OnJoin(context.Background(), p)
	require.NoError(t, err)

	steps := []struct {
		answer string
		next   *models.RegistrationStep
	}{
		{"Kia", stepPtr(models.StepCarModel)},
		{"Rio", stepPtr(models.StepCarColor)},
		{"Red", stepPtr(models.StepCarPlate)},
		{" e777kx ", nil},
	}
	for _, s := range steps {
		handled, err := f.svc.Driver().HandleText(context.Background(), p, s.answer)
		require.NoError(t, err)
		require.True(t, handled)

		d, err := f.store.Driver().GetByTelegramID(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, s.next, d.RegistrationStep)
	}

	d, err := f.store.Driver().GetByTelegramID(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, d.IsRegistered)
	assert.Equal(t, "E777KX", d.CarPlate)
	assert.Equal(t, []models.ActionType{models.ActionDriverRegistered}, f.actions(t))

	msgs := f.fake.sentTo(3)
	assert.Contains(t, msgs[len(msgs)-1].Text, "Регистрация завершена")

	handled, err := f.svc.Driver().HandleText(context.Background(), p, "hello")
	require.NoError(t, err)
	assert.False(t, handled, "registered drivers' text is not consumed")
}

func TestHandleText_UnknownSenderAndBlankText(t *testing.T) {
	f := newFixture(t)

	handled, err := f.svc.Driver().HandleText(context.Background(), models.Profile{TelegramID: 4}, "Toyota")
	require.NoError(t, err)
	assert.False(t, handled)

	p := models.Profile{TelegramID: 5}
	_, err = f.svc.Driver().OnJoin(context.Background(), p)
	require.NoError(t, err)
	handled, err = f.svc.Driver().HandleText(context.Background(), p, "   ")
	assert.True(t, handled)
	require.ErrorIs(t, err, errs.ErrValidation)

	d, err := f.store.Driver().GetByTelegramID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, models.StepCarBrand, *d.RegistrationStep)
}

func TestAdminUpdate_ConvergesToRegistered(t *testing.T) {
	f := newFixture(t)
	d, err := f.svc.Driver().OnJoin(context.Background(), models.Profile{TelegramID: 6})
	require.NoError(t, err)

	brand, model, color, plate := "Lada", "Vesta", "Grey", "a001aa"
	updated, err := f.svc.Driver().AdminUpdate(context.Background(), d.ID, models.DriverPatch{
		CarBrand: &brand, CarModel: &model, CarColor: &color, CarPlate: &plate,
	}, "admin-7")
	require.NoError(t, err)
	assert.True(t, updated.IsRegistered)
	assert.Nil(t, updated.RegistrationStep)
	assert.Equal(t, "A001AA", updated.CarPlate)

	entries, err := f.svc.ActionLog().List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionDriverRegistered, entries[0].Action)
	assert.Equal(t, "registered by administrator", entries[0].Details)
	assert.Equal(t, "admin-7", entries[0].AdminID)

	// The dialogue no longer consumes text once registered.
	handled, err := f.svc.Driver().HandleText(context.Background(), models.Profile{TelegramID: 6}, "Toyota")
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestAdminUpdate_PartialCarDetailsStayUnregistered(t *testing.T) {
	f := newFixture(t)
	d, err := f.svc.Driver().OnJoin(context.Background(), models.Profile{TelegramID: 7})
	require.NoError(t, err)

	brand := "Lada"
	updated, err := f.svc.Driver().AdminUpdate(context.Background(), d.ID, models.DriverPatch{CarBrand: &brand}, "admin")
	require.NoError(t, err)
	assert.False(t, updated.IsRegistered)
	assert.Empty(t, f.actions(t))
}

func TestAdminUpdate_StatusChangesAreLogged(t *testing.T) {
	f := newFixture(t)
	d := f.registeredDriver(t, 8)

	blocked, active := models.DriverStatusBlocked, models.DriverStatusActive
	_, err := f.svc.Driver().AdminUpdate(context.Background(), d.ID, models.DriverPatch{Status: &blocked}, "admin")
	require.NoError(t, err)
	_, err = f.svc.Driver().AdminUpdate(context.Background(), d.ID, models.DriverPatch{Status: &active}, "admin")
	require.NoError(t, err)
	_, err = f.svc.Driver().AdminUpdate(context.Background(), d.ID, models.DriverPatch{Status: &active}, "admin")
	require.NoError(t, err)

	assert.Equal(t, []models.ActionType{
		models.ActionDriverRegistered,
		models.ActionDriverBlocked,
		models.ActionDriverUnblocked,
	}, f.actions(t))
}

func TestAdminUpdate_CannotUnregister(t *testing.T) {
	f := newFixture(t)
	d := f.registeredDriver(t, 9)

	empty := " "
	_, err := f.svc.Driver().AdminUpdate(context.Background(), d.ID, models.DriverPatch{CarModel: &empty}, "admin")
	require.ErrorIs(t, err, errs.ErrValidation)
	require.ErrorIs(t, err, service.ErrCarFieldRequired)
	assert.Equal(t, "Camry", f.getDriver(t, d.ID).CarModel)

	_, err = f.svc.Driver().AdminUpdate(context.Background(), d.ID, models.DriverPatch{}, "admin")
	require.ErrorIs(t, err, errs.ErrValidation)

	phone := "+7999"
	_, err = f.svc.Driver().AdminUpdate(context.Background(), "missing", models.DriverPatch{Phone: &phone}, "admin")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func stepPtr(s models.RegistrationStep) *models.RegistrationStep {
	return &s
}
