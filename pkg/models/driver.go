package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taxidispatch/pkg/errs"
)

type DriverStatus string

const (
	DriverStatusActive  DriverStatus = "ACTIVE"
	DriverStatusBlocked DriverStatus = "BLOCKED"
)

func ParseDriverStatus(s string) (DriverStatus, error) {
	switch st := DriverStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case DriverStatusActive, DriverStatusBlocked:
		return st, nil
	}
	return "", errs.NewValidationError("status", "unknown driver status "+quote(s))
}

// RegistrationStep is the car detail a driver is currently asked for.
// A registered driver has no step.
type RegistrationStep string

const (
	StepCarBrand RegistrationStep = "car_brand"
	StepCarModel RegistrationStep = "car_model"
	StepCarColor RegistrationStep = "car_color"
	StepCarPlate RegistrationStep = "car_plate"
)

func ParseRegistrationStep(s string) (RegistrationStep, error) {
	switch st := RegistrationStep(strings.ToLower(strings.TrimSpace(s))); st {
	case StepCarBrand, StepCarModel, StepCarColor, StepCarPlate:
		return st, nil
	}
	return "", errs.NewValidationError("registration_step", "unknown registration step "+quote(s))
}

// Next returns the step that follows s; ok is false after the last step.
func (s RegistrationStep) Next() (next RegistrationStep, ok bool) {
	switch s {
	case StepCarBrand:
		return StepCarModel, true
	case StepCarModel:
		return StepCarColor, true
	case StepCarColor:
		return StepCarPlate, true
	}
	return "", false
}

// Normalize prepares a raw answer for storage.
func (s RegistrationStep) Normalize(value string) string {
	value = strings.TrimSpace(value)
	if s == StepCarPlate {
		return NormalizePlate(value)
	}
	return value
}

func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

type Driver struct {
	ID               string            `json:"id"`
	TelegramID       int64             `json:"telegram_id"`
	Username         string            `json:"username,omitempty"`
	FirstName        string            `json:"first_name,omitempty"`
	LastName         string            `json:"last_name,omitempty"`
	Phone            string            `json:"phone,omitempty"`
	CarBrand         string            `json:"car_brand,omitempty"`
	CarModel         string            `json:"car_model,omitempty"`
	CarColor         string            `json:"car_color,omitempty"`
	CarPlate         string            `json:"car_plate,omitempty"`
	IsRegistered     bool              `json:"is_registered"`
	RegistrationStep *RegistrationStep `json:"registration_step"`
	Status           DriverStatus      `json:"status"`
	IsBusy           bool              `json:"is_busy"`
	CurrentOrderID   *string           `json:"current_order_id"`
	CreatedAt        time.Time         `json:"created_at"`
}

// NewDriver builds an unregistered driver waiting for the car brand.
func NewDriver(p Profile) *Driver {
	step := StepCarBrand
	return &Driver{
		ID:               uuid.NewString(),
		TelegramID:       p.TelegramID,
		Username:         p.Username,
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		RegistrationStep: &step,
		Status:           DriverStatusActive,
		CreatedAt:        time.Now().UTC(),
	}
}

func (d *Driver) DisplayName() string {
	if name := strings.TrimSpace(d.FirstName + " " + d.LastName); name != "" {
		return name
	}
	if d.Username != "" {
		return d.Username
	}
	return "Водитель"
}

func (d *Driver) CarInfo() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s %s (%s)", d.CarBrand, d.CarModel, d.CarColor, d.CarPlate))
}

// HasCarDetails reports whether all four car fields are populated.
func (d *Driver) HasCarDetails() bool {
	return d.CarBrand != "" && d.CarModel != "" && d.CarColor != "" && d.CarPlate != ""
}

func (d *Driver) IsBlocked() bool {
	return d.Status == DriverStatusBlocked
}

// CarField returns the value stored for a registration step.
func (d *Driver) CarField(step RegistrationStep) string {
	switch step {
	case StepCarBrand:
		return d.CarBrand
	case StepCarModel:
		return d.CarModel
	case StepCarColor:
		return d.CarColor
	case StepCarPlate:
		return d.CarPlate
	}
	return ""
}

// SetCarField stores value for a registration step.
func (d *Driver) SetCarField(step RegistrationStep, value string) {
	switch step {
	case StepCarBrand:
		d.CarBrand = value
	case StepCarModel:
		d.CarModel = value
	case StepCarColor:
		d.CarColor = value
	case StepCarPlate:
		d.CarPlate = value
	}
}

// DriverPatch is an administrative edit. Nil fields are left untouched.
type DriverPatch struct {
	Status   *DriverStatus `json:"status"`
	Phone    *string       `json:"phone"`
	CarBrand *string       `json:"car_brand"`
	CarModel *string       `json:"car_model"`
	CarColor *string       `json:"car_color"`
	CarPlate *string       `json:"car_plate"`
}

func (p DriverPatch) IsEmpty() bool {
	return p.Status == nil && p.Phone == nil && p.CarBrand == nil && p.CarModel == nil && p.CarColor == nil && p.CarPlate == nil
}

// Apply writes the patch onto d.
func (p DriverPatch) Apply(d *Driver) {
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.Phone != nil {
		d.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.CarBrand != nil {
		d.CarBrand = strings.TrimSpace(*p.CarBrand)
	}
	if p.CarModel != nil {
		d.CarModel = strings.TrimSpace(*p.CarModel)
	}
	if p.CarColor != nil {
		d.CarColor = strings.TrimSpace(*p.CarColor)
	}
	if p.CarPlate != nil {
		d.CarPlate = NormalizePlate(*p.CarPlate)
	}
}

type DriverFilter struct {
	Status *DriverStatus
	Busy   *bool
}

func (f DriverFilter) Match(d *Driver) bool {
	if f.Status != nil && d.Status != *f.Status {
		return false
	}
	if f.Busy != nil && d.IsBusy != *f.Busy {
		return false
	}
	return true
}
