// Package address implements the province → district → ward selection used
// by checkout, together with the delivery service chosen for the district.
package address

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// Province is a first-level delivery zone.
type Province struct {
	ID   int    `json:"provinceId"`
	Name string `json:"provinceName"`
}

// District is a second-level delivery zone.
type District struct {
	ID         int    `json:"districtId"`
	ProvinceID int    `json:"provinceId"`
	Name       string `json:"districtName"`
}

// Ward is a third-level delivery zone. Wards are keyed by code, not number.
type Ward struct {
	Code       string `json:"wardCode"`
	DistrictID int    `json:"districtId"`
	Name       string `json:"wardName"`
}

// Service is a delivery service offered for a district.
type Service struct {
	ServiceID     int    `json:"serviceId"`
	ServiceTypeID int    `json:"serviceTypeId"`
	ShortName     string `json:"shortName"`
}

// Directory looks up delivery zones and services.
type Directory interface {
	Provinces(ctx context.Context) ([]Province, error)
	Districts(ctx context.Context, provinceID int) ([]District, error)
	Wards(ctx context.Context, districtID int) ([]Ward, error)
	Services(ctx context.Context, districtID int) ([]Service, error)
}

// Level identifies one step of the cascade.
type Level int

const (
	LevelProvince Level = iota
	LevelDistrict
	LevelWard
	LevelService
)

func (l Level) String() string {
	switch l {
	case LevelProvince:
		return "province"
	case LevelDistrict:
		return "district"
	case LevelWard:
		return "ward"
	case LevelService:
		return "service"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// State is the lifecycle of a single level.
type State int

const (
	StateUnselected State = iota
	StateLoading
	StateLoaded
	StateSelected
)

func (s State) String() string {
	switch s {
	case StateUnselected:
		return "unselected"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateSelected:
		return "selected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	// ErrSuperseded is returned when a fetch completed after its level was
	// reset by a newer selection. Its result was discarded.
	ErrSuperseded = errors.New("selection changed while loading")
	// ErrUnknownOption is returned when the selected value is not among the
	// loaded options of the level.
	ErrUnknownOption = errors.New("unknown option")
	// ErrLevelNotReady is returned when selecting at a level whose options
	// are not loaded.
	ErrLevelNotReady = errors.New("options not loaded")
)

// FetchError reports a failed option fetch. The level is left unselected.
type FetchError struct {
	Level Level
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("load %s options: %v", e.Level, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Selection is the chosen value of every level. Zero values mean unselected.
type Selection struct {
	ProvinceID    int    `json:"provinceId,omitempty"`
	DistrictID    int    `json:"districtId,omitempty"`
	WardCode      string `json:"wardCode,omitempty"`
	ServiceTypeID int    `json:"serviceTypeId,omitempty"`
}

// Complete reports whether every level including the service is selected.
func (s Selection) Complete() bool {
	return s.ProvinceID != 0 && s.DistrictID != 0 && s.WardCode != "" && s.ServiceTypeID != 0
}
