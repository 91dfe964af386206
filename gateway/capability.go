package gateway

import (
	"encoding/json"
	"fmt"
)

// Capability é o módulo do MOTIS que a requisição quer chamar, identificado
// pelo path do módulo. O conjunto é fechado.
type Capability string

const (
	Intermodal         Capability = "/intermodal"
	Guesser            Capability = "/guesser"
	Address            Capability = "/address"
	RailVizGetTrains   Capability = "/railviz/get_trains"
	RailVizGetTrips    Capability = "/railviz/get_trips"
	LookupScheduleInfo Capability = "/lookup/schedule_info"
	GbfsInfo           Capability = "/gbfs/info"
	RailVizGetStation  Capability = "/railviz/get_station"
	PprRoute           Capability = "/ppr/route"
	TripToConnection   Capability = "/trip_to_connection"
)

// Capabilities lista todas as capabilities conhecidas.
func Capabilities() []Capability {
	return []Capability{
		Intermodal,
		Guesser,
		Address,
		RailVizGetTrains,
		RailVizGetTrips,
		LookupScheduleInfo,
		GbfsInfo,
		RailVizGetStation,
		PprRoute,
		TripToConnection,
	}
}

func (c Capability) Valid() bool {
	for _, k := range Capabilities() {
		if c == k {
			return true
		}
	}
	return false
}

func (c Capability) String() string { return string(c) }

// ParseCapability aceita o path do módulo ("/intermodal").
func ParseCapability(s string) (Capability, error) {
	c := Capability(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown capability %q", s)
	}
	return c, nil
}

func (c *Capability) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("capability: %w", err)
	}
	parsed, err := ParseCapability(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ContentType é o discriminante do payload ("content_type" no envelope).
type ContentType string

const (
	IntermodalConnectionRequest ContentType = "IntermodalConnectionRequest"
	IntermodalRoutingRequest    ContentType = "IntermodalRoutingRequest"
	StationGuesserRequest       ContentType = "StationGuesserRequest"
	AddressRequest              ContentType = "AddressRequest"
	RailVizTrainsRequest        ContentType = "RailVizTrainsRequest"
	RailVizTripsRequest         ContentType = "RailVizTripsRequest"
	MotisNoMessage              ContentType = "MotisNoMessage"
	RailVizStationRequest       ContentType = "RailVizStationRequest"
	FootRoutingRequest          ContentType = "FootRoutingRequest"
	TripID                      ContentType = "TripId"
)

var contentTypes = map[ContentType]struct{}{
	IntermodalConnectionRequest: {},
	IntermodalRoutingRequest:    {},
	StationGuesserRequest:       {},
	AddressRequest:              {},
	RailVizTrainsRequest:        {},
	RailVizTripsRequest:         {},
	MotisNoMessage:              {},
	RailVizStationRequest:       {},
	FootRoutingRequest:          {},
	TripID:                      {},
}

func (t ContentType) Valid() bool {
	_, ok := contentTypes[t]
	return ok
}

// IsSearch indica as buscas de rota, as únicas caras o bastante para
// passar pelo rate limit.
func (t ContentType) IsSearch() bool {
	return t == IntermodalConnectionRequest || t == IntermodalRoutingRequest
}

func (t *ContentType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("content_type: %w", err)
	}
	ct := ContentType(s)
	if !ct.Valid() {
		return fmt.Errorf("unknown content_type %q", s)
	}
	*t = ct
	return nil
}
