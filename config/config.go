package config

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
)

const (
	// ScrollSepolia is the symbolic name of the test network whose public
	// RPC endpoint is substituted during resolution.
	ScrollSepolia = "scroll-sepolia"

	// ScrollSepoliaEndpoint is the provider URL used for ScrollSepolia.
	ScrollSepoliaEndpoint = "https://scroll-sepolia-testnet.rpc.thirdweb.com/"
)

// Config is the set of parameters needed to reach a group registry. It is
// passed explicitly to whatever needs it rather than read from the
// environment on every call. See Load for populating it from the process.
type Config struct {
	// Network is either a symbolic network name or an RPC URL.
	Network string

	// RegistryAddress is the address of the registry contract.
	RegistryAddress string

	// GroupID selects the group. It may hold a string, any integer kind or
	// nil. Anything that cannot be rendered as an identifier resolves to the
	// empty string, which callers treat as unset.
	GroupID any

	// StartBlock is the first block scanned for registry events.
	StartBlock uint64
}

// Target is a fully resolved Config.
type Target struct {
	Endpoint   string
	Address    string
	GroupID    string
	StartBlock uint64
}

// HasGroup reports whether the target names a group.
func (t Target) HasGroup() bool {
	return t.GroupID != ""
}

// Resolve implements the resolver contract used by the sync state so a
// plain Config can be injected directly.
func (c Config) Resolve() Target {
	return Resolve(c)
}

// Resolve turns a Config into a Target. It never fails.
func Resolve(c Config) Target {
	return Target{
		Endpoint:   ResolveEndpoint(c.Network),
		Address:    c.RegistryAddress,
		GroupID:    ResolveGroupID(c.GroupID),
		StartBlock: c.StartBlock,
	}
}

// ResolveEndpoint maps the symbolic test network to its provider URL and
// returns every other value unchanged.
func ResolveEndpoint(network string) string {
	if network == ScrollSepolia {
		return ScrollSepoliaEndpoint
	}
	return network
}

// ResolveGroupID returns the canonical string form of a group id, or the
// empty string if the value is absent or of an unexpected type. Zero is a
// valid group id and resolves to "0".
func ResolveGroupID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case int:
		return strconv.FormatInt(int64(id), 10)
	case int8:
		return strconv.FormatInt(int64(id), 10)
	case int16:
		return strconv.FormatInt(int64(id), 10)
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case uint:
		return strconv.FormatUint(uint64(id), 10)
	case uint8:
		return strconv.FormatUint(uint64(id), 10)
	case uint16:
		return strconv.FormatUint(uint64(id), 10)
	case uint32:
		return strconv.FormatUint(uint64(id), 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	case float32:
		return formatFloat(float64(id))
	case float64:
		return formatFloat(id)
	case *big.Int:
		if id == nil {
			return ""
		}
		return id.String()
	case json.Number:
		return string(id)
	case fmt.Stringer:
		if rv := reflect.ValueOf(id); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return ""
		}
		return id.String()
	default:
		return ""
	}
}

// formatFloat accepts only integral values. Decoded JSON numbers arrive as
// float64, so 42.0 must still resolve to "42".
func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
