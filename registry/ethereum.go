package registry

import (
	"context"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/cmwaters/groupsync/config"
	"github.com/cmwaters/groupsync/pkg/group"
)

// Events emitted by the registry contract.
const (
	eventGroupCreated  = "GroupCreated"
	eventMemberAdded   = "MemberAdded"
	eventMemberUpdated = "MemberUpdated"
	eventMemberRemoved = "MemberRemoved"
	eventProofVerified = "ProofVerified"
)

const registryEventsABI = `[
  {"type":"event","name":"GroupCreated","anonymous":false,"inputs":[
    {"name":"groupId","type":"uint256","indexed":true},
    {"name":"merkleTreeDepth","type":"uint256","indexed":false},
    {"name":"zeroValue","type":"uint256","indexed":false}]},
  {"type":"event","name":"MemberAdded","anonymous":false,"inputs":[
    {"name":"groupId","type":"uint256","indexed":true},
    {"name":"index","type":"uint256","indexed":false},
    {"name":"identityCommitment","type":"uint256","indexed":false},
    {"name":"merkleTreeRoot","type":"uint256","indexed":false}]},
  {"type":"event","name":"MemberUpdated","anonymous":false,"inputs":[
    {"name":"groupId","type":"uint256","indexed":true},
    {"name":"index","type":"uint256","indexed":false},
    {"name":"identityCommitment","type":"uint256","indexed":false},
    {"name":"newIdentityCommitment","type":"uint256","indexed":false},
    {"name":"merkleTreeRoot","type":"uint256","indexed":false}]},
  {"type":"event","name":"MemberRemoved","anonymous":false,"inputs":[
    {"name":"groupId","type":"uint256","indexed":true},
    {"name":"index","type":"uint256","indexed":false},
    {"name":"identityCommitment","type":"uint256","indexed":false},
    {"name":"merkleTreeRoot","type":"uint256","indexed":false}]},
  {"type":"event","name":"ProofVerified","anonymous":false,"inputs":[
    {"name":"groupId","type":"uint256","indexed":true},
    {"name":"merkleTreeRoot","type":"uint256","indexed":true},
    {"name":"nullifierHash","type":"uint256","indexed":false},
    {"name":"externalNullifier","type":"uint256","indexed":true},
    {"name":"signal","type":"uint256","indexed":false}]}
]`

var registryABI = mustParseABI(registryEventsABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

type (
	// LogFilterer is the part of an Ethereum RPC client the registry needs.
	LogFilterer interface {
		FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	}

	// DialFunc connects to an RPC endpoint. The returned close function
	// releases the connection.
	DialFunc func(ctx context.Context, endpoint string) (LogFilterer, func(), error)

	// EthereumOption configures an Ethereum registry client.
	EthereumOption func(e *Ethereum)
)

// DialEthereum is the default DialFunc, backed by ethclient.
func DialEthereum(ctx context.Context, endpoint string) (LogFilterer, func(), error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

// WithDialer overrides how endpoints are dialed.
func WithDialer(dial DialFunc) EthereumOption {
	return func(e *Ethereum) {
		e.dial = dial
	}
}

// WithLogger sets the logger used for per-request debug output.
func WithLogger(logger zerolog.Logger) EthereumOption {
	return func(e *Ethereum) {
		e.logger = logger
	}
}

var _ Client = (*Ethereum)(nil)

// Ethereum reads group state from the event log of a registry contract.
// Every call dials target.Endpoint afresh, so a Target may point at a
// different network or contract on each call.
type Ethereum struct {
	dial   DialFunc
	logger zerolog.Logger
}

func NewEthereum(opts ...EthereumOption) *Ethereum {
	e := &Ethereum{
		dial:   DialEthereum,
		logger: zerolog.New(os.Stdout),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Members rebuilds the member list of the group from its GroupCreated,
// MemberAdded, MemberUpdated and MemberRemoved events.
func (e *Ethereum) Members(ctx context.Context, target config.Target) ([]group.Member, error) {
	q, err := e.open(ctx, target)
	if err != nil {
		return nil, err
	}
	defer q.close()

	created, err := q.logs(ctx, eventGroupCreated)
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, unavailable("group %s not found", target.GroupID)
	}
	fields, err := unpack(eventGroupCreated, created[0])
	if err != nil {
		return nil, err
	}
	zero, err := bigField(fields, "zeroValue")
	if err != nil {
		return nil, err
	}

	added, err := q.memberEvents(ctx, eventMemberAdded, "identityCommitment")
	if err != nil {
		return nil, err
	}
	updated, err := q.memberEvents(ctx, eventMemberUpdated, "newIdentityCommitment")
	if err != nil {
		return nil, err
	}
	removed, err := q.memberEvents(ctx, eventMemberRemoved, "identityCommitment")
	if err != nil {
		return nil, err
	}

	members := replayMembers(target.GroupID, zero, added, updated, removed)
	e.logger.Debug().
		Str("group", target.GroupID).
		Int("added", len(added)).
		Int("updated", len(updated)).
		Int("removed", len(removed)).
		Msg("replayed member events")
	return members, nil
}

// VerifiedSignals returns the ProofVerified events of the group in log order.
func (e *Ethereum) VerifiedSignals(ctx context.Context, target config.Target) ([]VerifiedSignal, error) {
	q, err := e.open(ctx, target)
	if err != nil {
		return nil, err
	}
	defer q.close()

	logs, err := q.logs(ctx, eventProofVerified)
	if err != nil {
		return nil, err
	}

	signals := make([]VerifiedSignal, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) < 4 {
			return nil, unavailable("%s log has %d topics", eventProofVerified, len(l.Topics))
		}
		fields, err := unpack(eventProofVerified, l)
		if err != nil {
			return nil, err
		}
		sig, err := bigField(fields, "signal")
		if err != nil {
			return nil, err
		}
		nullifier, err := bigField(fields, "nullifierHash")
		if err != nil {
			return nil, err
		}
		signals = append(signals, VerifiedSignal{
			Signal:            sig.String(),
			MerkleTreeRoot:    l.Topics[2].Big().String(),
			ExternalNullifier: l.Topics[3].Big().String(),
			NullifierHash:     nullifier.String(),
			BlockNumber:       l.BlockNumber,
		})
	}
	e.logger.Debug().Str("group", target.GroupID).Int("signals", len(signals)).Msg("read verified signals")
	return signals, nil
}

// query is a single connection scoped to one contract and group.
type query struct {
	filterer  LogFilterer
	close     func()
	address   common.Address
	group     common.Hash
	fromBlock *big.Int
}

func (e *Ethereum) open(ctx context.Context, target config.Target) (*query, error) {
	if err := checkTarget(target); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(target.Address) {
		return nil, unavailable("invalid registry address %q", target.Address)
	}
	gid, ok := new(big.Int).SetString(target.GroupID, 10)
	if !ok || gid.Sign() < 0 || gid.BitLen() > 256 {
		return nil, unavailable("group id %q is not a uint256", target.GroupID)
	}

	filterer, closeFn, err := e.dial(ctx, target.Endpoint)
	if err != nil {
		return nil, wrap(err, "dialing "+target.Endpoint)
	}
	if closeFn == nil {
		closeFn = func() {}
	}
	return &query{
		filterer:  filterer,
		close:     closeFn,
		address:   common.HexToAddress(target.Address),
		group:     common.BigToHash(gid),
		fromBlock: new(big.Int).SetUint64(target.StartBlock),
	}, nil
}

// logs returns the non-reorged logs of one event for the group.
func (q *query) logs(ctx context.Context, event string) ([]types.Log, error) {
	logs, err := q.filterer.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: q.fromBlock,
		Addresses: []common.Address{q.address},
		Topics:    [][]common.Hash{{registryABI.Events[event].ID}, {q.group}},
	})
	if err != nil {
		return nil, wrap(err, "filtering "+event+" logs")
	}
	out := logs[:0]
	for _, l := range logs {
		if !l.Removed {
			out = append(out, l)
		}
	}
	return out, nil
}

func (q *query) memberEvents(ctx context.Context, event, commitmentField string) ([]memberEvent, error) {
	logs, err := q.logs(ctx, event)
	if err != nil {
		return nil, err
	}
	events := make([]memberEvent, 0, len(logs))
	for _, l := range logs {
		fields, err := unpack(event, l)
		if err != nil {
			return nil, err
		}
		index, err := bigField(fields, "index")
		if err != nil {
			return nil, err
		}
		if !index.IsUint64() {
			return nil, unavailable("%s index %d out of range", event, index)
		}
		commitment, err := bigField(fields, commitmentField)
		if err != nil {
			return nil, err
		}
		events = append(events, memberEvent{
			at:         position{block: l.BlockNumber, logIndex: l.Index},
			index:      index.Uint64(),
			commitment: commitment,
		})
	}
	return events, nil
}

func unpack(event string, l types.Log) (map[string]any, error) {
	fields := make(map[string]any)
	if err := registryABI.UnpackIntoMap(fields, event, l.Data); err != nil {
		return nil, wrap(err, "decoding "+event+" log")
	}
	return fields, nil
}

func bigField(fields map[string]any, name string) (*big.Int, error) {
	v, ok := fields[name].(*big.Int)
	if !ok || v == nil {
		return nil, unavailable("log field %s missing or not an integer", name)
	}
	return v, nil
}
