package oracle

import (
	"bytes"
	"context"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chainforensics/sigharvest/bitcoin"
	"github.com/chainforensics/sigharvest/logger"
	"github.com/chainforensics/sigharvest/wire"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/pkg/errors"
)

// RPCNodeConfig configures a node-backed TxSource.
type RPCNodeConfig struct {
	Host     string
	Username string
	Password string

	// MaxRetries and RetryDelay (in milliseconds) bound how hard the adapter
	// tries before giving up and reporting a miss.
	MaxRetries int
	RetryDelay int
}

// String returns a config summary with the password masked so it is safe to
// log.
func (c RPCNodeConfig) String() string {
	return "{Host:" + c.Host + " Username:" + c.Username + " Password:**** MaxRetries:" +
		strconv.Itoa(c.MaxRetries) + " RetryDelay:" + strconv.Itoa(c.RetryDelay) + "ms}"
}

// errNotSeen mirrors the bitcoind RPC error for a transaction the node does
// not (yet, or ever) know about.
var errNotSeen = errors.New("No such mempool or blockchain transaction")

// RPCNode is a TxSource backed by a bitcoind-style JSON-RPC node. It caches
// whole transactions it has already fetched so a block with several inputs
// spending the same previous transaction issues only one RPC call.
type RPCNode struct {
	client *rpcclient.Client
	config RPCNodeConfig

	lock  sync.Mutex
	cache map[bitcoin.Hash32]*wire.MsgTx
}

// NewRPCNode connects to a bitcoind-style RPC endpoint.
func NewRPCNode(config RPCNodeConfig) (*RPCNode, error) {
	connConfig := rpcclient.ConnConfig{
		HTTPPostMode: true,
		DisableTLS:   true,
		Host:         config.Host,
		User:         config.Username,
		Pass:         config.Password,
	}

	client, err := rpcclient.New(&connConfig, nil)
	if err != nil {
		return nil, errors.Wrap(err, "rpc client")
	}

	if config.RetryDelay == 0 {
		config.RetryDelay = 500
	}

	return &RPCNode{
		client: client,
		config: config,
		cache:  make(map[bitcoin.Hash32]*wire.MsgTx),
	}, nil
}

// convertRPCError classifies a bitcoind JSON-RPC error so a "not seen" miss
// can be distinguished from a transient failure worth retrying.
func convertRPCError(err error) error {
	if jsonErr, ok := errors.Cause(err).(*btcjson.Error); ok {
		if jsonErr.ErrorCode == -5 {
			return errors.Wrap(errNotSeen, err.Error())
		}
		return err
	}

	parts := strings.SplitN(err.Error(), ":", 2)
	if len(parts) == 0 {
		return err
	}
	if code, convErr := strconv.Atoi(strings.TrimSpace(parts[0])); convErr == nil && code == -5 {
		return errors.Wrap(errNotSeen, err.Error())
	}
	return err
}

// GetOutputs implements TxSource, fetching and caching the full previous
// transaction, then returning its outputs. Retries MaxRetries times with
// RetryDelay between attempts before giving up.
func (r *RPCNode) GetOutputs(ctx context.Context, txid bitcoin.Hash32) ([]TxOutput, error) {
	ctx = logger.ContextWithLogSubSystem(ctx, SubSystem)
	defer logger.Elapsed(ctx, time.Now(), "GetOutputs")

	tx, err := r.getTx(ctx, txid)
	if err != nil {
		return nil, err
	}

	outputs := make([]TxOutput, len(tx.TxOut))
	for i, out := range tx.TxOut {
		outputs[i] = TxOutput{Index: uint32(i), Value: out.Value, LockingScript: out.LockingScript}
	}
	return outputs, nil
}

func (r *RPCNode) getTx(ctx context.Context, txid bitcoin.Hash32) (*wire.MsgTx, error) {
	r.lock.Lock()
	if tx, ok := r.cache[txid]; ok {
		r.lock.Unlock()
		return tx, nil
	}
	r.lock.Unlock()

	ch, err := chainhash.NewHash(txid[:])
	if err != nil {
		return nil, errors.Wrap(err, "chainhash")
	}

	var raw *btcjson.TxRawResult
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt != 0 {
			time.Sleep(time.Duration(r.config.RetryDelay) * time.Millisecond)
		}

		raw, err = r.client.GetRawTransactionVerbose(ch)
		if err == nil {
			break
		}

		err = convertRPCError(err)
		if errors.Cause(err) == errNotSeen {
			logger.Warn(ctx, "Previous tx not seen by node : %s", txid)
			return nil, errors.Wrap(ErrNotFound, txid.String())
		}
		logger.Error(ctx, "RPC GetRawTransactionVerbose failed : %s", err)
	}

	if err != nil {
		return nil, errors.Wrap(err, "get raw transaction")
	}

	b, err := hex.DecodeString(raw.Hex)
	if err != nil {
		return nil, errors.Wrap(err, "decode hex")
	}

	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(b)); err != nil {
		return nil, errors.Wrap(err, "deserialize tx")
	}

	r.lock.Lock()
	r.cache[txid] = tx
	r.lock.Unlock()

	return tx, nil
}
