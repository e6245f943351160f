package oracle

import (
	"context"
	"encoding/binary"

	"github.com/chainforensics/sigharvest/bitcoin"
	"github.com/chainforensics/sigharvest/logger"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
)

// RedisCache wraps a TxSource with a Redis-backed previous-output cache, so
// a long-running or multi-process extraction over the same blocks doesn't
// refetch an output every time a different input spends it. The cache is an
// optimization only: a miss falls through to Source and the digest produced
// is unaffected either way.
type RedisCache struct {
	Conn   redis.Conn
	Source TxSource
}

// NewRedisCache returns a TxSource that checks conn before calling source.
func NewRedisCache(conn redis.Conn, source TxSource) *RedisCache {
	return &RedisCache{Conn: conn, Source: source}
}

// GetOutputs implements TxSource.
func (c *RedisCache) GetOutputs(ctx context.Context, txid bitcoin.Hash32) ([]TxOutput, error) {
	ctx = logger.ContextWithLogSubSystem(ctx, SubSystem)

	key := txid.String()

	if cached, err := c.readCache(key); err != nil {
		logger.Warn(ctx, "Redis cache read failed, falling through : %s", err)
	} else if cached != nil {
		return cached, nil
	}

	outputs, err := c.Source.GetOutputs(ctx, txid)
	if err != nil {
		return nil, err
	}

	if err := c.writeCache(key, outputs); err != nil {
		logger.Warn(ctx, "Redis cache write failed : %s", err)
	}

	return outputs, nil
}

// readCache returns nil, nil on a cache miss.
func (c *RedisCache) readCache(key string) ([]TxOutput, error) {
	resp, err := c.Conn.Do("GET", key)
	if err != nil {
		return nil, errors.Wrap(err, "get")
	}
	if resp == nil {
		return nil, nil
	}

	b, ok := resp.([]byte)
	if !ok {
		return nil, errors.New("unexpected redis payload type")
	}

	return decodeOutputs(b)
}

func (c *RedisCache) writeCache(key string, outputs []TxOutput) error {
	b, err := encodeOutputs(outputs)
	if err != nil {
		return errors.Wrap(err, "encode")
	}

	if _, err := c.Conn.Do("SET", key, b); err != nil {
		return errors.Wrap(err, "set")
	}
	return c.Conn.Flush()
}

// encodeOutputs/decodeOutputs use a small fixed layout rather than a general
// purpose serialization library, matching how little this cache needs to
// carry: count, then index/value/script-length/script per output.
func encodeOutputs(outputs []TxOutput) ([]byte, error) {
	buf := make([]byte, 0, 4+len(outputs)*32)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(outputs)))

	for _, out := range outputs {
		buf = binary.LittleEndian.AppendUint32(buf, out.Index)
		buf = binary.LittleEndian.AppendUint64(buf, out.Value)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(out.LockingScript)))
		buf = append(buf, out.LockingScript...)
	}

	return buf, nil
}

func decodeOutputs(b []byte) ([]TxOutput, error) {
	if len(b) < 4 {
		return nil, errors.New("truncated cache payload")
	}

	count := binary.LittleEndian.Uint32(b)
	b = b[4:]

	outputs := make([]TxOutput, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(b) < 16 {
			return nil, errors.New("truncated cache payload")
		}

		index := binary.LittleEndian.Uint32(b)
		value := binary.LittleEndian.Uint64(b[4:])
		scriptLen := binary.LittleEndian.Uint32(b[12:])
		b = b[16:]

		if uint32(len(b)) < scriptLen {
			return nil, errors.New("truncated cache payload")
		}

		script := make([]byte, scriptLen)
		copy(script, b[:scriptLen])
		b = b[scriptLen:]

		outputs = append(outputs, TxOutput{Index: index, Value: value, LockingScript: script})
	}

	return outputs, nil
}
