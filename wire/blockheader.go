package wire

import (
	"encoding/binary"
	"io"

	"github.com/chainforensics/sigharvest/bitcoin"
)

// BlockHeader carries the fields of a block header the extractor needs to
// tag emitted records with their block of origin. The block stream itself,
// including header validation and proof-of-work checks, is produced by an
// external collaborator; this engine only reads the fields back out.
type BlockHeader struct {
	Hash       bitcoin.Hash32 `json:"hash"`        // display order
	PrevHash   bitcoin.Hash32 `json:"prev_hash"`   // display order
	MerkleRoot bitcoin.Hash32 `json:"merkle_root"` // display order
	Version    int32          `json:"version"`
	Timestamp  uint32         `json:"timestamp"`
	Bits       uint32         `json:"bits"`
	Nonce      uint32         `json:"nonce"`
}

// Block is a header together with the transactions it contains, in the
// order they appear on the chain.
type Block struct {
	Header BlockHeader
	Txs    []*MsgTx
}

// Serialize writes the header fields in order; Block.Serialize follows them
// with the transactions, the layout blockstore.Reader expects. Full raw-block
// (P2P wire) parsing is out of scope for this engine; this is the internal
// layout used to persist an already-decoded block between the upstream
// parser and this one.
func (h *BlockHeader) Serialize(w io.Writer) error {
	if err := h.Hash.Serialize(w); err != nil {
		return err
	}
	if err := h.PrevHash.Serialize(w); err != nil {
		return err
	}
	if err := h.MerkleRoot.Serialize(w); err != nil {
		return err
	}
	if err := binary.Write(w, endian, h.Version); err != nil {
		return err
	}
	if err := binary.Write(w, endian, h.Timestamp); err != nil {
		return err
	}
	if err := binary.Write(w, endian, h.Bits); err != nil {
		return err
	}
	return binary.Write(w, endian, h.Nonce)
}

// Deserialize reads a header written by Serialize.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	if err := h.Hash.Deserialize(r); err != nil {
		return err
	}
	if err := h.PrevHash.Deserialize(r); err != nil {
		return err
	}
	if err := h.MerkleRoot.Deserialize(r); err != nil {
		return err
	}
	if err := binary.Read(r, endian, &h.Version); err != nil {
		return err
	}
	if err := binary.Read(r, endian, &h.Timestamp); err != nil {
		return err
	}
	if err := binary.Read(r, endian, &h.Bits); err != nil {
		return err
	}
	return binary.Read(r, endian, &h.Nonce)
}

// Serialize writes the header followed by a varint transaction count and
// each transaction in order.
func (b *Block) Serialize(w io.Writer) error {
	if err := b.Header.Serialize(w); err != nil {
		return err
	}

	if err := WriteVarInt(w, uint64(len(b.Txs))); err != nil {
		return err
	}

	for _, tx := range b.Txs {
		if err := tx.Serialize(w); err != nil {
			return err
		}
	}

	return nil
}

// Deserialize reads a block written by Serialize.
func (b *Block) Deserialize(r io.Reader) error {
	if err := b.Header.Deserialize(r); err != nil {
		return err
	}

	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}

	b.Txs = make([]*MsgTx, 0, count)
	for i := uint64(0); i < count; i++ {
		tx := &MsgTx{}
		if err := tx.Deserialize(r); err != nil {
			return err
		}
		b.Txs = append(b.Txs, tx)
	}

	return nil
}
