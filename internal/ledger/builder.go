package ledger

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

// Ошибки сборки транзакции
var (
	ErrNoInputs      = errors.New("ledger: transaction has no inputs")
	ErrNoOutputs     = errors.New("ledger: transaction has no outputs")
	ErrInvalidAmount = errors.New("ledger: output amount must be positive")
	ErrUnknownNet    = errors.New("ledger: unknown network")
)

// TxVersion - версия собираемых транзакций
const TxVersion = 2

// Input - тратимый выход
type Input struct {
	TxID   string
	Vout   uint32
	Amount int64
}

// Output - получатель и сумма в базовых единицах
type Output struct {
	Address string
	Amount  int64
}

// NetworkParams возвращает параметры сети по имени из конфигурации
func NetworkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownNet, network)
}

// Builder собирает и подписывает P2PKH транзакции одним ключом (WIF)
type Builder struct {
	wif *btcutil.WIF
}

// NewBuilder разбирает WIF ключ источника выплат
func NewBuilder(wifKey string) (*Builder, error) {
	wif, err := btcutil.DecodeWIF(wifKey)
	if err != nil {
		return nil, fmt.Errorf("decode payout key: %w", err)
	}
	return &Builder{wif: wif}, nil
}

// SourceAddress - P2PKH адрес ключа в сети network
func (b *Builder) SourceAddress(network string) (string, error) {
	params, err := NetworkParams(network)
	if err != nil {
		return "", err
	}
	addr, err := b.address(params)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

func (b *Builder) address(params *chaincfg.Params) (*btcutil.AddressPubKeyHash, error) {
	return btcutil.NewAddressPubKeyHash(btcutil.Hash160(b.wif.SerializePubKey()), params)
}

// Build собирает транзакцию (version 2, locktime 0), подписывает все входы
// ключом источника и возвращает сериализованные байты.
func (b *Builder) Build(inputs []Input, outputs []Output, network string) ([]byte, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}
	if len(outputs) == 0 {
		return nil, ErrNoOutputs
	}

	params, err := NetworkParams(network)
	if err != nil {
		return nil, err
	}

	source, err := b.address(params)
	if err != nil {
		return nil, err
	}
	subscript, err := txscript.PayToAddrScript(source)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(TxVersion)
	for _, in := range inputs {
		hash, err := chainhash.NewHashFromStr(in.TxID)
		if err != nil {
			return nil, fmt.Errorf("input %s:%d: %w", in.TxID, in.Vout, err)
		}
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(hash, in.Vout), nil, nil))
	}

	for _, out := range outputs {
		if out.Amount <= 0 {
			return nil, fmt.Errorf("%w: %s %d", ErrInvalidAmount, out.Address, out.Amount)
		}
		addr, err := btcutil.DecodeAddress(out.Address, params)
		if err != nil {
			return nil, fmt.Errorf("output %s: %w", out.Address, err)
		}
		pkScript, err := txscript.PayToAddrScript(addr)
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(wire.NewTxOut(out.Amount, pkScript))
	}

	for i := range tx.TxIn {
		sigScript, err := txscript.SignatureScript(tx, i, subscript, txscript.SigHashAll, b.wif.PrivKey, b.wif.CompressPubKey)
		if err != nil {
			return nil, fmt.Errorf("sign input %d: %w", i, err)
		}
		tx.TxIn[i].SignatureScript = sigScript
	}

	var buf bytes.Buffer
	buf.Grow(tx.SerializeSize())
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TxIDFromHex возвращает txid сериализованной транзакции
func TxIDFromHex(rawHex string) (string, error) {
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return "", err
	}
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return "", err
	}
	return tx.TxHash().String(), nil
}
