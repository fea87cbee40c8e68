package contract

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// XCMUtilsAddress is the XCM Utilities precompile
var XCMUtilsAddress = common.HexToAddress("0x000000000000000000000000000000000000080C")

// XCMUtilsABI covers the message functions of the XCM Utilities precompile
const XCMUtilsABI = `[
	{"inputs":[{"internalType":"bytes","name":"message","type":"bytes"},{"internalType":"uint64","name":"maxWeight","type":"uint64"}],"name":"xcmExecute","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"components":[{"internalType":"uint8","name":"parents","type":"uint8"},{"internalType":"bytes[]","name":"interior","type":"bytes[]"}],"internalType":"struct XcmUtils.Multilocation","name":"dest","type":"tuple"},{"internalType":"bytes","name":"message","type":"bytes"}],"name":"xcmSend","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// Multilocation identifies an XCM destination. Field names match the ABI
// tuple components.
type Multilocation struct {
	Parents  uint8
	Interior [][]byte
}

// RelayChain is the parent chain with an empty interior
var RelayChain = Multilocation{Parents: 1, Interior: [][]byte{}}

var (
	xcmOnce sync.Once
	xcmABI  abi.ABI
	xcmErr  error
)

func xcmUtils() (abi.ABI, error) {
	xcmOnce.Do(func() {
		xcmABI, xcmErr = abi.JSON(strings.NewReader(XCMUtilsABI))
	})
	return xcmABI, xcmErr
}

// PackXCMExecute encodes xcmExecute(message, maxWeight)
func PackXCMExecute(message []byte, maxWeight uint64) ([]byte, error) {
	parsed, err := xcmUtils()
	if err != nil {
		return nil, fmt.Errorf("failed to parse XCM utils ABI: %w", err)
	}
	data, err := parsed.Pack("xcmExecute", message, maxWeight)
	if err != nil {
		return nil, fmt.Errorf("failed to pack xcmExecute: %w", err)
	}
	return data, nil
}

// PackXCMSend encodes xcmSend(dest, message)
func PackXCMSend(dest Multilocation, message []byte) ([]byte, error) {
	parsed, err := xcmUtils()
	if err != nil {
		return nil, fmt.Errorf("failed to parse XCM utils ABI: %w", err)
	}
	if dest.Interior == nil {
		dest.Interior = [][]byte{}
	}
	data, err := parsed.Pack("xcmSend", dest, message)
	if err != nil {
		return nil, fmt.Errorf("failed to pack xcmSend: %w", err)
	}
	return data, nil
}
