package contract

import "sync"

// IncrementerABI is the ABI of the Incrementer example contract:
//
//	contract Incrementer {
//	    uint256 public number;
//	    constructor(uint256 _initialNumber) { number = _initialNumber; }
//	    function increment(uint256 _value) public { number = number + _value; }
//	    function reset() public { number = 0; }
//	}
const IncrementerABI = `[
	{"inputs":[{"internalType":"uint256","name":"_initialNumber","type":"uint256"}],"stateMutability":"nonpayable","type":"constructor"},
	{"inputs":[{"internalType":"uint256","name":"_value","type":"uint256"}],"name":"increment","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"name":"number","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"reset","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// IncrementerRuntime is the code a node stores for an Incrementer (solc 0.8.15)
const IncrementerRuntime = "0x" + incrementerRuntime

const incrementerRuntime = "608060405234801561001057600080fd5b50600436106100415760003560e01c80637cf5dab0146100465780638381f5" +
	"8a14610062578063d826f88f14610080575b600080fd5b610060600480360381019061005b91906100eb565b61008a56" +
	"5b005b61006a6100a1565b6040516100779190610127565b60405180910390f35b6100886100a7565b005b8060005461" +
	"00989190610171565b60008190555050565b60005481565b60008081905550565b600080fd5b6000819050919050565b" +
	"6100c8816100b5565b81146100d357600080fd5b50565b6000813590506100e5816100bf565b92915050565b60006020" +
	"8284031215610101576101006100b0565b5b600061010f848285016100d6565b91505092915050565b610121816100b5" +
	"565b82525050565b600060208201905061013c6000830184610118565b92915050565b7f4e487b710000000000000000" +
	"0000000000000000000000000000000000000000600052601160045260246000fd5b600061017c826100b5565b915061" +
	"0187836100b5565b9250827fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff03821115" +
	"6101bc576101bb610142565b5b82820190509291505056fea26469706673582212205630f43904ffe3ce1948f172d4cf" +
	"9a799186f43bde2c2578b4676a896d11a9b264736f6c634300080f0033"

// incrementerInit stores the trailing 32-byte constructor argument in slot 0
// and returns the 0x1fd bytes of runtime code that follow it
const incrementerInit = "6020602038036000396000516000556101fd8061001c6000396000f3"

// IncrementerBytecode is the creation code: init followed by runtime
const IncrementerBytecode = "0x" + incrementerInit + incrementerRuntime

var (
	incrementerOnce sync.Once
	incrementer     *Artifact
	incrementerErr  error
)

// Incrementer returns the embedded Incrementer artifact
func Incrementer() (*Artifact, error) {
	incrementerOnce.Do(func() {
		incrementer, incrementerErr = NewArtifact("Incrementer", IncrementerABI, IncrementerBytecode)
	})
	return incrementer, incrementerErr
}

// IncrementerFrom loads the artifact at path, or the embedded one when path is empty
func IncrementerFrom(path string) (*Artifact, error) {
	if path == "" {
		return Incrementer()
	}
	return LoadArtifact(path)
}
