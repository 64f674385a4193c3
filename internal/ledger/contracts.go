package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// donationABI covers the donation contract methods the backend calls.
const donationABI = `[
	{"type":"function","name":"donate","stateMutability":"payable",
	 "inputs":[{"name":"name","type":"string"}],"outputs":[]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable",
	 "inputs":[],"outputs":[]}
]`

// oracleABI covers the exchange-rate oracle.
const oracleABI = `[
	{"type":"function","name":"getRate","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"updateRate","stateMutability":"nonpayable",
	 "inputs":[{"name":"_rate","type":"uint256"}],"outputs":[]}
]`

const (
	methodDonate     = "donate"
	methodWithdraw   = "withdraw"
	methodGetRate    = "getRate"
	methodUpdateRate = "updateRate"
)

var (
	donationContractABI = mustParseABI(donationABI)
	oracleContractABI   = mustParseABI(oracleABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("ledger: parse abi: " + err.Error())
	}
	return parsed
}
