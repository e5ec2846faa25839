package contracts

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const metapoolABI = `[{"name":"get_virtual_price","outputs":[{"type":"uint256","name":""}],"inputs":[],"stateMutability":"view","type":"function"}]`

const vaultABI = `[
	{"name":"pricePerShare","outputs":[{"type":"uint256","name":""}],"inputs":[],"stateMutability":"view","type":"function"},
	{"name":"decimals","outputs":[{"type":"uint8","name":""}],"inputs":[],"stateMutability":"view","type":"function"}
]`

const issuanceABI = `[{"name":"getRequiredComponentUnitsForIssue","inputs":[{"name":"_setToken","type":"address"},{"name":"_quantity","type":"uint256"}],"outputs":[{"name":"","type":"address[]"},{"name":"","type":"uint256[]"}],"stateMutability":"view","type":"function"}]`

const batchInteractionABI = `[
	{"name":"depositForMint","inputs":[{"name":"amount_","type":"uint256"},{"name":"account_","type":"address"}],"outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"name":"depositForRedeem","inputs":[{"name":"amount_","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"name":"currentMintBatchId","inputs":[],"outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
	{"name":"currentRedeemBatchId","inputs":[],"outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
	{"name":"batchMint","inputs":[{"name":"minAmountToMint_","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"name":"batchRedeem","inputs":[{"name":"min3crvToReceive_","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"name":"batches","inputs":[{"name":"","type":"bytes32"}],"outputs":[
		{"name":"batchType","type":"uint8"},
		{"name":"batchId","type":"bytes32"},
		{"name":"claimable","type":"bool"},
		{"name":"unclaimedShares","type":"uint256"},
		{"name":"suppliedTokenBalance","type":"uint256"},
		{"name":"claimableTokenBalance","type":"uint256"},
		{"name":"suppliedTokenAddress","type":"address"},
		{"name":"claimableTokenAddress","type":"address"}
	],"stateMutability":"view","type":"function"},
	{"name":"moveUnclaimedDepositsIntoCurrentBatch","inputs":[{"name":"batchIds_","type":"bytes32[]"},{"name":"shares_","type":"uint256[]"},{"name":"batchType_","type":"uint8"}],"outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"name":"claim","inputs":[{"name":"batchId_","type":"bytes32"},{"name":"account_","type":"address"}],"outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// ERC20 approve function ABI
const erc20ApproveABI = `[{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

//nolint:gochecknoglobals // parsed once from constants above
var (
	metapoolContract = mustParseABI(metapoolABI)
	vaultContract    = mustParseABI(vaultABI)
	issuanceContract = mustParseABI(issuanceABI)
	batchContract    = mustParseABI(batchInteractionABI)
	erc20Contract    = mustParseABI(erc20ApproveABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse ABI: %v", err))
	}
	return parsed
}
