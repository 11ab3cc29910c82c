package domain

type Token string

const (
	TokenWBTC   Token = "WBTC"
	TokenETH    Token = "ETH"
	TokenSUI    Token = "SUI"
	TokenUSDC   Token = "USDC"
	TokenUSDT   Token = "USDT"
	TokenTUSDC  Token = "TUSDC"
	TokenCETUS  Token = "CETUS"
	TokenTURBOS Token = "TURBOS"
	TokenAFT    Token = "AFT"
)

var AllTokens = []Token{TokenWBTC, TokenETH, TokenSUI, TokenUSDC, TokenUSDT, TokenTUSDC, TokenCETUS, TokenTURBOS, TokenAFT}

func (t Token) Valid() bool {
	for _, k := range AllTokens {
		if k == t {
			return true
		}
	}
	return false
}

type WalletType string

const (
	WalletSui     WalletType = "sui"
	WalletStashed WalletType = "stashed"
	WalletOther   WalletType = "other"
)

// Wallet is the persisted wallet blob.
type Wallet struct {
	Address   string            `json:"address"`
	Balance   map[Token]float64 `json:"balance"`
	Connected bool              `json:"connected"`
	Type      WalletType        `json:"type"`
}

func (w Wallet) Clone() Wallet {
	out := w
	out.Balance = make(map[Token]float64, len(w.Balance))
	for k, v := range w.Balance {
		out.Balance[k] = v
	}
	return out
}
