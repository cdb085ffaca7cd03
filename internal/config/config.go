// Package config assembles the runtime configuration from flags, the
// environment, and an optional TOML pairs file. Flags win over env vars.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/nuxxor/tempo-market-maker/internal/tick"
)

// Pair is an enabled (base, quote) trading pair.
type Pair struct {
	Base  common.Address
	Quote common.Address
}

// Config is the full recognized option surface.
type Config struct {
	RPCURL        string
	WSURL         string // optional websocket endpoint for head tracking
	PrivateKeyHex string
	ExchangeAddr  common.Address

	StateFile    string
	EventLogFile string

	SpreadBps  int64
	OrderSize  string
	FlipBuffer string

	MaxTxPerDay       int
	MaxCancelsPerHour int

	PairCooldown    time.Duration
	JitterMax       time.Duration
	FlipFailTimeout time.Duration
	PollInterval    time.Duration
	BudgetCooldown  time.Duration

	Pairs []Pair

	DryRun    bool
	CancelAll bool
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Parse reads flags (with env fallbacks) from argv, which excludes the
// program name. Configuration errors are fatal to the caller.
func Parse(argv []string) (Config, error) {
	fs := flag.NewFlagSet("marketmaker", flag.ContinueOnError)

	var cfg Config
	var exchangeHex, pairsInline, pairsFile string
	var spreadBps int64

	fs.StringVar(&cfg.RPCURL, "rpc-url", envOr("RPC_URL", ""), "HTTP(S) or WSS RPC endpoint")
	fs.StringVar(&cfg.WSURL, "ws-url", envOr("RPC_WS_URL", ""), "Websocket RPC endpoint for block head tracking (optional)")
	fs.StringVar(&cfg.PrivateKeyHex, "private-key", envOr("PRIVATE_KEY", ""), "Maker private key hex")
	fs.StringVar(&exchangeHex, "exchange", envOr("EXCHANGE_ADDRESS", ""), "Exchange contract address")
	fs.StringVar(&cfg.StateFile, "state-file", envOr("STATE_FILE", "./out/maker-state.json"), "Engine state file")
	fs.StringVar(&cfg.EventLogFile, "event-log", envOr("EVENT_LOG_FILE", "./out/events.jsonl"), "JSONL event log path (empty disables)")
	fs.Int64Var(&spreadBps, "spread-bps", int64(envInt("SPREAD_BPS", 10)), "Total quoted spread in basis points")
	fs.StringVar(&cfg.OrderSize, "order-size", envOr("ORDER_SIZE", "100"), "Order size per side in human units")
	fs.StringVar(&cfg.FlipBuffer, "flip-buffer", envOr("FLIP_BUFFER", "10"), "Internal-balance headroom for flips, human units")
	fs.IntVar(&cfg.MaxTxPerDay, "max-tx-per-day", envInt("MAX_TX_PER_DAY", 100), "Daily chain-mutating call budget")
	fs.IntVar(&cfg.MaxCancelsPerHour, "max-cancels-per-hour", envInt("MAX_CANCELS_PER_HOUR", 20), "Hourly cancel budget")
	fs.DurationVar(&cfg.PairCooldown, "pair-cooldown", envDuration("PAIR_COOLDOWN", 30*time.Second), "Min interval between re-quote attempts per pair")
	fs.DurationVar(&cfg.JitterMax, "jitter-max", envDuration("JITTER_MAX", 3*time.Second), "Upper bound on pre-submission jitter")
	fs.DurationVar(&cfg.FlipFailTimeout, "flip-fail-timeout", envDuration("FLIP_FAIL_TIMEOUT", 30*time.Second), "Settle time before diagnosing a silent flip failure")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", envDuration("POLL_INTERVAL", 10*time.Second), "Outer loop interval")
	fs.DurationVar(&cfg.BudgetCooldown, "budget-cooldown", envDuration("BUDGET_COOLDOWN", time.Hour), "Sleep when the daily budget is exhausted")
	fs.StringVar(&pairsInline, "pairs", envOr("PAIRS", ""), "Enabled pairs, comma-separated BASE:QUOTE addresses")
	fs.StringVar(&pairsFile, "pairs-file", envOr("PAIRS_FILE", ""), "TOML file listing enabled pairs")
	fs.BoolVar(&cfg.DryRun, "dry-run", envOr("DRY_RUN", "") == "true", "Log intended actions without sending transactions")
	fs.BoolVar(&cfg.CancelAll, "cancel-all", false, "Cancel all tracked orders and exit")

	if err := fs.Parse(argv); err != nil {
		return Config{}, err
	}
	cfg.SpreadBps = spreadBps

	if strings.TrimSpace(cfg.RPCURL) == "" {
		return Config{}, fmt.Errorf("RPC_URL (or --rpc-url) required")
	}
	if strings.TrimSpace(cfg.PrivateKeyHex) == "" && !cfg.DryRun {
		return Config{}, fmt.Errorf("PRIVATE_KEY (or --private-key) required unless --dry-run")
	}
	if !common.IsHexAddress(exchangeHex) {
		return Config{}, fmt.Errorf("EXCHANGE_ADDRESS (or --exchange) must be a hex address, got %q", exchangeHex)
	}
	cfg.ExchangeAddr = common.HexToAddress(exchangeHex)

	if err := validateAmount(cfg.OrderSize, false); err != nil {
		return Config{}, fmt.Errorf("order size: %w", err)
	}
	if err := validateAmount(cfg.FlipBuffer, true); err != nil {
		return Config{}, fmt.Errorf("flip buffer: %w", err)
	}

	pairs, err := resolvePairs(pairsInline, pairsFile)
	if err != nil {
		return Config{}, err
	}
	if len(pairs) == 0 {
		return Config{}, fmt.Errorf("no pairs enabled: set --pairs or --pairs-file")
	}
	cfg.Pairs = pairs

	// fail fast on a spread the grid cannot express
	if err := tick.Default.Validate(); err != nil {
		return Config{}, fmt.Errorf("tick grid: %w", err)
	}
	if _, _, err := tick.Default.QuoteTicks(cfg.SpreadBps); err != nil {
		return Config{}, fmt.Errorf("spread %d bps: %w", cfg.SpreadBps, err)
	}
	half := tick.Default.RoundToSpacing(tick.BasisPointsToTicks(cfg.SpreadBps) / 2)
	if half == 0 {
		return Config{}, fmt.Errorf("spread %d bps rounds to zero width on the grid", cfg.SpreadBps)
	}
	if half > tick.Default.Max || -half < tick.Default.Min {
		return Config{}, fmt.Errorf("spread %d bps is wider than the grid bounds", cfg.SpreadBps)
	}

	return cfg, nil
}

// validateAmount rejects unparseable or negative human-unit amounts at
// startup instead of letting every quoting pass fail on them.
func validateAmount(s string, allowZero bool) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("parse %q: %w", s, err)
	}
	if d.Sign() < 0 {
		return fmt.Errorf("%q must not be negative", s)
	}
	if !allowZero && d.Sign() == 0 {
		return fmt.Errorf("%q must be positive", s)
	}
	return nil
}

func resolvePairs(inline, file string) ([]Pair, error) {
	inline = strings.TrimSpace(inline)
	file = strings.TrimSpace(file)
	if inline != "" && file != "" {
		return nil, fmt.Errorf("--pairs and --pairs-file are mutually exclusive")
	}
	if file != "" {
		return LoadPairsFile(file)
	}
	if inline == "" {
		return nil, nil
	}
	return ParsePairs(inline)
}

// ParsePairs parses "BASE:QUOTE,BASE:QUOTE" address lists.
func ParsePairs(s string) ([]Pair, error) {
	var out []Pair
	seen := make(map[string]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		halves := strings.Split(part, ":")
		if len(halves) != 2 || !common.IsHexAddress(strings.TrimSpace(halves[0])) || !common.IsHexAddress(strings.TrimSpace(halves[1])) {
			return nil, fmt.Errorf("malformed pair %q (want BASE:QUOTE hex addresses)", part)
		}
		p := Pair{
			Base:  common.HexToAddress(strings.TrimSpace(halves[0])),
			Quote: common.HexToAddress(strings.TrimSpace(halves[1])),
		}
		if p.Base == p.Quote {
			return nil, fmt.Errorf("pair %q has identical base and quote", part)
		}
		key := strings.ToLower(p.Base.Hex() + ":" + p.Quote.Hex())
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate pair %q", part)
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

type pairsFileDoc struct {
	Pairs []struct {
		Base  string `toml:"base"`
		Quote string `toml:"quote"`
	} `toml:"pairs"`
}

// LoadPairsFile reads enabled pairs from a TOML document of the form:
//
//	[[pairs]]
//	base = "0x..."
//	quote = "0x..."
func LoadPairsFile(path string) ([]Pair, error) {
	var doc pairsFileDoc
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("parse pairs file %s: %w", path, err)
	}
	parts := make([]string, 0, len(doc.Pairs))
	for _, p := range doc.Pairs {
		parts = append(parts, p.Base+":"+p.Quote)
	}
	pairs, err := ParsePairs(strings.Join(parts, ","))
	if err != nil {
		return nil, fmt.Errorf("pairs file %s: %w", path, err)
	}
	return pairs, nil
}
